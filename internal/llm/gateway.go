package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"vibra-server/internal/config"
	"vibra-server/internal/model"
)

// ErrAllProvidersFailed is returned when both the primary and the fallback
// provider attempts fail.
var ErrAllProvidersFailed = errors.New("all llm providers failed")

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// Defaults is the process-wide provider routing used when a template's
// llm_config leaves fields empty.
type Defaults struct {
	Provider         string
	Model            string
	FallbackProvider string
	FallbackModel    string
}

// Gateway routes generation requests to registered providers, trying the
// primary once and the fallback once.
type Gateway struct {
	factories map[string]Factory
	defaults  Defaults
	logger    *zap.Logger
}

// NewGateway creates a Gateway with no providers registered.
func NewGateway(defaults Defaults, logger *zap.Logger) *Gateway {
	return &Gateway{
		factories: make(map[string]Factory),
		defaults:  defaults,
		logger:    logger.Named("llm"),
	}
}

// NewGatewayFromConfig creates a Gateway and registers every provider that
// has an API key configured.
func NewGatewayFromConfig(cfg config.LLMConfig, logger *zap.Logger) *Gateway {
	g := NewGateway(Defaults{
		Provider:         cfg.DefaultProvider,
		Model:            cfg.DefaultModel,
		FallbackProvider: cfg.FallbackProvider,
		FallbackModel:    cfg.FallbackModel,
	}, logger)

	timeout := cfg.RequestTimeout
	if cfg.OpenAIAPIKey != "" {
		g.Register("openai", func(modelName string) Provider {
			return NewOpenAIProvider(cfg.OpenAIAPIKey, modelName, timeout)
		})
	}
	if cfg.GroqAPIKey != "" {
		g.Register("groq", func(modelName string) Provider {
			return NewGroqProvider(cfg.GroqAPIKey, modelName, timeout)
		})
	}
	if cfg.GeminiAPIKey != "" {
		g.Register("gemini", func(modelName string) Provider {
			return NewGeminiProvider(cfg.GeminiAPIKey, modelName, timeout)
		})
	}
	return g
}

// Register adds a provider factory under the given tag. New providers are
// added here, never by modifying the routing logic.
func (g *Gateway) Register(name string, factory Factory) {
	g.factories[name] = factory
}

// Generate resolves the provider routing from cfg (falling back to the
// process defaults), calls the primary provider once and, on failure, the
// fallback provider once.
func (g *Gateway) Generate(ctx context.Context, prompt, systemPrompt string, cfg model.LLMConfig) (string, error) {
	req := Request{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	primary, primaryModel := g.defaults.Provider, g.defaults.Model
	if cfg.Provider != "" {
		primary = cfg.Provider
	}
	if cfg.Model != "" {
		primaryModel = cfg.Model
	}

	text, primaryErr := g.call(ctx, primary, primaryModel, req)
	if primaryErr == nil {
		return text, nil
	}
	g.logger.Warn("primary provider failed, trying fallback",
		zap.String("provider", primary),
		zap.String("model", primaryModel),
		zap.Error(primaryErr))

	fallback, fallbackModel := g.defaults.FallbackProvider, g.defaults.FallbackModel
	if cfg.FallbackProvider != "" {
		fallback = cfg.FallbackProvider
	}
	if cfg.FallbackModel != "" {
		fallbackModel = cfg.FallbackModel
	}
	if fallback == "" {
		return "", fmt.Errorf("%w: %s: %v", ErrAllProvidersFailed, primary, primaryErr)
	}

	text, fallbackErr := g.call(ctx, fallback, fallbackModel, req)
	if fallbackErr == nil {
		return text, nil
	}
	g.logger.Error("fallback provider failed",
		zap.String("provider", fallback),
		zap.String("model", fallbackModel),
		zap.Error(fallbackErr))

	return "", fmt.Errorf("%w: %s: %v; %s: %v",
		ErrAllProvidersFailed, primary, primaryErr, fallback, fallbackErr)
}

func (g *Gateway) call(ctx context.Context, providerName, modelName string, req Request) (string, error) {
	factory, ok := g.factories[providerName]
	if !ok {
		return "", fmt.Errorf("provider %q is not configured", providerName)
	}

	start := time.Now()
	text, err := factory(modelName).Generate(ctx, req)
	requestDuration.With(prometheus.Labels{"provider": providerName}).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.With(prometheus.Labels{"provider": providerName, "status": "error"}).Inc()
		return "", err
	}
	requestsTotal.With(prometheus.Labels{"provider": providerName, "status": "success"}).Inc()
	return text, nil
}

var _ TextGenerator = (*Gateway)(nil)
