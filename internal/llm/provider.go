// Package llm routes text generation requests to external model providers
// with primary to fallback failover.
package llm

import (
	"context"

	"vibra-server/internal/model"
)

// Request carries the inputs of a single generation call.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Provider generates text for a single model behind one wire protocol.
// Implementations make exactly one attempt per call.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Factory builds a Provider bound to a concrete model name.
type Factory func(modelName string) Provider

// TextGenerator is the capability consumers of the gateway depend on.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, systemPrompt string, cfg model.LLMConfig) (string, error)
}
