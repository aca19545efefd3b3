package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// chatCompletionProvider speaks the OpenAI chat-completion schema. It also
// serves Groq, whose API is wire-compatible behind a different base URL.
type chatCompletionProvider struct {
	client    *openai.Client
	modelName string
}

// NewOpenAIProvider builds a provider against the OpenAI API.
func NewOpenAIProvider(apiKey, modelName string, timeout time.Duration) Provider {
	return newChatCompletionProvider(apiKey, "", modelName, timeout)
}

// NewGroqProvider builds a provider against the Groq inference endpoint.
func NewGroqProvider(apiKey, modelName string, timeout time.Duration) Provider {
	return newChatCompletionProvider(apiKey, groqBaseURL, modelName, timeout)
}

func newChatCompletionProvider(apiKey, baseURL, modelName string, timeout time.Duration) Provider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &chatCompletionProvider{
		client:    openai.NewClientWithConfig(config),
		modelName: modelName,
	}
}

func (p *chatCompletionProvider) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.modelName,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("received empty response from model %s", p.modelName)
	}

	return resp.Choices[0].Message.Content, nil
}
