package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiProvider speaks the Gemini generateContent schema (contents/parts),
// which shares nothing with the chat-completion wire format.
type geminiProvider struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiProvider builds a provider against the Gemini API.
func NewGeminiProvider(apiKey, modelName string, timeout time.Duration) Provider {
	return &geminiProvider{
		apiKey:     apiKey,
		modelName:  modelName,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *geminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	// Gemini has no system role in this API version, so the system prompt
	// is injected as an opening user/model exchange.
	contents := make([]geminiContent, 0, 3)
	if req.SystemPrompt != "" {
		contents = append(contents,
			geminiContent{Role: "user", Parts: []geminiPart{{Text: req.SystemPrompt}}},
			geminiContent{Role: "model", Parts: []geminiPart{{Text: "Entendido. Vou seguir essas instruções."}}},
		)
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}})

	body, err := json.Marshal(geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.modelName, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(payload))
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("received empty response from model %s", p.modelName)
	}

	text := decoded.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("received empty response from model %s", p.modelName)
	}
	return text, nil
}
