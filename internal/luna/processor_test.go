package luna

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vibra-server/internal/config"
	"vibra-server/internal/model"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (s *stubGenerator) Generate(_ context.Context, prompt, _ string, _ model.LLMConfig) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.response, s.err
}

func newTestProcessor(gen *stubGenerator) *Processor {
	return NewProcessor(gen, config.LunaConfig{
		Provider: "openai", Model: "gpt-4.1-mini", Temperature: 0.3, MaxTokens: 4000,
	}, zap.NewNop())
}

var longInput = strings.Repeat("O sol em Leão traz expansão e coragem para sua jornada. ", 10)

func TestProcess_WellFormedJSON(t *testing.T) {
	gen := &stubGenerator{response: `{"text": "<p>Olá</p>", "frase": "Vá em frente", "notification": {"titulo": "Seu mapa", "texto": "Novidades sobre seu sol"}}`}
	p := newTestProcessor(gen)

	result := p.Process(context.Background(), longInput)

	assert.Equal(t, "<p>Olá</p>", result.Text)
	assert.Equal(t, "Vá em frente", result.Frase)
	assert.Equal(t, "Seu mapa", result.Notification.Titulo)
	assert.Equal(t, "Novidades sobre seu sol", result.Notification.Texto)
}

func TestProcess_JSONInsideCodeFence(t *testing.T) {
	gen := &stubGenerator{response: "```json\n{\"text\": \"<p>Corpo</p>\", \"frase\": \"f\"}\n```"}
	p := newTestProcessor(gen)

	result := p.Process(context.Background(), longInput)

	assert.Equal(t, "<p>Corpo</p>", result.Text)
	// Missing notification falls back to the generic payload.
	assert.Equal(t, "Nova análise", result.Notification.Titulo)
}

func TestProcess_JSONSurroundedByProse(t *testing.T) {
	gen := &stubGenerator{response: `Aqui está o resultado: {"text": "<p>Meio</p>", "frase": ""} espero que ajude`}
	p := newTestProcessor(gen)

	result := p.Process(context.Background(), longInput)

	assert.Equal(t, "<p>Meio</p>", result.Text)
}

func TestProcess_RegexSalvageOfTextField(t *testing.T) {
	// Trailing garbage breaks strict parsing but the text field survives.
	gen := &stubGenerator{response: `{"text": "<p>Quase \"bom\"</p>", "frase": `}
	p := newTestProcessor(gen)

	result := p.Process(context.Background(), longInput)

	assert.Equal(t, `<p>Quase "bom"</p>`, result.Text)
	assert.Equal(t, "Nova análise", result.Notification.Titulo)
}

func TestProcess_MissingTextKeyFallsThrough(t *testing.T) {
	gen := &stubGenerator{response: `{"frase": "sem corpo"}`}
	p := newTestProcessor(gen)

	result := p.Process(context.Background(), longInput)

	// No text field anywhere: the whole reply gets basic formatting.
	assert.Contains(t, result.Text, "<p>")
	assert.Equal(t, "Nova análise", result.Notification.Titulo)
}

func TestProcess_GatewayErrorFormatsOriginalText(t *testing.T) {
	gen := &stubGenerator{err: errors.New("all llm providers failed")}
	p := newTestProcessor(gen)

	raw := "# Título\n\nSeu sol em **Leão** indica força interior e uma presença marcante."
	result := p.Process(context.Background(), raw)

	assert.Contains(t, result.Text, "<h3>Título</h3>")
	assert.Contains(t, result.Text, "<strong>Leão</strong>")
	assert.Equal(t, "Nova análise", result.Notification.Titulo)
	assert.Equal(t, "Sua interpretação está pronta", result.Notification.Texto)
}

func TestProcess_ShortInputSkipsLLM(t *testing.T) {
	gen := &stubGenerator{response: "nunca chamado"}
	p := newTestProcessor(gen)

	result := p.Process(context.Background(), "curto")

	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, "<p>curto</p>", result.Text)
}

func TestProcess_EmptyInput(t *testing.T) {
	p := newTestProcessor(&stubGenerator{})

	result := p.Process(context.Background(), "")

	assert.Equal(t, "<p></p>", result.Text)
	assert.Equal(t, "Nova análise", result.Notification.Titulo)
}

func TestProcess_TruncationKeepsRuneBoundary(t *testing.T) {
	gen := &stubGenerator{response: `{"text": "<p>ok</p>"}`}
	p := newTestProcessor(gen)

	// "ã" is two bytes, and the leading "x" shifts every pair so the
	// byte limit lands in the middle of one of them.
	input := "x" + strings.Repeat("ã", maxInputLength)
	p.Process(context.Background(), input)

	require.NotEmpty(t, gen.prompt)
	sent := strings.TrimPrefix(gen.prompt, reformatPrompt)
	assert.True(t, utf8.ValidString(sent))
	assert.LessOrEqual(t, len(sent), maxInputLength)
}

func TestTruncateAtRune(t *testing.T) {
	assert.Equal(t, "a", truncateAtRune("aé", 2))
	assert.Equal(t, "aé", truncateAtRune("aé", 3))
	assert.Equal(t, "curto", truncateAtRune("curto", 100))
}

func TestFormatBasicHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "<p></p>"},
		{"already html", "<p>pronto</p>", "<p>pronto</p>"},
		{"h1 becomes h3", "# Cabeçalho", "<h3>Cabeçalho</h3>"},
		{"h4 stays h4", "#### Sub", "<h4>Sub</h4>"},
		{"bold", "um **dois** três", "<p>um <strong>dois</strong> três</p>"},
		{"paragraph split", "um\n\ndois", "<p>um</p>\n<p>dois</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatBasicHTML(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	span, ok := extractJSONObject(`ruído {"a": {"b": "}"}} resto`)

	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": "}"}}`, span)
}

func TestExtractJSONObject_Unbalanced(t *testing.T) {
	_, ok := extractJSONObject(`{"a": `)

	assert.False(t, ok)
}
