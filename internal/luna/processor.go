// Package luna turns raw LLM interpretations into structured output: an
// HTML body, a short impact phrase and a push notification payload. Every
// failure mode still yields presentable output.
package luna

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"vibra-server/internal/config"
	"vibra-server/internal/llm"
	"vibra-server/internal/model"
)

const (
	// Inputs below this length skip the reformatting call entirely.
	minInputLength = 50
	// Inputs are truncated to keep the reformatting prompt bounded.
	maxInputLength = 8000
)

const systemPrompt = `Você é um assistente que SEMPRE retorna JSON válido.
NUNCA use markdown, código ou explicações.
Retorne APENAS o objeto JSON solicitado.`

const reformatPrompt = `Revise e formate o texto abaixo seguindo estas regras:

## Formatação HTML
- Use <p> para parágrafos
- Use <strong> para destaques importantes
- Use <h3> para títulos (máximo 2-3)
- Use <blockquote><p><strong>...</strong></p></blockquote> para frase final

## Tom de Voz
- Direto e empoderador
- Conversa COM a pessoa
- Foco em ação e estratégia

## Notificação
- Título: máximo 25 caracteres
- Texto: máximo 60 caracteres
- Desperte curiosidade

## Resposta
Retorne um JSON com esta estrutura exata:
{"text": "HTML formatado aqui", "frase": "frase de impacto", "notification": {"titulo": "titulo curto", "texto": "texto da notificacao"}}

## Texto para processar:
`

// Notification is the push payload produced alongside the body.
type Notification struct {
	Titulo string `json:"titulo"`
	Texto  string `json:"texto"`
}

// Result is the structured post-processing output.
type Result struct {
	Text         string       `json:"text"`
	Frase        string       `json:"frase"`
	Notification Notification `json:"notification"`
}

// Processor reformats raw interpretations through the LLM gateway and
// salvages whatever the model returns.
type Processor struct {
	generator llm.TextGenerator
	cfg       model.LLMConfig
	logger    *zap.Logger
}

// NewProcessor creates a Processor using the given reformatting model.
func NewProcessor(generator llm.TextGenerator, cfg config.LunaConfig, logger *zap.Logger) *Processor {
	return &Processor{
		generator: generator,
		cfg: model.LLMConfig{
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		logger: logger.Named("luna"),
	}
}

// Process reformats rawText into a Result. It never returns an error:
// parse failures degrade through regex extraction down to heuristic
// markdown formatting of the original text.
func (p *Processor) Process(ctx context.Context, rawText string) Result {
	if len(strings.TrimSpace(rawText)) < minInputLength {
		p.logger.Warn("input too short to reformat", zap.Int("length", len(rawText)))
		return p.fallback(rawText)
	}

	input := truncateAtRune(rawText, maxInputLength)

	response, err := p.generator.Generate(ctx, reformatPrompt+input, systemPrompt, p.cfg)
	if err != nil {
		p.logger.Error("reformatting call failed", zap.Error(err))
		return p.fallback(rawText)
	}

	if result, ok := parseStructured(response); ok {
		return result
	}
	p.logger.Warn("structured parse failed, salvaging response",
		zap.Int("response_length", len(response)))
	return p.salvageFromResponse(response)
}

// truncateAtRune cuts s to at most max bytes without splitting a
// multi-byte rune at the boundary.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// parseStructured applies the strict parsing layers: trim, strip a code
// fence, extract the first balanced JSON object, then unmarshal. The
// object must carry a "text" key to count as valid.
func parseStructured(response string) (Result, bool) {
	cleaned := stripCodeFence(strings.TrimSpace(response))
	if span, ok := extractJSONObject(cleaned); ok {
		cleaned = span
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return Result{}, false
	}
	if _, ok := fields["text"]; !ok {
		return Result{}, false
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return Result{}, false
	}
	if result.Notification.Titulo == "" && result.Notification.Texto == "" {
		result.Notification = genericNotification()
	}
	return result, true
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// extractJSONObject returns the first balanced {...} span, tracking string
// literals so braces inside values do not break the count.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

var textFieldPattern = regexp.MustCompile(`(?s)"text"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// salvageFromResponse extracts just the text field from a malformed
// reply, or formats the whole reply as basic HTML.
func (p *Processor) salvageFromResponse(response string) Result {
	if m := textFieldPattern.FindStringSubmatch(response); m != nil {
		text := strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\\`, `\`).Replace(m[1])
		p.logger.Info("extracted text field via regex")
		return Result{Text: text, Notification: genericNotification()}
	}
	return Result{Text: formatBasicHTML(response), Notification: genericNotification()}
}

func (p *Processor) fallback(rawText string) Result {
	return Result{Text: formatBasicHTML(rawText), Notification: genericNotification()}
}

func genericNotification() Notification {
	return Notification{Titulo: "Nova análise", Texto: "Sua interpretação está pronta"}
}

var (
	headerH4Pattern = regexp.MustCompile(`(?m)^####\s*(.+)$`)
	headerH3Pattern = regexp.MustCompile(`(?m)^#{1,3}\s*(.+)$`)
	boldPattern     = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// formatBasicHTML converts minimal markdown into HTML. Text that already
// looks like HTML passes through untouched.
func formatBasicHTML(text string) string {
	if text == "" {
		return "<p></p>"
	}
	if strings.HasPrefix(strings.TrimSpace(text), "<") {
		return text
	}

	text = headerH4Pattern.ReplaceAllString(text, "<h4>$1</h4>")
	text = headerH3Pattern.ReplaceAllString(text, "<h3>$1</h3>")
	text = boldPattern.ReplaceAllString(text, "<strong>$1</strong>")

	blocks := strings.Split(text, "\n\n")
	formatted := make([]string, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if strings.HasPrefix(block, "<h") {
			formatted = append(formatted, block)
		} else {
			formatted = append(formatted, "<p>"+block+"</p>")
		}
	}
	if len(formatted) == 0 {
		return "<p></p>"
	}
	return strings.Join(formatted, "\n")
}
