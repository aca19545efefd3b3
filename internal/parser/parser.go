// Package parser resolves @category.field variables in prompt templates
// against a per-attempt execution context.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// variablePattern matches @category.field tokens. The field part may carry
// dotted sub-paths for nested lookup, e.g. @user.profile.name.
var variablePattern = regexp.MustCompile(`@(\w+)\.([\w.]*\w)`)

// Context is the substitution data keyed by category name.
type Context map[string]map[string]any

// fieldSynonyms maps common template field names to the column names
// actually present in the source rows.
var fieldSynonyms = map[string]map[string][]string{
	"mac": {
		"sun":        {"sol_signo", "sol"},
		"sun_full":   {"sol"},
		"moon":       {"lua_signo", "lua"},
		"moon_full":  {"lua"},
		"ascendant":  {"ascendente_signo", "asc_signo", "ascendente"},
		"midheaven":  {"mc_signo", "meio_ceu_signo", "mc"},
		"mercury":    {"mercurio_signo", "mercurio"},
		"venus":      {"venus_signo", "venus"},
		"mars":       {"marte_signo", "marte"},
		"jupiter":    {"jupiter_signo", "jupiter"},
		"saturn":     {"saturno_signo", "saturno"},
		"birth_date": {"data_nascimento"},
		"birth_city": {"cidade"},
		"birth_time": {"hora_nascimento"},
	},
	"user": {
		"name":       {"nome", "full_name", "display_name"},
		"first_name": {"primeiro_nome"},
		"email":      {"email"},
		"plan":       {"plano", "subscription_plan"},
	},
}

// knownCategories are the categories admin tooling considers valid.
var knownCategories = map[string]struct{}{
	"user":    {},
	"mac":     {},
	"test":    {},
	"system":  {},
	"custom":  {},
	"context": {},
}

// Parser substitutes template variables. It is stateless apart from its
// logger and safe for concurrent use.
type Parser struct {
	logger *zap.Logger
}

// New creates a Parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger.Named("parser")}
}

// BuildContext assembles the execution context from the user profile, the
// astrology map row and the caller-supplied custom data, plus generated
// system variables.
func BuildContext(user, mac, custom map[string]any) Context {
	customData := orEmpty(custom)
	return Context{
		"user":   orEmpty(user),
		"mac":    orEmpty(mac),
		"custom": customData,
		// "context" is an accepted alias for the custom category.
		"context": customData,
		"system":  systemVariables(time.Now()),
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var weekdaysPT = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

var monthsPT = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

func systemVariables(now time.Time) map[string]any {
	month := monthsPT[now.Month()-1]
	return map[string]any{
		"date":      now.Format("02/01/2006"),
		"date_full": fmt.Sprintf("%02d de %s de %d", now.Day(), month, now.Year()),
		"time":      now.Format("15:04"),
		"datetime":  now.Format("02/01/2006 15:04"),
		"weekday":   weekdaysPT[now.Weekday()],
		"month":     month,
		"year":      fmt.Sprintf("%d", now.Year()),
	}
}

// Parse replaces every @category.field token in template with its resolved
// value. Unresolved tokens are left verbatim in the output and returned as
// warnings; they never cause an error.
func (p *Parser) Parse(template string, ctx Context) (string, []string) {
	var warnings []string
	out := variablePattern.ReplaceAllStringFunc(template, func(token string) string {
		groups := variablePattern.FindStringSubmatch(token)
		category, field := groups[1], groups[2]
		value, ok := p.resolve(category, field, ctx)
		if !ok {
			warnings = append(warnings, token)
			p.logger.Warn("unresolved template variable",
				zap.String("category", category),
				zap.String("field", field))
			return token
		}
		return value
	})
	return out, warnings
}

func (p *Parser) resolve(category, field string, ctx Context) (string, bool) {
	data := ctx[category]

	// @category.full serializes the whole category as compact JSON.
	if field == "full" {
		if len(data) == 0 {
			p.logger.Warn("full variable requested for empty category",
				zap.String("category", category))
			return "{}", true
		}
		return stringify(data), true
	}

	if data == nil {
		return "", false
	}

	if value, ok := lookup(data, field); ok {
		return stringify(value), true
	}

	for _, synonym := range fieldSynonyms[category][field] {
		if value, ok := lookup(data, synonym); ok {
			return stringify(value), true
		}
	}

	return "", false
}

// lookup resolves a possibly dotted field path within a mapping.
func lookup(data map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Variable is one extracted template token.
type Variable struct {
	Category string `json:"category"`
	Field    string `json:"field"`
}

// Token returns the literal @category.field form.
func (v Variable) Token() string {
	return "@" + v.Category + "." + v.Field
}

// ExtractVariables lists every variable token found in the template.
func ExtractVariables(template string) []Variable {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	variables := make([]Variable, 0, len(matches))
	for _, m := range matches {
		variables = append(variables, Variable{Category: m[1], Field: m[2]})
	}
	return variables
}

// ValidationResult reports template introspection for admin tooling.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Variables []string `json:"variables"`
	Warnings  []string `json:"warnings"`
}

// ValidateTemplate checks a template for unknown variable categories.
func ValidateTemplate(template string) ValidationResult {
	variables := ExtractVariables(template)
	result := ValidationResult{
		Variables: make([]string, 0, len(variables)),
		Warnings:  []string{},
	}
	for _, v := range variables {
		result.Variables = append(result.Variables, v.Token())
		if _, ok := knownCategories[v.Category]; !ok {
			result.Warnings = append(result.Warnings, "Unknown category: "+v.Token())
		}
	}
	result.Valid = len(result.Warnings) == 0
	return result
}
