package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser() *Parser {
	return New(zap.NewNop())
}

func TestParse_DirectLookup(t *testing.T) {
	p := newTestParser()

	ctx := Context{"user": {"email": "ana@example.com"}}
	out, warnings := p.Parse("Contato: @user.email", ctx)

	assert.Equal(t, "Contato: ana@example.com", out)
	assert.Empty(t, warnings)
}

func TestParse_SynonymFallback(t *testing.T) {
	p := newTestParser()

	ctx := Context{"user": {"nome": "Ana"}}
	out, warnings := p.Parse("@user.name", ctx)

	assert.Equal(t, "Ana", out)
	assert.Empty(t, warnings)
}

func TestParse_MacSynonyms(t *testing.T) {
	p := newTestParser()

	ctx := Context{"mac": {"sol_signo": "Leão", "lua": "Peixes"}}
	out, warnings := p.Parse("Sol em @mac.sun, Lua em @mac.moon", ctx)

	assert.Equal(t, "Sol em Leão, Lua em Peixes", out)
	assert.Empty(t, warnings)
}

func TestParse_FullSerializesCategory(t *testing.T) {
	p := newTestParser()

	ctx := Context{"mac": {"sol": "Leo"}}
	out, warnings := p.Parse("@mac.full", ctx)

	assert.JSONEq(t, `{"sol": "Leo"}`, out)
	assert.Empty(t, warnings)
}

func TestParse_FullOnEmptyCategory(t *testing.T) {
	p := newTestParser()

	out, _ := p.Parse("@custom.full", Context{"custom": {}})

	assert.Equal(t, "{}", out)
}

func TestParse_UnresolvedTokenLeftVerbatim(t *testing.T) {
	p := newTestParser()

	out, warnings := p.Parse("@foo.bar", Context{})

	assert.Equal(t, "@foo.bar", out)
	require.Len(t, warnings, 1)
	assert.Equal(t, "@foo.bar", warnings[0])
}

func TestParse_NestedFieldPath(t *testing.T) {
	p := newTestParser()

	ctx := Context{"custom": {"profile": map[string]any{"name": "Rui"}}}
	out, warnings := p.Parse("@custom.profile.name", ctx)

	assert.Equal(t, "Rui", out)
	assert.Empty(t, warnings)
}

func TestParse_MapValueSerializedAsJSON(t *testing.T) {
	p := newTestParser()

	ctx := Context{"custom": {"extras": map[string]any{"casa": float64(10)}}}
	out, warnings := p.Parse("@custom.extras", ctx)

	assert.JSONEq(t, `{"casa": 10}`, out)
	assert.Empty(t, warnings)
}

func TestParse_MixedResolvedAndUnresolved(t *testing.T) {
	p := newTestParser()

	ctx := Context{"user": {"nome": "Ana"}}
	out, warnings := p.Parse("Olá @user.name, seu signo é @mac.sun", ctx)

	assert.Equal(t, "Olá Ana, seu signo é @mac.sun", out)
	assert.Equal(t, []string{"@mac.sun"}, warnings)
}

func TestParse_ContextAliasesCustom(t *testing.T) {
	p := newTestParser()

	ctx := BuildContext(nil, nil, map[string]any{"tema": "carreira"})
	out, warnings := p.Parse("@context.tema é o mesmo que @custom.tema", ctx)

	assert.Equal(t, "carreira é o mesmo que carreira", out)
	assert.Empty(t, warnings)
}

func TestBuildContext_SystemVariables(t *testing.T) {
	ctx := BuildContext(nil, nil, nil)

	require.Contains(t, ctx, "system")
	system := ctx["system"]
	assert.NotEmpty(t, system["date"])
	assert.NotEmpty(t, system["time"])
	assert.NotEmpty(t, system["weekday"])
	assert.NotEmpty(t, system["year"])
}

func TestExtractVariables(t *testing.T) {
	variables := ExtractVariables("@user.name gosta de @mac.sun e @system.date")

	require.Len(t, variables, 3)
	assert.Equal(t, Variable{Category: "user", Field: "name"}, variables[0])
	assert.Equal(t, "@mac.sun", variables[1].Token())
}

func TestValidateTemplate(t *testing.T) {
	result := ValidateTemplate("@user.name e @planeta.sol")

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"@user.name", "@planeta.sol"}, result.Variables)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "@planeta.sol")
}

func TestValidateTemplate_Clean(t *testing.T) {
	result := ValidateTemplate("@user.name em @system.date")

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidateTemplate_ContextCategoryIsKnown(t *testing.T) {
	result := ValidateTemplate("Foco em @context.tema")

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}
