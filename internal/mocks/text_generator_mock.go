package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vibra-server/internal/llm"
	"vibra-server/internal/model"
)

// MockTextGenerator is a mock type for the TextGenerator type
type MockTextGenerator struct {
	mock.Mock
}

func (_m *MockTextGenerator) Generate(ctx context.Context, prompt, systemPrompt string, cfg model.LLMConfig) (string, error) {
	ret := _m.Called(ctx, prompt, systemPrompt, cfg)
	return ret.String(0), ret.Error(1)
}

// NewMockTextGenerator creates a new instance of MockTextGenerator and
// registers the testing interface on the mock.
func NewMockTextGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockTextGenerator {
	m := &MockTextGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ llm.TextGenerator = (*MockTextGenerator)(nil)
