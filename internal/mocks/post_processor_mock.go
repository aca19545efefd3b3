package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vibra-server/internal/luna"
	"vibra-server/internal/service"
)

// MockPostProcessor is a mock type for the PostProcessor type
type MockPostProcessor struct {
	mock.Mock
}

func (_m *MockPostProcessor) Process(ctx context.Context, rawText string) luna.Result {
	ret := _m.Called(ctx, rawText)
	return ret.Get(0).(luna.Result)
}

// NewMockPostProcessor creates a new instance of MockPostProcessor and
// registers the testing interface on the mock.
func NewMockPostProcessor(t interface {
	mock.TestingT
	Helper()
}) *MockPostProcessor {
	m := &MockPostProcessor{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.PostProcessor = (*MockPostProcessor)(nil)
