package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vibra-server/internal/messaging"
)

// MockEventPublisher is a mock type for the EventPublisher type
type MockEventPublisher struct {
	mock.Mock
}

func (_m *MockEventPublisher) PublishInterpretationReady(ctx context.Context, event messaging.InterpretationReadyEvent) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

// NewMockEventPublisher creates a new instance of MockEventPublisher and
// registers the testing interface on the mock.
func NewMockEventPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockEventPublisher {
	m := &MockEventPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ messaging.EventPublisher = (*MockEventPublisher)(nil)
