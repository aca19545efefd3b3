package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"vibra-server/internal/service"
)

// MockInterpretationService is a mock type for the InterpretationService type
type MockInterpretationService struct {
	mock.Mock
}

func (_m *MockInterpretationService) TriggerByEvent(ctx context.Context, req service.TriggerRequest) (*service.TriggerResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *service.TriggerResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.TriggerResult)
	}
	return r0, ret.Error(1)
}

func (_m *MockInterpretationService) ProcessPending(ctx context.Context, limit int) (*service.ProcessResult, error) {
	ret := _m.Called(ctx, limit)

	var r0 *service.ProcessResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.ProcessResult)
	}
	return r0, ret.Error(1)
}

func (_m *MockInterpretationService) ForceProcess(ctx context.Context, userID uuid.UUID, templateKey string) (*service.ItemResult, error) {
	ret := _m.Called(ctx, userID, templateKey)

	var r0 *service.ItemResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.ItemResult)
	}
	return r0, ret.Error(1)
}

// NewMockInterpretationService creates a new instance of
// MockInterpretationService and registers the testing interface on the mock.
func NewMockInterpretationService(t interface {
	mock.TestingT
	Helper()
}) *MockInterpretationService {
	m := &MockInterpretationService{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.InterpretationService = (*MockInterpretationService)(nil)
