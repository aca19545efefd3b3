package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"vibra-server/internal/repository"
)

// MockInterpretationRepository is a mock type for the
// InterpretationRepository type
type MockInterpretationRepository struct {
	mock.Mock
}

func (_m *MockInterpretationRepository) Save(ctx context.Context, userID uuid.UUID, action, content string) error {
	ret := _m.Called(ctx, userID, action, content)
	return ret.Error(0)
}

func (_m *MockInterpretationRepository) Get(ctx context.Context, userID uuid.UUID, action string) (string, error) {
	ret := _m.Called(ctx, userID, action)
	return ret.String(0), ret.Error(1)
}

// NewMockInterpretationRepository creates a new instance of
// MockInterpretationRepository and registers the testing interface on the mock.
func NewMockInterpretationRepository(t interface {
	mock.TestingT
	Helper()
}) *MockInterpretationRepository {
	m := &MockInterpretationRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.InterpretationRepository = (*MockInterpretationRepository)(nil)
