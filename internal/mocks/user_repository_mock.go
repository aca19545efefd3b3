package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"vibra-server/internal/model"
	"vibra-server/internal/repository"
)

// MockUserRepository is a mock type for the UserRepository type
type MockUserRepository struct {
	mock.Mock
}

func (_m *MockUserRepository) GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	ret := _m.Called(ctx, userID)

	var r0 model.Profile
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(model.Profile)
	}
	return r0, ret.Error(1)
}

func (_m *MockUserRepository) GetAstralMap(ctx context.Context, userID uuid.UUID) (model.AstralMap, error) {
	ret := _m.Called(ctx, userID)

	var r0 model.AstralMap
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(model.AstralMap)
	}
	return r0, ret.Error(1)
}

// NewMockUserRepository creates a new instance of MockUserRepository and
// registers the testing interface on the mock.
func NewMockUserRepository(t interface {
	mock.TestingT
	Helper()
}) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.UserRepository = (*MockUserRepository)(nil)
