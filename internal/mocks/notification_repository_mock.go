package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vibra-server/internal/model"
	"vibra-server/internal/repository"
)

// MockNotificationRepository is a mock type for the NotificationRepository type
type MockNotificationRepository struct {
	mock.Mock
}

func (_m *MockNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	ret := _m.Called(ctx, n)
	return ret.Error(0)
}

// NewMockNotificationRepository creates a new instance of
// MockNotificationRepository and registers the testing interface on the mock.
func NewMockNotificationRepository(t interface {
	mock.TestingT
	Helper()
}) *MockNotificationRepository {
	m := &MockNotificationRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.NotificationRepository = (*MockNotificationRepository)(nil)
