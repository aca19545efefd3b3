package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"vibra-server/internal/model"
	"vibra-server/internal/repository"
)

// MockQueueRepository is a mock type for the QueueRepository type
type MockQueueRepository struct {
	mock.Mock
}

func (_m *MockQueueRepository) Add(ctx context.Context, userID, templateID uuid.UUID, scheduledFor time.Time, maxRetries int, contextData map[string]any) (*model.QueueItem, error) {
	ret := _m.Called(ctx, userID, templateID, scheduledFor, maxRetries, contextData)

	var r0 *model.QueueItem
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.QueueItem)
	}
	return r0, ret.Error(1)
}

func (_m *MockQueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QueueItem, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.QueueItem
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.QueueItem)
	}
	return r0, ret.Error(1)
}

func (_m *MockQueueRepository) GetPending(ctx context.Context, limit int) ([]model.QueueItem, error) {
	ret := _m.Called(ctx, limit)

	var r0 []model.QueueItem
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.QueueItem)
	}
	return r0, ret.Error(1)
}

func (_m *MockQueueRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	ret := _m.Called(ctx, id)
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockQueueRepository) MarkCompleted(ctx context.Context, id uuid.UUID, resultContent string) error {
	ret := _m.Called(ctx, id, resultContent)
	return ret.Error(0)
}

func (_m *MockQueueRepository) MarkForRetry(ctx context.Context, id uuid.UUID, errorLog string) error {
	ret := _m.Called(ctx, id, errorLog)
	return ret.Error(0)
}

func (_m *MockQueueRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorLog string) error {
	ret := _m.Called(ctx, id, errorLog)
	return ret.Error(0)
}

func (_m *MockQueueRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ret := _m.Called(ctx, olderThan)
	return ret.Int(0), ret.Error(1)
}

func (_m *MockQueueRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	ret := _m.Called(ctx, id)
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockQueueRepository) SaveResponseCache(ctx context.Context, id uuid.UUID, rawResponse string) error {
	ret := _m.Called(ctx, id, rawResponse)
	return ret.Error(0)
}

func (_m *MockQueueRepository) ClearResponseCache(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

func (_m *MockQueueRepository) List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueueItem, error) {
	ret := _m.Called(ctx, status, limit)

	var r0 []model.QueueItem
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.QueueItem)
	}
	return r0, ret.Error(1)
}

func (_m *MockQueueRepository) CountByStatus(ctx context.Context) (map[model.QueueStatus]int, error) {
	ret := _m.Called(ctx)

	var r0 map[model.QueueStatus]int
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[model.QueueStatus]int)
	}
	return r0, ret.Error(1)
}

// NewMockQueueRepository creates a new instance of MockQueueRepository and
// registers the testing interface on the mock.
func NewMockQueueRepository(t interface {
	mock.TestingT
	Helper()
}) *MockQueueRepository {
	m := &MockQueueRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.QueueRepository = (*MockQueueRepository)(nil)
