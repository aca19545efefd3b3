package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"vibra-server/internal/model"
	"vibra-server/internal/repository"
)

// MockTemplateRepository is a mock type for the TemplateRepository type
type MockTemplateRepository struct {
	mock.Mock
}

func (_m *MockTemplateRepository) GetByEvent(ctx context.Context, event model.TriggerEvent, plan string) ([]model.Template, error) {
	ret := _m.Called(ctx, event, plan)

	var r0 []model.Template
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Template)
	}
	return r0, ret.Error(1)
}

func (_m *MockTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.Template
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Template)
	}
	return r0, ret.Error(1)
}

func (_m *MockTemplateRepository) GetByKey(ctx context.Context, customKey string) (*model.Template, error) {
	ret := _m.Called(ctx, customKey)

	var r0 *model.Template
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Template)
	}
	return r0, ret.Error(1)
}

func (_m *MockTemplateRepository) List(ctx context.Context, includeInactive bool) ([]model.Template, error) {
	ret := _m.Called(ctx, includeInactive)

	var r0 []model.Template
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Template)
	}
	return r0, ret.Error(1)
}

func (_m *MockTemplateRepository) Create(ctx context.Context, t *model.Template) error {
	ret := _m.Called(ctx, t)
	return ret.Error(0)
}

func (_m *MockTemplateRepository) Update(ctx context.Context, t *model.Template) error {
	ret := _m.Called(ctx, t)
	return ret.Error(0)
}

func (_m *MockTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// NewMockTemplateRepository creates a new instance of MockTemplateRepository
// and registers the testing interface on the mock.
func NewMockTemplateRepository(t interface {
	mock.TestingT
	Helper()
}) *MockTemplateRepository {
	m := &MockTemplateRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.TemplateRepository = (*MockTemplateRepository)(nil)
