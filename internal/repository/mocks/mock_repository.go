package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portalapi/internal/model"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *MockRepository) ListWhere(ctx context.Context, c model.Collection, pred func(model.Record) bool) ([]model.Record, error) {
	args := m.Called(ctx, c, pred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, c model.Collection, id int64) (model.Record, error) {
	args := m.Called(ctx, c, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, c model.Collection, fields model.Record) (model.Record, error) {
	args := m.Called(ctx, c, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, c model.Collection, id int64, fields model.Record) (model.Record, error) {
	args := m.Called(ctx, c, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, c model.Collection, id int64) (bool, error) {
	args := m.Called(ctx, c, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Mutate(ctx context.Context, fn func(doc model.Document) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}
