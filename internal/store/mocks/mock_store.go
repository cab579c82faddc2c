package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portalapi/internal/model"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context) (model.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, doc model.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
