package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portalapi/internal/auth"
	"portalapi/internal/model"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Register(ctx context.Context, username, password string) (model.Record, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockAuthenticator) Login(ctx context.Context, username, password string) (auth.Session, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *MockAuthenticator) Verify(ctx context.Context, token string) (auth.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(auth.Identity), args.Error(1)
}
