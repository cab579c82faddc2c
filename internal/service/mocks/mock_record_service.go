package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portalapi/internal/attachment"
	"portalapi/internal/model"
)

type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *MockRecordService) Get(ctx context.Context, c model.Collection, id int64) (model.Record, error) {
	args := m.Called(ctx, c, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRecordService) Create(ctx context.Context, c model.Collection, fields model.Record, upload *attachment.Upload) (model.Record, error) {
	args := m.Called(ctx, c, fields, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRecordService) Update(ctx context.Context, c model.Collection, id int64, fields model.Record, upload *attachment.Upload) (model.Record, error) {
	args := m.Called(ctx, c, id, fields, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRecordService) Delete(ctx context.Context, c model.Collection, id int64) error {
	args := m.Called(ctx, c, id)
	return args.Error(0)
}

func (m *MockRecordService) Attach(ctx context.Context, c model.Collection, id int64, upload *attachment.Upload) (model.Record, error) {
	args := m.Called(ctx, c, id, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRecordService) Detach(ctx context.Context, c model.Collection, id int64) (model.Record, error) {
	args := m.Called(ctx, c, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Record), args.Error(1)
}

func (m *MockRecordService) QuestionsForExam(ctx context.Context, examID int64) ([]model.Record, error) {
	args := m.Called(ctx, examID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *MockRecordService) EventsOn(ctx context.Context, date string) ([]model.Record, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}
