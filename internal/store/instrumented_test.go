package store

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portalapi/internal/model"
	"portalapi/internal/store/mocks"
)

func TestInstrumented_CountsOperations(t *testing.T) {
	ctx := context.Background()
	next := new(mocks.MockStore)
	next.On("Load", ctx).Return(model.NewDocument(), nil).Once()
	next.On("Save", ctx, mock.Anything).Return(errors.New("disk full")).Once()
	next.On("Ping", ctx).Return(nil).Once()

	s, err := NewInstrumented(next, prometheus.NewRegistry())
	require.NoError(t, err)

	_, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Error(t, s.Save(ctx, model.NewDocument()))
	assert.NoError(t, s.Ping(ctx))

	assert.Equal(t, float64(1), testutil.ToFloat64(s.ops.WithLabelValues("load", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.ops.WithLabelValues("save", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(s.duration))
	next.AssertExpectations(t)
}

func TestInstrumented_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewInstrumented(NewMemoryStore(), reg)
	require.NoError(t, err)

	_, err = NewInstrumented(NewMemoryStore(), reg)
	assert.Error(t, err)
}
