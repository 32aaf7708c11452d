package middleware_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockLedger records what reaches the backend.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Seen(ctx context.Context, namespace, id string) (bool, error) {
	args := m.Called(ctx, namespace, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) Mark(ctx context.Context, namespace, id string) error {
	args := m.Called(ctx, namespace, id)
	return args.Error(0)
}

func (m *MockLedger) Consume(ctx context.Context, quota string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, quota, limit, window)
	return args.Bool(0), args.Error(1)
}
