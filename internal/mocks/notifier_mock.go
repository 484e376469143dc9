package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"planner-server/internal/progress"
)

// MockNotifier is a mock type for the progress.Notifier type
type MockNotifier struct {
	mock.Mock
}

func (_m *MockNotifier) NotifyProgress(ctx context.Context, update progress.Update) error {
	ret := _m.Called(ctx, update)
	return ret.Error(0)
}

// NewMockNotifier creates a new instance of MockNotifier.
func NewMockNotifier(t interface {
	mock.TestingT
	Helper()
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ progress.Notifier = (*MockNotifier)(nil)
