package mocks

import (
	"context"

	"newsroom-server/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockProgressPublisher is a mock type for messaging.ProgressPublisher.
type MockProgressPublisher struct {
	mock.Mock
}

var _ messaging.ProgressPublisher = (*MockProgressPublisher)(nil)

func (m *MockProgressPublisher) PublishProgress(ctx context.Context, update messaging.ProgressUpdate) error {
	ret := m.Called(ctx, update)
	return ret.Error(0)
}

// NewMockProgressPublisher creates the mock and registers the test
// cleanup assertions.
func NewMockProgressPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockProgressPublisher {
	m := &MockProgressPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}
