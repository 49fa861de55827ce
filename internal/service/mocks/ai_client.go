package mocks

import (
	"context"

	"newsroom-server/internal/clients"

	"github.com/stretchr/testify/mock"
)

// MockAIClient is a mock type for clients.AIClient.
type MockAIClient struct {
	mock.Mock
}

var _ clients.AIClient = (*MockAIClient)(nil)

func (m *MockAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, clients.UsageInfo, error) {
	ret := m.Called(ctx, systemPrompt, userInput)
	var usage clients.UsageInfo
	if ret.Get(1) != nil {
		usage = ret.Get(1).(clients.UsageInfo)
	}
	return ret.String(0), usage, ret.Error(2)
}

// NewMockAIClient creates the mock and registers the test cleanup
// assertions.
func NewMockAIClient(t interface {
	mock.TestingT
	Helper()
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}
