package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pageza/kitchen-assistant/backend/internal/provider"
)

// MockProvider is a mock implementation of provider.Provider
type MockProvider struct {
	mock.Mock
}

// DescribeImage mocks the DescribeImage method
func (m *MockProvider) DescribeImage(ctx context.Context, img provider.Image, instruction string) (string, error) {
	args := m.Called(ctx, img, instruction)
	return args.String(0), args.Error(1)
}

// Complete mocks the Complete method
func (m *MockProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}
