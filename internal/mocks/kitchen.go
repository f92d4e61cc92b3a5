package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pageza/kitchen-assistant/backend/internal/service"
)

// MockKitchenService is a mock implementation of service.IKitchenService
type MockKitchenService struct {
	mock.Mock
}

// Analyze mocks the Analyze method
func (m *MockKitchenService) Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnalyzeResult), args.Error(1)
}
