package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ledgerscan/internal/port"
)

// MockExtractionProvider is a mock implementation of port.ExtractionProvider.
type MockExtractionProvider struct {
	mock.Mock
}

func (m *MockExtractionProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockExtractionProvider) Classify(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ProviderOutput), args.Error(1)
}

func (m *MockExtractionProvider) Extract(ctx context.Context, input port.ProviderInput) (*port.ProviderOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ProviderOutput), args.Error(1)
}
