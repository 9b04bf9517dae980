package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/service"
)

// MockDocumentProcessor is a mock implementation of service.DocumentProcessor
// and service.Processor.
type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) ProcessClaimed(ctx context.Context, doc *domain.Document, owner string, opts service.ProcessOptions) (*service.ProcessResult, error) {
	args := m.Called(ctx, doc, owner, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}

func (m *MockDocumentProcessor) Process(ctx context.Context, id uuid.UUID, opts service.ProcessOptions) (*service.ProcessResult, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}
