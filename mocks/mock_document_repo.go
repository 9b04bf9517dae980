package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ledgerscan/internal/domain"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Document), args.Int(1), args.Error(2)
}

func (m *MockDocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.PipelineStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *MockDocumentRepo) UpdateClassification(ctx context.Context, id uuid.UUID, docType domain.DocumentType, confidence float64, model string) error {
	args := m.Called(ctx, id, docType, confidence, model)
	return args.Error(0)
}

func (m *MockDocumentRepo) Complete(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockDocumentRepo) Claim(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (*domain.Document, error) {
	args := m.Called(ctx, id, owner, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) ClaimNext(ctx context.Context, owner string, limit int, ttl time.Duration) ([]domain.Document, error) {
	args := m.Called(ctx, owner, limit, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) ExtendLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) error {
	args := m.Called(ctx, id, owner, ttl)
	return args.Error(0)
}

func (m *MockDocumentRepo) ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}

func (m *MockDocumentRepo) Reset(ctx context.Context, id uuid.UUID, owner string) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}
