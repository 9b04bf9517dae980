package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ledgerscan/internal/domain"
)

// DocumentRepository defines the contract for document persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error)
	// UpdateStatus moves the document from one status to the next. It fails
	// with domain.ErrInvalidTransition when the stored status is not from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.PipelineStatus) error
	UpdateClassification(ctx context.Context, id uuid.UUID, docType domain.DocumentType, confidence float64, model string) error
	Complete(ctx context.Context, doc *domain.Document) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error

	// Claim takes the processing lease on a document. It fails with
	// domain.ErrAlreadyClaimed while another owner holds a live lease.
	Claim(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (*domain.Document, error)
	// ClaimNext leases up to limit non-terminal documents without a live lease.
	ClaimNext(ctx context.Context, owner string, limit int, ttl time.Duration) ([]domain.Document, error)
	// ExtendLease fails with domain.ErrLeaseExpired when owner no longer holds the lease.
	ExtendLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error
	// Reset returns a leased document to PENDING and deletes its fields and
	// transactions. Processing logs are kept.
	Reset(ctx context.Context, id uuid.UUID, owner string) error
}

// FieldRepository defines the contract for extracted field and transaction persistence.
type FieldRepository interface {
	ReplaceFields(ctx context.Context, docID uuid.UUID, fields []domain.ExtractedField) error
	ListByDocument(ctx context.Context, docID uuid.UUID) ([]domain.ExtractedField, error)
	UpdateFields(ctx context.Context, fields []domain.ExtractedField) error
	ReplaceTransactions(ctx context.Context, docID uuid.UUID, txns []domain.Transaction) error
	ListTransactions(ctx context.Context, docID uuid.UUID) ([]domain.Transaction, error)
	UpdateTransactions(ctx context.Context, txns []domain.Transaction) error
}

// ProcessingLogRepository defines the contract for the append-only processing log.
type ProcessingLogRepository interface {
	Append(ctx context.Context, entry *domain.ProcessingLogEntry) error
	ListByDocument(ctx context.Context, docID uuid.UUID) ([]domain.ProcessingLogEntry, error)
	CountByDocument(ctx context.Context, docID uuid.UUID) (int, error)
}

// StoredFileRepository is the database-backed HashIndex.
type StoredFileRepository interface {
	HashIndex
}
