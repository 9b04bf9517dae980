package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/export"
	"ledgerscan/internal/port"
)

// ExportService defines the read side used by exports and document views.
type ExportService interface {
	// Rows returns the flat export of a COMPLETED document.
	Rows(ctx context.Context, id uuid.UUID) (*export.Export, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error)
	ListLogs(ctx context.Context, id uuid.UUID) ([]domain.ProcessingLogEntry, error)
	// LastError returns the error detail of the most recent failed log entry.
	LastError(ctx context.Context, id uuid.UUID) (string, error)
}

type exportService struct {
	docRepo   port.DocumentRepository
	fieldRepo port.FieldRepository
	logRepo   port.ProcessingLogRepository
}

// NewExportService creates a new ExportService implementation.
func NewExportService(
	docRepo port.DocumentRepository,
	fieldRepo port.FieldRepository,
	logRepo port.ProcessingLogRepository,
) ExportService {
	return &exportService{
		docRepo:   docRepo,
		fieldRepo: fieldRepo,
		logRepo:   logRepo,
	}
}

func (s *exportService) Rows(ctx context.Context, id uuid.UUID) (*export.Export, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusCompleted {
		return nil, domain.ErrDocumentNotCompleted
	}

	fields, err := s.fieldRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("exportService.Rows: listing fields: %w", err)
	}
	txns, err := s.fieldRepo.ListTransactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("exportService.Rows: listing transactions: %w", err)
	}
	return export.Build(doc, fields, txns), nil
}

func (s *exportService) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, id)
}

func (s *exportService) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	return s.docRepo.List(ctx, filter)
}

func (s *exportService) ListLogs(ctx context.Context, id uuid.UUID) ([]domain.ProcessingLogEntry, error) {
	if _, err := s.docRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.logRepo.ListByDocument(ctx, id)
}

func (s *exportService) LastError(ctx context.Context, id uuid.UUID) (string, error) {
	entries, err := s.logRepo.ListByDocument(ctx, id)
	if err != nil {
		return "", err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Outcome == domain.OutcomeFailure && e.ErrorDetail != nil {
			return sanitizeDetail(*e.ErrorDetail), nil
		}
	}
	return "", nil
}

const maxPublicDetail = 200

// sanitizeDetail keeps the first line of a stored error and caps its length
// so provider response bodies are not echoed to clients.
func sanitizeDetail(detail string) string {
	if i := strings.IndexByte(detail, '\n'); i >= 0 {
		detail = detail[:i]
	}
	if len(detail) > maxPublicDetail {
		detail = detail[:maxPublicDetail] + "..."
	}
	return detail
}
