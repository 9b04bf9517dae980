package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
)

type processingLogRepo struct {
	db *sqlx.DB
}

// NewProcessingLogRepo creates a new PostgreSQL-backed ProcessingLogRepository.
func NewProcessingLogRepo(db *sqlx.DB) port.ProcessingLogRepository {
	return &processingLogRepo{db: db}
}

func (r *processingLogRepo) Append(ctx context.Context, entry *domain.ProcessingLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processing_logs (id, document_id, stage, outcome, attempt, duration_millis, error_detail, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.DocumentID, entry.Stage, entry.Outcome, entry.Attempt, entry.DurationMillis,
		entry.ErrorDetail, nullableJSON(entry.Metadata), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("processingLogRepo.Append: %w", err)
	}
	return nil
}

// ListByDocument returns entries in the order they were appended.
func (r *processingLogRepo) ListByDocument(ctx context.Context, docID uuid.UUID) ([]domain.ProcessingLogEntry, error) {
	var entries []domain.ProcessingLogEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, document_id, stage, outcome, attempt, duration_millis, error_detail, metadata, created_at
		 FROM processing_logs WHERE document_id = $1 ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("processingLogRepo.ListByDocument: %w", err)
	}
	return entries, nil
}

func (r *processingLogRepo) CountByDocument(ctx context.Context, docID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM processing_logs WHERE document_id = $1", docID); err != nil {
		return 0, fmt.Errorf("processingLogRepo.CountByDocument: %w", err)
	}
	return n, nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
