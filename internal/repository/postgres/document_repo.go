package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
)

const documentColumns = `id, filename, content_type, content_hash, storage_path, size_bytes, page_count,
	document_type, classification_confidence, status, overall_confidence, needs_review,
	failure_reason, lease_owner, lease_expires_at, attempts, model_used, processing_millis,
	uploaded_by, created_at, updated_at, completed_at`

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = domain.StatusPending
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `INSERT INTO documents (
		id, filename, content_type, content_hash, storage_path, size_bytes, page_count,
		status, uploaded_by, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.ContentType, doc.ContentHash, doc.StoragePath, doc.SizeBytes, doc.PageCount,
		doc.Status, doc.UploadedBy, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT "+documentColumns+" FROM documents WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	where := ""
	args := []interface{}{}
	if filter.Status != nil {
		where = " WHERE status = $1"
		args = append(args, *filter.Status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		documentColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	var docs []domain.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List: %w", err)
	}
	return docs, total, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.PipelineStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateStatus: %w", err)
	}
	return r.checkTransition(ctx, result, id, from, to)
}

func (r *documentRepo) UpdateClassification(ctx context.Context, id uuid.UUID, docType domain.DocumentType, confidence float64, model string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET document_type = $1, classification_confidence = $2, model_used = $3, updated_at = NOW()
		 WHERE id = $4`,
		docType, confidence, model, id)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateClassification: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepo) Complete(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET
			status = $1, overall_confidence = $2, needs_review = $3, processing_millis = $4,
			model_used = $5, failure_reason = '', completed_at = $6, updated_at = $6,
			lease_owner = NULL, lease_expires_at = NULL
		 WHERE id = $7 AND status = $8`,
		domain.StatusCompleted, doc.OverallConfidence, doc.NeedsReview, doc.ProcessingMillis,
		doc.ModelUsed, now, doc.ID, domain.StatusScoring)
	if err != nil {
		return fmt.Errorf("documentRepo.Complete: %w", err)
	}
	if err := r.checkTransition(ctx, result, doc.ID, domain.StatusScoring, domain.StatusCompleted); err != nil {
		return err
	}
	doc.Status = domain.StatusCompleted
	doc.CompletedAt = &now
	doc.UpdatedAt = now
	doc.LeaseOwner = nil
	doc.LeaseExpiresAt = nil
	return nil
}

func (r *documentRepo) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, failure_reason = $2, updated_at = NOW(),
			lease_owner = NULL, lease_expires_at = NULL
		 WHERE id = $3 AND status NOT IN ($4, $5)`,
		domain.StatusFailed, reason, id, domain.StatusCompleted, domain.StatusFailed)
	if err != nil {
		return fmt.Errorf("documentRepo.Fail: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: document is terminal", domain.ErrInvalidTransition)
	}
	return nil
}

// Claim takes the lease when nobody holds a live one. Terminal documents
// can be claimed so that they may be reset for reprocessing.
func (r *documentRepo) Claim(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		`UPDATE documents SET lease_owner = $1, lease_expires_at = NOW() + make_interval(secs => $2),
			attempts = attempts + 1, updated_at = NOW()
		 WHERE id = $3 AND (lease_owner IS NULL OR lease_expires_at IS NULL OR lease_expires_at < NOW())
		 RETURNING `+documentColumns,
		owner, ttl.Seconds(), id)
	if err == nil {
		return &doc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("documentRepo.Claim: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrAlreadyClaimed
}

func (r *documentRepo) ClaimNext(ctx context.Context, owner string, limit int, ttl time.Duration) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.SelectContext(ctx, &docs,
		`UPDATE documents SET lease_owner = $1, lease_expires_at = NOW() + make_interval(secs => $2),
			attempts = attempts + 1, updated_at = NOW()
		 WHERE id IN (
			SELECT id FROM documents
			WHERE status NOT IN ($3, $4)
			  AND (lease_owner IS NULL OR lease_expires_at IS NULL OR lease_expires_at < NOW())
			ORDER BY created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+documentColumns,
		owner, ttl.Seconds(), domain.StatusCompleted, domain.StatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ClaimNext: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) ExtendLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET lease_expires_at = NOW() + make_interval(secs => $1), updated_at = NOW()
		 WHERE id = $2 AND lease_owner = $3 AND lease_expires_at > NOW()`,
		ttl.Seconds(), id, owner)
	if err != nil {
		return fmt.Errorf("documentRepo.ExtendLease: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrLeaseExpired
	}
	return nil
}

func (r *documentRepo) ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET lease_owner = NULL, lease_expires_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND lease_owner = $2`,
		id, owner)
	if err != nil {
		return fmt.Errorf("documentRepo.ReleaseLease: %w", err)
	}
	return nil
}

func (r *documentRepo) Reset(ctx context.Context, id uuid.UUID, owner string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE documents SET status = $1, document_type = NULL, classification_confidence = NULL,
				overall_confidence = NULL, needs_review = FALSE, failure_reason = '', model_used = '',
				processing_millis = 0, completed_at = NULL, updated_at = NOW()
			 WHERE id = $2 AND lease_owner = $3 AND lease_expires_at > NOW()`,
			domain.StatusPending, id, owner)
		if err != nil {
			return fmt.Errorf("documentRepo.Reset: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return domain.ErrLeaseExpired
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM extracted_fields WHERE document_id = $1", id); err != nil {
			return fmt.Errorf("documentRepo.Reset fields: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE document_id = $1", id); err != nil {
			return fmt.Errorf("documentRepo.Reset transactions: %w", err)
		}
		return nil
	})
}

// checkTransition turns a zero-row conditional update into the right error.
func (r *documentRepo) checkTransition(ctx context.Context, result sql.Result, id uuid.UUID, from, to domain.PipelineStatus) error {
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	doc, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s (stored status %s)", domain.ErrInvalidTransition, from, to, doc.Status)
}
