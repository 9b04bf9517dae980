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

// insertBatch keeps multi-row inserts below the PostgreSQL parameter limit.
const insertBatch = 1000

const fieldColumns = `id, document_id, position, name, field_group, row_index, field_key, semantic_type,
	raw_value, normalized_value, currency, provider_confidence, confidence, page, bbox,
	needs_review, review_reasons, created_at`

const transactionColumns = `id, document_id, position, txn_date, description, debit, credit, balance,
	currency, raw_row, normalized_row, field_confidence, confidence, needs_review, review_reasons, page,
	created_at`

type fieldRepo struct {
	db *sqlx.DB
}

// NewFieldRepo creates a new PostgreSQL-backed FieldRepository.
func NewFieldRepo(db *sqlx.DB) port.FieldRepository {
	return &fieldRepo{db: db}
}

func (r *fieldRepo) ReplaceFields(ctx context.Context, docID uuid.UUID, fields []domain.ExtractedField) error {
	now := time.Now().UTC()
	for i := range fields {
		if fields[i].ID == uuid.Nil {
			fields[i].ID = uuid.New()
		}
		fields[i].DocumentID = docID
		fields[i].CreatedAt = now
		if fields[i].ReviewReasons == nil {
			fields[i].ReviewReasons = domain.JSONStrings{}
		}
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM extracted_fields WHERE document_id = $1", docID); err != nil {
			return fmt.Errorf("fieldRepo.ReplaceFields delete: %w", err)
		}
		for start := 0; start < len(fields); start += insertBatch {
			end := min(start+insertBatch, len(fields))
			_, err := tx.NamedExecContext(ctx,
				`INSERT INTO extracted_fields (`+fieldColumns+`) VALUES (
					:id, :document_id, :position, :name, :field_group, :row_index, :field_key, :semantic_type,
					:raw_value, :normalized_value, :currency, :provider_confidence, :confidence, :page, :bbox,
					:needs_review, :review_reasons, :created_at)`,
				fields[start:end])
			if err != nil {
				return fmt.Errorf("fieldRepo.ReplaceFields insert: %w", err)
			}
		}
		return nil
	})
}

func (r *fieldRepo) ListByDocument(ctx context.Context, docID uuid.UUID) ([]domain.ExtractedField, error) {
	var fields []domain.ExtractedField
	err := r.db.SelectContext(ctx, &fields,
		"SELECT "+fieldColumns+" FROM extracted_fields WHERE document_id = $1 ORDER BY position", docID)
	if err != nil {
		return nil, fmt.Errorf("fieldRepo.ListByDocument: %w", err)
	}
	return fields, nil
}

func (r *fieldRepo) UpdateFields(ctx context.Context, fields []domain.ExtractedField) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i := range fields {
			if fields[i].ReviewReasons == nil {
				fields[i].ReviewReasons = domain.JSONStrings{}
			}
			_, err := tx.NamedExecContext(ctx,
				`UPDATE extracted_fields SET
					semantic_type = :semantic_type, raw_value = :raw_value, normalized_value = :normalized_value,
					currency = :currency, confidence = :confidence, needs_review = :needs_review,
					review_reasons = :review_reasons
				 WHERE id = :id`,
				&fields[i])
			if err != nil {
				return fmt.Errorf("fieldRepo.UpdateFields: %w", err)
			}
		}
		return nil
	})
}

func (r *fieldRepo) ReplaceTransactions(ctx context.Context, docID uuid.UUID, txns []domain.Transaction) error {
	now := time.Now().UTC()
	for i := range txns {
		if txns[i].ID == uuid.Nil {
			txns[i].ID = uuid.New()
		}
		txns[i].DocumentID = docID
		txns[i].CreatedAt = now
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE document_id = $1", docID); err != nil {
			return fmt.Errorf("fieldRepo.ReplaceTransactions delete: %w", err)
		}
		for start := 0; start < len(txns); start += insertBatch {
			end := min(start+insertBatch, len(txns))
			_, err := tx.NamedExecContext(ctx,
				`INSERT INTO transactions (`+transactionColumns+`) VALUES (
					:id, :document_id, :position, :txn_date, :description, :debit, :credit, :balance,
					:currency, :raw_row, :normalized_row, :field_confidence, :confidence, :needs_review,
					:review_reasons, :page, :created_at)`,
				txns[start:end])
			if err != nil {
				return fmt.Errorf("fieldRepo.ReplaceTransactions insert: %w", err)
			}
		}
		return nil
	})
}

func (r *fieldRepo) ListTransactions(ctx context.Context, docID uuid.UUID) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := r.db.SelectContext(ctx, &txns,
		"SELECT "+transactionColumns+" FROM transactions WHERE document_id = $1 ORDER BY position", docID)
	if err != nil {
		return nil, fmt.Errorf("fieldRepo.ListTransactions: %w", err)
	}
	return txns, nil
}

func (r *fieldRepo) UpdateTransactions(ctx context.Context, txns []domain.Transaction) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i := range txns {
			_, err := tx.NamedExecContext(ctx,
				`UPDATE transactions SET
					txn_date = :txn_date, description = :description, debit = :debit, credit = :credit,
					balance = :balance, currency = :currency, raw_row = :raw_row, normalized_row = :normalized_row,
					field_confidence = :field_confidence, confidence = :confidence,
					needs_review = :needs_review, review_reasons = :review_reasons
				 WHERE id = :id`,
				&txns[i])
			if err != nil {
				return fmt.Errorf("fieldRepo.UpdateTransactions: %w", err)
			}
		}
		return nil
	})
}
