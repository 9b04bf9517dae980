package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
)

type storedFileRepo struct {
	db *sqlx.DB
}

// NewStoredFileRepo creates a PostgreSQL-backed hash index shared by every
// node that writes to the same blob store.
func NewStoredFileRepo(db *sqlx.DB) port.StoredFileRepository {
	return &storedFileRepo{db: db}
}

func (r *storedFileRepo) Lookup(ctx context.Context, hash string) (*domain.StoredFile, error) {
	var f domain.StoredFile
	err := r.db.GetContext(ctx, &f,
		"SELECT hash, path, size_bytes, created_at FROM stored_files WHERE hash = $1", hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storedFileRepo.Lookup: %w", err)
	}
	return &f, nil
}

func (r *storedFileRepo) Record(ctx context.Context, file *domain.StoredFile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stored_files (hash, path, size_bytes, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (hash) DO UPDATE SET path = EXCLUDED.path, size_bytes = EXCLUDED.size_bytes`,
		file.Hash, file.Path, file.SizeBytes, file.CreatedAt)
	if err != nil {
		return fmt.Errorf("storedFileRepo.Record: %w", err)
	}
	return nil
}
