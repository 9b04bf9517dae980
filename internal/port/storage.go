package port

import (
	"context"
	"io"

	"ledgerscan/internal/domain"
)

// BlobStore abstracts a write-once object store keyed by relative path.
type BlobStore interface {
	// Put writes body under key. It fails with domain.ErrObjectExists when the
	// key is taken and never leaves a partial object behind.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Get fails with domain.ErrObjectNotFound when the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// HashIndex maps content hashes to the stored file that holds them.
type HashIndex interface {
	// Lookup fails with domain.ErrNotFound when the hash is unknown.
	Lookup(ctx context.Context, hash string) (*domain.StoredFile, error)
	Record(ctx context.Context, file *domain.StoredFile) error
}
