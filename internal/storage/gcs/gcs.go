// Package gcs implements port.BlobStore on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ledgerscan/internal/config"
	"ledgerscan/internal/domain"
)

// Store keeps objects in one bucket.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// New creates a GCS-backed blob store.
func New(ctx context.Context, cfg *config.GCSConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(cfg.Bucket)}, nil
}

// Put writes body only if the object does not exist yet. GCS publishes the
// object when the writer closes, so a failed copy leaves nothing behind.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		if isPreconditionFailed(err) {
			return domain.ErrObjectExists
		}
		return fmt.Errorf("gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return domain.ErrObjectExists
		}
		return fmt.Errorf("gcs finalize: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, domain.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read: %w", err)
	}
	return r, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Object(key).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("gcs attrs: %w", err)
	}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
