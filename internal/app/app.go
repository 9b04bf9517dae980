// Package app assembles the storage gateway and provider chain from
// configuration. Both the HTTP server and ledgerctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"ledgerscan/internal/config"
	"ledgerscan/internal/port"
	"ledgerscan/internal/provider"
	"ledgerscan/internal/provider/backends"
	"ledgerscan/internal/storage"
	"ledgerscan/internal/storage/boltindex"
	"ledgerscan/internal/storage/gcs"
	"ledgerscan/internal/storage/local"
	s3storage "ledgerscan/internal/storage/s3"
)

// Storage is the configured gateway plus the resources it holds open.
type Storage struct {
	Gateway *storage.Gateway
	closers []func() error
}

// Close releases the blob store client and hash index.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenStorage builds the blob store and hash index named by cfg.Storage.
// dbIndex backs the "postgres" index and may be nil for other settings.
func OpenStorage(ctx context.Context, cfg *config.StorageConfig, dbIndex port.HashIndex) (*Storage, error) {
	s := &Storage{}

	var blobs port.BlobStore
	switch cfg.Backend {
	case "local":
		store, err := local.New(cfg.Local.BasePath)
		if err != nil {
			return nil, fmt.Errorf("app.OpenStorage: local: %w", err)
		}
		blobs = store
	case "s3":
		store, err := s3storage.New(ctx, &cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("app.OpenStorage: s3: %w", err)
		}
		blobs = store
	case "gcs":
		store, err := gcs.New(ctx, &cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("app.OpenStorage: gcs: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		blobs = store
	default:
		return nil, fmt.Errorf("app.OpenStorage: unknown backend %q", cfg.Backend)
	}

	var index port.HashIndex
	switch cfg.Index {
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.Local.IndexPath), 0o755); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("app.OpenStorage: index dir: %w", err)
		}
		idx, err := boltindex.Open(cfg.Local.IndexPath)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("app.OpenStorage: bolt index: %w", err)
		}
		s.closers = append(s.closers, idx.Close)
		index = idx
	case "postgres":
		if dbIndex == nil {
			_ = s.Close()
			return nil, fmt.Errorf("app.OpenStorage: postgres index requires a database")
		}
		index = dbIndex
	default:
		_ = s.Close()
		return nil, fmt.Errorf("app.OpenStorage: unknown index %q", cfg.Index)
	}

	s.Gateway = storage.NewGateway(blobs, index)
	slog.Info("app.OpenStorage: storage ready", "backend", cfg.Backend, "index", cfg.Index)
	return s, nil
}

var registerOnce sync.Once

// NewProvider builds the configured provider chain. A chain of more than one
// backend fails over in order.
func NewProvider(cfg *config.ProvidersConfig) (port.ExtractionProvider, error) {
	registerOnce.Do(backends.Register)
	chain := cfg.Chain()
	p, err := provider.NewChain(chain)
	if err != nil {
		return nil, fmt.Errorf("app.NewProvider: %w", err)
	}
	names := make([]string, len(chain))
	for i, c := range chain {
		names[i] = c.Provider
	}
	slog.Info("app.NewProvider: provider chain ready", "providers", names)
	return p, nil
}
