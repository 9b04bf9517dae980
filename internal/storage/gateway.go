// Package storage deduplicates uploaded files by content hash and writes
// them to a blob store under date-partitioned paths.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/port"
)

// maxSuffix bounds the _N collision search for one filename.
const maxSuffix = 10000

// StoreResult describes where a file's bytes live.
type StoreResult struct {
	Path      string
	Hash      string
	Size      int64
	Duplicate bool
}

// Gateway stores each distinct content once. It is safe for concurrent use.
type Gateway struct {
	blobs port.BlobStore
	index port.HashIndex
	now   func() time.Time
	locks *keyedMutex
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock replaces the clock used to derive date partitions.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a Gateway over a blob store and a hash index.
func NewGateway(blobs port.BlobStore, index port.HashIndex, opts ...Option) *Gateway {
	g := &Gateway{
		blobs: blobs,
		index: index,
		now:   time.Now,
		locks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Hash returns the lowercase hex sha256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store writes data unless identical content is already stored, in which
// case the existing path is returned with Duplicate set.
func (g *Gateway) Store(ctx context.Context, data []byte, filename string, contentType string) (*StoreResult, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyFile
	}
	hash := Hash(data)
	size := int64(len(data))

	unlock := g.locks.lock(hash)
	defer unlock()

	existing, err := g.index.Lookup(ctx, hash)
	switch {
	case err == nil:
		ok, err := g.blobs.Exists(ctx, existing.Path)
		if err != nil {
			return nil, storageErr("checking indexed file", err)
		}
		if ok {
			slog.DebugContext(ctx, "storage.Store: duplicate content", "hash", hash, "path", existing.Path)
			return &StoreResult{Path: existing.Path, Hash: hash, Size: size, Duplicate: true}, nil
		}
		slog.WarnContext(ctx, "storage.Store: indexed file missing, storing again", "hash", hash, "path", existing.Path)
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, storageErr("looking up hash", err)
	}

	dir := g.now().UTC().Format("2006/01/02")
	name := SanitizeFilename(filename)

	raced := false
	for n := 0; n < maxSuffix; {
		key := path.Join(dir, withSuffix(name, n))

		taken, err := g.blobs.Exists(ctx, key)
		if err != nil {
			return nil, storageErr("checking path", err)
		}
		if taken {
			same, err := g.sameContent(ctx, key, hash)
			if err != nil {
				return nil, err
			}
			if same {
				// The file is there but the index lost it.
				if err := g.record(ctx, hash, key, size); err != nil {
					return nil, err
				}
				return &StoreResult{Path: key, Hash: hash, Size: size, Duplicate: true}, nil
			}
			n, raced = n+1, false
			continue
		}

		err = g.blobs.Put(ctx, key, bytes.NewReader(data), size, contentType)
		if errors.Is(err, domain.ErrObjectExists) {
			// Lost a race with another writer: re-check the key once, then
			// move on if the store still reports it free.
			if raced {
				n, raced = n+1, false
			} else {
				raced = true
			}
			continue
		}
		if err != nil {
			return nil, storageErr("writing file", err)
		}
		if err := g.record(ctx, hash, key, size); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "storage.Store: stored file", "hash", hash, "path", key, "size", size)
		return &StoreResult{Path: key, Hash: hash, Size: size}, nil
	}
	return nil, storageErr("no free path for "+name, errors.New("too many collisions"))
}

// Open returns a reader for a stored file.
func (g *Gateway) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := g.blobs.Get(ctx, key)
	if err != nil {
		return nil, storageErr("opening "+key, err)
	}
	return rc, nil
}

// ReadAll returns the full contents of a stored file.
func (g *Gateway) ReadAll(ctx context.Context, key string) ([]byte, error) {
	rc, err := g.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, storageErr("reading "+key, err)
	}
	return data, nil
}

// Exists reports whether a stored file is present.
func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := g.blobs.Exists(ctx, key)
	if err != nil {
		return false, storageErr("checking "+key, err)
	}
	return ok, nil
}

func (g *Gateway) sameContent(ctx context.Context, key, hash string) (bool, error) {
	data, err := g.ReadAll(ctx, key)
	if err != nil {
		return false, err
	}
	return Hash(data) == hash, nil
}

func (g *Gateway) record(ctx context.Context, hash, key string, size int64) error {
	err := g.index.Record(ctx, &domain.StoredFile{
		Hash:      hash,
		Path:      key,
		SizeBytes: size,
		CreatedAt: g.now().UTC(),
	})
	if err != nil {
		return storageErr("recording hash", err)
	}
	return nil
}

// SanitizeFilename reduces a client-supplied name to a safe base name.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	clean := strings.TrimLeft(b.String(), ".")
	if clean == "" || clean == "_" {
		return "document"
	}
	return clean
}

// withSuffix inserts _n before the extension; n == 0 leaves name unchanged.
func withSuffix(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

// keyedMutex serializes callers per key and forgets idle keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
