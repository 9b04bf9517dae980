package boltindex_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/storage/boltindex"
)

func TestIndex_RecordLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := boltindex.Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = idx.Lookup(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	created := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Record(ctx, &domain.StoredFile{Hash: "abc", Path: "2024/04/15/a.pdf", SizeBytes: 10, CreatedAt: created}))
	require.NoError(t, idx.Close())

	reopened, err := boltindex.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "2024/04/15/a.pdf", got.Path)
	assert.Equal(t, int64(10), got.SizeBytes)
	assert.True(t, created.Equal(got.CreatedAt))
}
