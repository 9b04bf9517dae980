package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/storage"
	"ledgerscan/internal/storage/boltindex"
	"ledgerscan/internal/storage/local"
	"ledgerscan/mocks"
)

var fixedNow = time.Date(2024, 4, 15, 23, 30, 0, 0, time.UTC)

type fixture struct {
	gw    *storage.Gateway
	base  string
	index *boltindex.Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "files")
	blobs, err := local.New(base)
	require.NoError(t, err)
	idx, err := boltindex.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	gw := storage.NewGateway(blobs, idx, storage.WithClock(func() time.Time { return fixedNow }))
	return &fixture{gw: gw, base: base, index: idx}
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestGateway_StoreAndDedup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := []byte("%PDF-1.7 statement")

	first, err := f.gw.Store(ctx, data, "April Statement.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "2024/04/15/April_Statement.pdf", first.Path)
	assert.Equal(t, storage.Hash(data), first.Hash)
	assert.Equal(t, int64(len(data)), first.Size)
	assert.False(t, first.Duplicate)

	second, err := f.gw.Store(ctx, data, "copy.pdf", "application/pdf")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Path, second.Path)

	assert.Equal(t, 1, countFiles(t, f.base))

	got, err := f.gw.ReadAll(ctx, first.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestGateway_NameCollisionGetsSuffix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.gw.Store(ctx, []byte("first"), "scan.png", "image/png")
	require.NoError(t, err)
	b, err := f.gw.Store(ctx, []byte("second"), "scan.png", "image/png")
	require.NoError(t, err)
	c, err := f.gw.Store(ctx, []byte("third"), "scan.png", "image/png")
	require.NoError(t, err)

	assert.Equal(t, "2024/04/15/scan.png", a.Path)
	assert.Equal(t, "2024/04/15/scan_1.png", b.Path)
	assert.Equal(t, "2024/04/15/scan_2.png", c.Path)
	assert.Equal(t, 3, countFiles(t, f.base))
}

func TestGateway_PutConflictMovesToNextSuffix(t *testing.T) {
	dir := t.TempDir()
	idx, err := boltindex.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	// The store never lists the first key but always refuses to write it.
	blobs := new(mocks.MockBlobStore)
	blobs.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	blobs.On("Put", mock.Anything, "2024/04/15/scan.png", mock.Anything, int64(4), "image/png").
		Return(domain.ErrObjectExists)
	blobs.On("Put", mock.Anything, "2024/04/15/scan_1.png", mock.Anything, int64(4), "image/png").
		Return(nil)

	gw := storage.NewGateway(blobs, idx, storage.WithClock(func() time.Time { return fixedNow }))
	res, err := gw.Store(context.Background(), []byte("scan"), "scan.png", "image/png")

	require.NoError(t, err)
	assert.Equal(t, "2024/04/15/scan_1.png", res.Path)
	assert.False(t, res.Duplicate)
	blobs.AssertNumberOfCalls(t, "Put", 3)
}

func TestGateway_PutAlwaysConflictingGivesUp(t *testing.T) {
	dir := t.TempDir()
	idx, err := boltindex.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	blobs := new(mocks.MockBlobStore)
	blobs.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	blobs.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrObjectExists)

	gw := storage.NewGateway(blobs, idx, storage.WithClock(func() time.Time { return fixedNow }))
	_, err = gw.Store(context.Background(), []byte("scan"), "scan.png", "image/png")

	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestGateway_AdoptsFileWhenIndexLost(t *testing.T) {
	dir := t.TempDir()
	blobs, err := local.New(filepath.Join(dir, "files"))
	require.NoError(t, err)
	ctx := context.Background()
	data := []byte("receipt bytes")

	idx1, err := boltindex.Open(filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	defer idx1.Close()
	gw1 := storage.NewGateway(blobs, idx1, storage.WithClock(func() time.Time { return fixedNow }))
	first, err := gw1.Store(ctx, data, "r.jpg", "image/jpeg")
	require.NoError(t, err)

	idx2, err := boltindex.Open(filepath.Join(dir, "b.db"))
	require.NoError(t, err)
	defer idx2.Close()
	gw2 := storage.NewGateway(blobs, idx2, storage.WithClock(func() time.Time { return fixedNow }))
	second, err := gw2.Store(ctx, data, "r.jpg", "image/jpeg")
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Path, second.Path)

	rec, err := idx2.Lookup(ctx, first.Hash)
	require.NoError(t, err)
	assert.Equal(t, first.Path, rec.Path)
}

func TestGateway_ConcurrentSameContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := []byte("same bytes from many uploaders")

	const n = 8
	results := make([]*storage.StoreResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.gw.Store(ctx, data, "dup.pdf", "application/pdf")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "2024/04/15/dup.pdf", r.Path)
		if !r.Duplicate {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, countFiles(t, f.base))
}

func TestGateway_EmptyFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.gw.Store(context.Background(), nil, "x.pdf", "application/pdf")
	assert.ErrorIs(t, err, domain.ErrEmptyFile)
}

func TestGateway_OpenMissingIsStorageError(t *testing.T) {
	f := newFixture(t)
	_, err := f.gw.Open(context.Background(), "2024/01/01/missing.pdf")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "statement.pdf", storage.SanitizeFilename("../../etc/statement.pdf"))
	assert.Equal(t, "my_file__1_.png", storage.SanitizeFilename("my file (1).png"))
	assert.Equal(t, "scan.jpg", storage.SanitizeFilename(`C:\Users\me\scan.jpg`))
	assert.Equal(t, "document", storage.SanitizeFilename(""))
	assert.Equal(t, "hidden", storage.SanitizeFilename(".hidden"))
}
