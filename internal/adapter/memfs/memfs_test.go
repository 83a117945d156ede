package memfs_test

import (
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/tenantdocs/internal/adapter/memfs"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

func write(t *testing.T, f *memfs.FS, p domain.Path, content string) {
	t.Helper()
	w, err := f.Create(context.Background(), p)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func read(t *testing.T, f *memfs.FS, p domain.Path) string {
	t.Helper()
	r, err := f.Open(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestCreate_MakesParentsAndIsVisibleOnClose(t *testing.T) {
	f := memfs.New()
	ctx := context.Background()

	w, err := f.Create(ctx, "/1/100/a.txt/1.0")
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello")
	require.NoError(t, err)

	ok, err := f.Exists(ctx, "/1/100/a.txt/1.0")
	require.NoError(t, err)
	assert.False(t, ok, "file must not be visible before Close")

	ok, _ = f.Exists(ctx, "/1/100/a.txt")
	assert.True(t, ok, "parents are created eagerly")

	require.NoError(t, w.Close())
	assert.Equal(t, "hello", read(t, f, "/1/100/a.txt/1.0"))

	st, err := f.Stat(ctx, "/1/100/a.txt/1.0")
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Size)
	assert.False(t, st.IsDir)
}

func TestOpen_Missing(t *testing.T) {
	f := memfs.New()
	_, err := f.Open(context.Background(), "/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestList(t *testing.T) {
	f := memfs.New()
	ctx := context.Background()
	write(t, f, "/1/100/b/1.0", "b")
	write(t, f, "/1/100/a/1.0", "a")
	require.NoError(t, f.Mkdir(ctx, "/1/100/empty", 0o755))

	entries, err := f.List(ctx, "/1/100")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.Path("/1/100/a"), entries[0].Path)
	assert.Equal(t, domain.Path("/1/100/b"), entries[1].Path)
	assert.True(t, entries[2].IsDir)

	entries, err = f.List(ctx, "/1/100/empty")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = f.List(ctx, "/1/200")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDelete(t *testing.T) {
	f := memfs.New()
	ctx := context.Background()
	write(t, f, "/1/100/a/1.0", "a")

	_, err := f.Delete(ctx, "/1/100", false)
	assert.ErrorIs(t, err, domain.ErrDirectoryNotEmpty)

	deleted, err := f.Delete(ctx, "/1/100", true)
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, _ := f.Exists(ctx, "/1/100/a/1.0")
	assert.False(t, ok)

	deleted, err = f.Delete(ctx, "/1/100", true)
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a missing path reports false")

	deleted, _ = f.Delete(ctx, domain.RootPath, true)
	assert.False(t, deleted, "the root is never deleted")
}

func TestRename(t *testing.T) {
	f := memfs.New()
	ctx := context.Background()
	write(t, f, "/1/wc-results/part-00000", "word\t1\n")
	write(t, f, "/1/other", "x")

	ok, err := f.Rename(ctx, "/1/wc-results", "/1/.wc-results-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "word\t1\n", read(t, f, "/1/.wc-results-1/part-00000"))

	ok, _ = f.Rename(ctx, "/1/wc-results", "/1/x")
	assert.False(t, ok, "missing source")

	ok, _ = f.Rename(ctx, "/1/.wc-results-1", "/1/other")
	assert.False(t, ok, "existing target")

	ok, _ = f.Rename(ctx, "/1/other", "/2/other")
	assert.False(t, ok, "missing target parent")

	ok, _ = f.Rename(ctx, "/1", "/1/inner")
	assert.False(t, ok, "target below source")
}
