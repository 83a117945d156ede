package localfs_test

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/tenantdocs/internal/adapter/localfs"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

func newFS(t *testing.T) *localfs.FS {
	t.Helper()
	f, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	return f
}

func write(t *testing.T, f *localfs.FS, p domain.Path, content string) {
	t.Helper()
	w, err := f.Create(context.Background(), p)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func read(t *testing.T, f *localfs.FS, p domain.Path) string {
	t.Helper()
	r, err := f.Open(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestCreate_VisibleOnClose(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()

	w, err := f.Create(ctx, "/1/100/a.txt/1.0")
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello")
	require.NoError(t, err)

	ok, err := f.Exists(ctx, "/1/100/a.txt/1.0")
	require.NoError(t, err)
	assert.False(t, ok, "file must not be visible before Close")

	entries, err := f.List(ctx, "/1/100/a.txt")
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files are not listed")

	require.NoError(t, w.Close())
	assert.Equal(t, "hello", read(t, f, "/1/100/a.txt/1.0"))

	_, err = os.Stat(filepath.Join(f.Root(), "1", "100", "a.txt", "1.0"))
	assert.NoError(t, err)
}

func TestOpen_Missing(t *testing.T) {
	f := newFS(t)

	_, err := f.Open(context.Background(), "/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestList(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()
	write(t, f, "/1/100/b/1.0", "bb")
	write(t, f, "/1/100/a/1.0", "a")

	entries, err := f.List(ctx, "/1/100")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.Path("/1/100/a"), entries[0].Path)
	assert.True(t, entries[0].IsDir)

	entries, err = f.List(ctx, "/1/100/b/1.0")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Size)

	_, err = f.List(ctx, "/2")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDelete(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()
	write(t, f, "/1/100/a/1.0", "a")

	_, err := f.Delete(ctx, "/1/100", false)
	require.ErrorIs(t, err, domain.ErrDirectoryNotEmpty)

	ok, err := f.Delete(ctx, "/1/100", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Delete(ctx, "/1/100", true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.Delete(ctx, "/", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRename(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()
	write(t, f, "/1/a/1.0", "a")
	write(t, f, "/1/b/1.0", "b")

	ok, err := f.Rename(ctx, "/1/a/1.0", "/1/b/1.0")
	require.NoError(t, err)
	assert.False(t, ok, "existing target")

	ok, err = f.Rename(ctx, "/1/a/1.0", "/2/a/1.0")
	require.NoError(t, err)
	assert.False(t, ok, "missing target parent")

	ok, err = f.Rename(ctx, "/1/a", "/1/c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", read(t, f, "/1/c/1.0"))
}

func TestMkdirAndStat(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()

	require.NoError(t, f.Mkdir(ctx, "/1/2/3", 0o755))

	st, err := f.Stat(ctx, "/1/2")
	require.NoError(t, err)
	assert.True(t, st.IsDir)
	assert.Equal(t, domain.Path("/1/2"), st.Path)
}

func TestDelete_PendingWriteKeepsDirectory(t *testing.T) {
	f := newFS(t)
	ctx := context.Background()
	require.NoError(t, f.Mkdir(ctx, "/1/100/a", 0o755))

	w, err := f.Create(ctx, "/1/100/a/2.0")
	require.NoError(t, err)
	_, err = io.WriteString(w, "in flight")
	require.NoError(t, err)

	entries, err := f.List(ctx, "/1/100/a")
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files are not listed")

	deleted, err := f.Delete(ctx, "/1/100/a", false)
	require.ErrorIs(t, err, domain.ErrDirectoryNotEmpty)
	assert.False(t, deleted)

	require.NoError(t, w.Close())
	ok, err := f.Exists(ctx, "/1/100/a/2.0")
	require.NoError(t, err)
	assert.True(t, ok)
}
