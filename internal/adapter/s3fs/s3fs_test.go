package s3fs_test

import (
	"context"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/tenantdocs/internal/adapter/s3fs"
	"github.com/neomorfeo/tenantdocs/internal/app"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

func newFS(prefix string) (*s3fs.FS, *fakeS3) {
	api := newFakeS3()
	return s3fs.New(api, "docs", prefix), api
}

func write(t *testing.T, f *s3fs.FS, p domain.Path, content string) {
	t.Helper()
	w, err := f.Create(context.Background(), p)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func read(t *testing.T, f *s3fs.FS, p domain.Path) string {
	t.Helper()
	r, err := f.Open(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestCreate_WritesObjectAndMarkers(t *testing.T) {
	f, api := newFS("tenantdocs")
	write(t, f, "/1/100/a.txt/1.0", "hello")

	assert.Equal(t, []string{
		"tenantdocs/1/",
		"tenantdocs/1/100/",
		"tenantdocs/1/100/a.txt/",
		"tenantdocs/1/100/a.txt/1.0",
	}, api.keys())
	assert.Equal(t, "hello", read(t, f, "/1/100/a.txt/1.0"))

	st, err := f.Stat(context.Background(), "/1/100/a.txt/1.0")
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Size)
	assert.False(t, st.IsDir)

	st, err = f.Stat(context.Background(), "/1/100")
	require.NoError(t, err)
	assert.True(t, st.IsDir)
}

func TestExists(t *testing.T) {
	f, _ := newFS("")
	ctx := context.Background()
	write(t, f, "/1/100/a.txt/1.0", "x")

	for _, p := range []domain.Path{"/", "/1", "/1/100", "/1/100/a.txt", "/1/100/a.txt/1.0"} {
		ok, err := f.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}

	ok, err := f.Exists(ctx, "/1/10")
	require.NoError(t, err)
	assert.False(t, ok, "a key prefix is not a directory")
}

func TestOpen_Missing(t *testing.T) {
	f, _ := newFS("")

	_, err := f.Open(context.Background(), "/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestList(t *testing.T) {
	f, _ := newFS("root")
	ctx := context.Background()
	write(t, f, "/1/100/b.txt/1.0", "b")
	write(t, f, "/1/100/a.txt/1.0", "a")
	require.NoError(t, f.Mkdir(ctx, "/1/100/empty", 0o755))

	entries, err := f.List(ctx, "/1/100")
	require.NoError(t, err)
	var paths []domain.Path
	for _, e := range entries {
		paths = append(paths, e.Path)
		assert.True(t, e.IsDir)
	}
	assert.Equal(t, []domain.Path{"/1/100/a.txt", "/1/100/b.txt", "/1/100/empty"}, paths)

	entries, err = f.List(ctx, "/1/100/empty")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)

	entries, err = f.List(ctx, "/1/100/a.txt/1.0")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Size)

	_, err = f.List(ctx, "/9")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDelete(t *testing.T) {
	f, api := newFS("")
	ctx := context.Background()
	write(t, f, "/1/100/a.txt/1.0", "a")

	_, err := f.Delete(ctx, "/1/100", false)
	require.ErrorIs(t, err, domain.ErrDirectoryNotEmpty)

	ok, err := f.Delete(ctx, "/1/100/a.txt/1.0", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Delete(ctx, "/1/100/a.txt", false)
	require.NoError(t, err)
	assert.True(t, ok, "an empty directory needs no recursion")

	ok, err = f.Delete(ctx, "/1", true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, api.keys())

	ok, err = f.Delete(ctx, "/1", true)
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to delete")

	ok, err = f.Delete(ctx, "/", true)
	require.NoError(t, err)
	assert.False(t, ok, "the root is never deleted")
}

func TestRename_File(t *testing.T) {
	f, _ := newFS("")
	ctx := context.Background()
	write(t, f, "/1/100/a b.txt/1.0", "a")
	require.NoError(t, f.Mkdir(ctx, "/1/100/c.txt", 0o755))

	ok, err := f.Rename(ctx, "/1/100/a b.txt/1.0", "/1/100/c.txt/1.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", read(t, f, "/1/100/c.txt/1.0"))

	exists, _ := f.Exists(ctx, "/1/100/a b.txt/1.0")
	assert.False(t, exists)
}

func TestRename_Directory(t *testing.T) {
	f, _ := newFS("p")
	ctx := context.Background()
	write(t, f, "/1/wc-results/part-00000", "the\t1\n")
	write(t, f, "/1/wc-results/_SUCCESS", "")

	ok, err := f.Rename(ctx, "/1/wc-results", "/1/.wc-results-1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "the\t1\n", read(t, f, "/1/.wc-results-1/part-00000"))
	exists, _ := f.Exists(ctx, "/1/wc-results")
	assert.False(t, exists)
}

func TestRename_Refused(t *testing.T) {
	f, _ := newFS("")
	ctx := context.Background()
	write(t, f, "/1/a/1.0", "a")
	write(t, f, "/1/b/1.0", "b")

	tests := []struct {
		name     string
		src, dst domain.Path
	}{
		{"missing source", "/1/zzz/1.0", "/1/c/1.0"},
		{"existing target", "/1/a/1.0", "/1/b/1.0"},
		{"missing target parent", "/1/a/1.0", "/2/x/1.0"},
		{"target below source", "/1/a", "/1/a/inner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.Rename(ctx, tt.src, tt.dst)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
	assert.Equal(t, "a", read(t, f, "/1/a/1.0"))
	assert.Equal(t, "b", read(t, f, "/1/b/1.0"))
}

func TestMkdir_OverFileFails(t *testing.T) {
	f, _ := newFS("")
	write(t, f, "/1/file", "x")

	err := f.Mkdir(context.Background(), "/1/file/sub", 0o755)
	require.Error(t, err)
}

type source struct{ fs domain.Filesystem }

func (s source) Filesystem(context.Context) (domain.Filesystem, error) { return s.fs, nil }

type discard struct{}

func (discard) Notify(context.Context, domain.StoreEvent) {}

func TestDocumentStore_OverS3(t *testing.T) {
	f, api := newFS("tenantdocs")
	store := app.NewDocumentStore(source{fs: f}, discard{})
	ctx := context.Background()

	require.NoError(t, store.AddDirectory(ctx, 1, 100, ""))
	require.NoError(t, store.AddFile(ctx, 1, 100, "report.txt", "1.0", strings.NewReader("text")))

	names, err := store.GetFileNames(ctx, 1, 100, "")
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.True(t, strings.HasSuffix(names[0], "report.txt"))

	require.NoError(t, store.DeleteFile(ctx, 1, 100, "report.txt", "1.0"))

	names, err = store.GetFileNames(ctx, 1, 100, "")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, []string{"tenantdocs/1/"}, api.keys())
}
