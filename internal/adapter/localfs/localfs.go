// Package localfs implements domain.Filesystem on a directory of the local
// disk. It backs "file://" filesystem DSNs for single-node deployments.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// Compile-time check: FS implements domain.Filesystem.
var _ domain.Filesystem = (*FS)(nil)

const dirPerm fs.FileMode = 0o755

// FS maps namespace paths below a root directory.
type FS struct {
	root string
}

// New returns a filesystem rooted at dir, creating dir when missing.
func New(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("creating root %s: %w", abs, err)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute directory backing the namespace root.
func (f *FS) Root() string { return f.root }

func (f *FS) native(p domain.Path) string {
	return filepath.Join(f.root, filepath.FromSlash(p.String()))
}

func (f *FS) Exists(_ context.Context, p domain.Path) (bool, error) {
	_, err := os.Stat(f.native(p))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create writes to a temporary sibling and renames it into place on Close.
func (f *FS) Create(_ context.Context, p domain.Path) (io.WriteCloser, error) {
	name := f.native(p)
	if err := os.MkdirAll(filepath.Dir(name), dirPerm); err != nil {
		return nil, err
	}
	if st, err := os.Stat(name); err == nil && st.IsDir() {
		return nil, &fs.PathError{Op: "create", Path: p.String(), Err: errIsDir}
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &writer{File: tmp, target: name}, nil
}

func (f *FS) Open(_ context.Context, p domain.Path) (io.ReadCloser, error) {
	file, err := os.Open(f.native(p))
	if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if st.IsDir() {
		file.Close()
		return nil, &fs.PathError{Op: "open", Path: p.String(), Err: errIsDir}
	}
	return file, nil
}

func (f *FS) Delete(_ context.Context, p domain.Path, recursive bool) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}
	name := f.native(p)
	if _, err := os.Lstat(name); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if recursive {
		if err := os.RemoveAll(name); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := os.Remove(name); err != nil {
		// Pending temp files keep a directory non-empty.
		if entries, rerr := os.ReadDir(name); rerr == nil && len(entries) > 0 {
			return false, &fs.PathError{Op: "delete", Path: p.String(), Err: domain.ErrDirectoryNotEmpty}
		}
		return false, err
	}
	return true, nil
}

func (f *FS) Rename(_ context.Context, src, dst domain.Path) (bool, error) {
	if src.IsRoot() || src.Contains(dst) {
		return false, nil
	}
	from, to := f.native(src), f.native(dst)
	if _, err := os.Lstat(from); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if _, err := os.Lstat(to); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if st, err := os.Stat(filepath.Dir(to)); err != nil || !st.IsDir() {
		return false, nil
	}
	if err := os.Rename(from, to); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FS) List(_ context.Context, p domain.Path) ([]domain.FileStatus, error) {
	name := f.native(p)
	st, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []domain.FileStatus{status(p, st)}, nil
	}

	dirEntries, err := os.ReadDir(name)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FileStatus, 0, len(dirEntries))
	for _, e := range dirEntries {
		if isTemp(e.Name()) {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, status(p.Child(e.Name()), info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FS) Stat(_ context.Context, p domain.Path) (domain.FileStatus, error) {
	st, err := os.Stat(f.native(p))
	if err != nil {
		return domain.FileStatus{}, err
	}
	return status(p, st), nil
}

func (f *FS) Mkdir(_ context.Context, p domain.Path, perm fs.FileMode) error {
	if perm == 0 {
		perm = dirPerm
	}
	return os.MkdirAll(f.native(p), perm)
}

func status(p domain.Path, info fs.FileInfo) domain.FileStatus {
	st := domain.FileStatus{
		Path:    p,
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}
	if !st.IsDir {
		st.Size = info.Size()
	}
	return st
}

var errIsDir = errors.New("is a directory")

func isTemp(name string) bool {
	matched, _ := filepath.Match(".*.tmp-*", name)
	return matched
}

type writer struct {
	*os.File
	target string
	closed bool
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.File.Close(); err != nil {
		os.Remove(w.File.Name())
		return err
	}
	if err := os.Rename(w.File.Name(), w.target); err != nil {
		os.Remove(w.File.Name())
		return err
	}
	return nil
}
