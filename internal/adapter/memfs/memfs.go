// Package memfs implements domain.Filesystem in memory. It backs the
// "memory://" filesystem DSN and the store tests.
package memfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// Compile-time check: FS implements domain.Filesystem.
var _ domain.Filesystem = (*FS)(nil)

var errIsDir = errors.New("is a directory")

type node struct {
	dir     bool
	data    []byte
	modTime time.Time
}

// FS is an in-memory hierarchical filesystem.
type FS struct {
	mu    sync.RWMutex
	nodes map[domain.Path]*node
	now   func() time.Time
}

// New creates an empty filesystem holding only the root directory.
func New() *FS {
	f := &FS{
		nodes: make(map[domain.Path]*node),
		now:   time.Now,
	}
	f.nodes[domain.RootPath] = &node{dir: true, modTime: f.now()}
	return f
}

func (f *FS) Exists(_ context.Context, p domain.Path) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.nodes[p]
	return ok, nil
}

func (f *FS) Create(_ context.Context, p domain.Path) (io.WriteCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[p]; ok && n.dir {
		return nil, &fs.PathError{Op: "create", Path: p.String(), Err: errIsDir}
	}
	if err := f.mkdirLocked(p.Parent()); err != nil {
		return nil, err
	}
	return &writer{fs: f, path: p}, nil
}

func (f *FS) Open(_ context.Context, p domain.Path) (io.ReadCloser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p.String(), Err: fs.ErrNotExist}
	}
	if n.dir {
		return nil, &fs.PathError{Op: "open", Path: p.String(), Err: errIsDir}
	}
	return io.NopCloser(bytes.NewReader(n.data)), nil
}

func (f *FS) Delete(_ context.Context, p domain.Path, recursive bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.IsRoot() {
		return false, nil
	}
	n, ok := f.nodes[p]
	if !ok {
		return false, nil
	}
	if n.dir && !recursive && len(f.childrenLocked(p)) > 0 {
		return false, &fs.PathError{Op: "delete", Path: p.String(), Err: domain.ErrDirectoryNotEmpty}
	}
	for q := range f.nodes {
		if p.Contains(q) {
			delete(f.nodes, q)
		}
	}
	return true, nil
}

func (f *FS) Rename(_ context.Context, src, dst domain.Path) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if src.IsRoot() || src.Contains(dst) {
		return false, nil
	}
	if _, ok := f.nodes[src]; !ok {
		return false, nil
	}
	if _, ok := f.nodes[dst]; ok {
		return false, nil
	}
	if parent, ok := f.nodes[dst.Parent()]; !ok || !parent.dir {
		return false, nil
	}
	moved := make(map[domain.Path]*node)
	for q, n := range f.nodes {
		if src.Contains(q) {
			moved[domain.Path(string(dst)+string(q)[len(src):])] = n
			delete(f.nodes, q)
		}
	}
	for q, n := range moved {
		f.nodes[q] = n
	}
	return true, nil
}

func (f *FS) List(_ context.Context, p domain.Path) ([]domain.FileStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[p]
	if !ok {
		return nil, &fs.PathError{Op: "list", Path: p.String(), Err: fs.ErrNotExist}
	}
	if !n.dir {
		return []domain.FileStatus{status(p, n)}, nil
	}
	children := f.childrenLocked(p)
	out := make([]domain.FileStatus, 0, len(children))
	for _, q := range children {
		out = append(out, status(q, f.nodes[q]))
	}
	return out, nil
}

func (f *FS) Stat(_ context.Context, p domain.Path) (domain.FileStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[p]
	if !ok {
		return domain.FileStatus{}, &fs.PathError{Op: "stat", Path: p.String(), Err: fs.ErrNotExist}
	}
	return status(p, n), nil
}

func (f *FS) Mkdir(_ context.Context, p domain.Path, _ fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mkdirLocked(p)
}

func (f *FS) mkdirLocked(p domain.Path) error {
	if n, ok := f.nodes[p]; ok {
		if !n.dir {
			return &fs.PathError{Op: "mkdir", Path: p.String(), Err: fs.ErrExist}
		}
		return nil
	}
	if err := f.mkdirLocked(p.Parent()); err != nil {
		return err
	}
	f.nodes[p] = &node{dir: true, modTime: f.now()}
	return nil
}

// childrenLocked returns the sorted direct children of p.
func (f *FS) childrenLocked(p domain.Path) []domain.Path {
	var out []domain.Path
	for q := range f.nodes {
		if !q.IsRoot() && q.Parent() == p {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func status(p domain.Path, n *node) domain.FileStatus {
	return domain.FileStatus{
		Path:    p,
		Size:    int64(len(n.data)),
		IsDir:   n.dir,
		ModTime: n.modTime,
	}
}

type writer struct {
	fs     *FS
	path   domain.Path
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(b []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write %s: %w", w.path, fs.ErrClosed)
	}
	return w.buf.Write(b)
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	if err := w.fs.mkdirLocked(w.path.Parent()); err != nil {
		return err
	}
	w.fs.nodes[w.path] = &node{data: bytes.Clone(w.buf.Bytes()), modTime: w.fs.now()}
	return nil
}
