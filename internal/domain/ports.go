package domain

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// FileStatus is the metadata of one filesystem entry.
type FileStatus struct {
	Path    Path
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// Filesystem defines the contract of the remote hierarchical filesystem.
// Implementations must be safe for concurrent use.
type Filesystem interface {
	// Exists reports whether p names a file or directory.
	Exists(ctx context.Context, p Path) (bool, error)

	// Create opens p for writing, truncating an existing file and creating
	// missing parent directories. Data is visible once the writer is closed.
	Create(ctx context.Context, p Path) (io.WriteCloser, error)

	// Open opens the file at p for reading.
	Open(ctx context.Context, p Path) (io.ReadCloser, error)

	// Delete removes p. Without recursive, a directory that still holds
	// entries, including writes not yet closed, fails with an error matching
	// ErrDirectoryNotEmpty. It reports false when nothing was deleted.
	Delete(ctx context.Context, p Path, recursive bool) (bool, error)

	// Rename moves src to dst. It reports false, without error, when src is
	// missing, dst already exists or dst's parent is missing.
	Rename(ctx context.Context, src, dst Path) (bool, error)

	// List returns the direct children of p. A missing p yields an error
	// matching fs.ErrNotExist; an empty directory yields an empty slice.
	List(ctx context.Context, p Path) ([]FileStatus, error)

	// Stat returns the metadata of p or an error matching fs.ErrNotExist.
	Stat(ctx context.Context, p Path) (FileStatus, error)

	// Mkdir creates p and any missing parents.
	Mkdir(ctx context.Context, p Path, perm fs.FileMode) error
}

// FilesystemSource yields the shared filesystem handle, connecting on first use.
type FilesystemSource interface {
	Filesystem(ctx context.Context) (Filesystem, error)
}

// EventNotifier receives store events after a mutation commits.
type EventNotifier interface {
	Notify(ctx context.Context, event StoreEvent)
}

// RunHandle references one submitted job run.
type RunHandle interface {
	ID() string
	Status(ctx context.Context) (RunStatus, error)
}

// JobSubmitter submits indexing job runs.
type JobSubmitter interface {
	Submit(ctx context.Context, conf JobConfig) (RunHandle, error)
}

// ArtifactSource yields the packaged indexing job code.
type ArtifactSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// RunHistory records job submissions.
type RunHistory interface {
	Record(ctx context.Context, run JobRun) error
	List(ctx context.Context, limit int) ([]JobRun, error)
}

// TransitionValidator validates job controller state transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current JobState, event JobEvent) (JobState, error)
}
