package app

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

const dirPerm fs.FileMode = 0o755

// DocumentStore stores documents and directories addressed by tenant,
// repository, name and version on the remote filesystem. Every successful
// mutation is reported to the notifier after it commits.
type DocumentStore struct {
	source   domain.FilesystemSource
	notifier domain.EventNotifier
}

// NewDocumentStore creates a store over the given filesystem source.
func NewDocumentStore(source domain.FilesystemSource, notifier domain.EventNotifier) *DocumentStore {
	return &DocumentStore{
		source:   source,
		notifier: notifier,
	}
}

// AddDirectory creates /tenant/repository/dir and its parents.
func (s *DocumentStore) AddDirectory(ctx context.Context, tenantID, repositoryID int64, dir string) error {
	p, err := dirPath(tenantID, repositoryID, dir)
	if err != nil {
		return err
	}
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return err
	}

	if err := fsys.Mkdir(ctx, p, dirPerm); err != nil {
		return remoteErr("mkdir", p, err)
	}

	s.notify(ctx, tenantID, repositoryID, p)
	return nil
}

// AddFile streams r to the given file version. An empty version means
// domain.VersionDefault.
func (s *DocumentStore) AddFile(ctx context.Context, tenantID, repositoryID int64, name, version string, r io.Reader) error {
	return s.writeFile(ctx, tenantID, repositoryID, name, version, r)
}

// UpdateFile overwrites the given file version with the content of r.
func (s *DocumentStore) UpdateFile(ctx context.Context, tenantID, repositoryID int64, name, version string, r io.Reader) error {
	return s.writeFile(ctx, tenantID, repositoryID, name, version, r)
}

func (s *DocumentStore) writeFile(ctx context.Context, tenantID, repositoryID int64, name, version string, r io.Reader) error {
	p, err := filePath(tenantID, repositoryID, name, version)
	if err != nil {
		return err
	}
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return err
	}

	w, err := fsys.Create(ctx, p)
	if err != nil {
		return remoteErr("create", p, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return remoteErr("write", p, err)
	}
	if err := w.Close(); err != nil {
		return remoteErr("close", p, err)
	}

	s.notify(ctx, tenantID, repositoryID, p)
	return nil
}

// DeleteDirectory removes the directory recursively, then every ancestor
// left empty by the removal.
func (s *DocumentStore) DeleteDirectory(ctx context.Context, tenantID, repositoryID int64, dir string) error {
	p, err := dirPath(tenantID, repositoryID, dir)
	if err != nil {
		return err
	}
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return err
	}

	if _, err := fsys.Delete(ctx, p, true); err != nil {
		return remoteErr("delete", p, err)
	}
	if err := pruneEmptyAncestors(ctx, fsys, p.Parent(), domain.RootPath); err != nil {
		return err
	}

	s.notify(ctx, tenantID, repositoryID, p)
	return nil
}

// DeleteFile removes one file version when it exists, then every ancestor
// below the tenant root left empty.
func (s *DocumentStore) DeleteFile(ctx context.Context, tenantID, repositoryID int64, name, version string) error {
	p, err := filePath(tenantID, repositoryID, name, version)
	if err != nil {
		return err
	}
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return err
	}

	exists, err := fsys.Exists(ctx, p)
	if err != nil {
		return remoteErr("exists", p, err)
	}
	if exists {
		if _, err := fsys.Delete(ctx, p, true); err != nil {
			return remoteErr("delete", p, err)
		}
	}
	if err := pruneEmptyAncestors(ctx, fsys, p.Parent(), domain.TenantPath(tenantID)); err != nil {
		return err
	}

	s.notify(ctx, tenantID, repositoryID, p)
	return nil
}

// GetFileAsStream opens the given file version for reading.
func (s *DocumentStore) GetFileAsStream(ctx context.Context, tenantID, repositoryID int64, name, version string) (io.ReadCloser, error) {
	p, err := filePath(tenantID, repositoryID, name, version)
	if err != nil {
		return nil, err
	}
	fsys, err := s.existing(ctx, p)
	if err != nil {
		return nil, err
	}

	r, err := fsys.Open(ctx, p)
	if err != nil {
		return nil, remoteErr("open", p, err)
	}
	return r, nil
}

// GetFileSize returns the size in bytes of the given file version.
func (s *DocumentStore) GetFileSize(ctx context.Context, tenantID, repositoryID int64, name, version string) (int64, error) {
	p, err := filePath(tenantID, repositoryID, name, version)
	if err != nil {
		return 0, err
	}
	fsys, err := s.existing(ctx, p)
	if err != nil {
		return 0, err
	}

	st, err := fsys.Stat(ctx, p)
	if err != nil {
		return 0, remoteErr("stat", p, err)
	}
	return st.Size, nil
}

// HasFile reports whether the given file version exists.
func (s *DocumentStore) HasFile(ctx context.Context, tenantID, repositoryID int64, name, version string) (bool, error) {
	p, err := filePath(tenantID, repositoryID, name, version)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, p)
}

// HasDirectory reports whether the directory exists.
func (s *DocumentStore) HasDirectory(ctx context.Context, tenantID, repositoryID int64, dir string) (bool, error) {
	p, err := dirPath(tenantID, repositoryID, dir)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, p)
}

// GetFileNames lists the entries of a directory. Each name is cut down to
// the part starting at dir; a missing or empty directory yields no names.
func (s *DocumentStore) GetFileNames(ctx context.Context, tenantID, repositoryID int64, dir string) ([]string, error) {
	p, err := dirPath(tenantID, repositoryID, dir)
	if err != nil {
		return nil, err
	}
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := fsys.List(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, remoteErr("list", p, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, domain.ShortName(entry.Path, dir))
	}
	return names, nil
}

// UpdateFileRepository moves a file into another repository of the same tenant.
func (s *DocumentStore) UpdateFileRepository(ctx context.Context, tenantID, repositoryID, newRepositoryID int64, name string) error {
	src, err := filePath(tenantID, repositoryID, name, "")
	if err != nil {
		return err
	}
	dst := domain.FilePath(tenantID, newRepositoryID, name, "")

	if err := s.rename(ctx, tenantID, name, src, dst); err != nil {
		return err
	}

	s.notify(ctx, tenantID, newRepositoryID, dst)
	return nil
}

// UpdateFileName renames a file within its repository.
func (s *DocumentStore) UpdateFileName(ctx context.Context, tenantID, repositoryID int64, name, newName string) error {
	src, err := filePath(tenantID, repositoryID, name, "")
	if err != nil {
		return err
	}
	dst, err := filePath(tenantID, repositoryID, newName, "")
	if err != nil {
		return err
	}

	if err := s.rename(ctx, tenantID, name, src, dst); err != nil {
		return err
	}

	s.notify(ctx, tenantID, repositoryID, dst)
	return nil
}

func (s *DocumentStore) rename(ctx context.Context, tenantID int64, name string, src, dst domain.Path) error {
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return err
	}

	taken, err := fsys.Exists(ctx, dst)
	if err != nil {
		return remoteErr("exists", dst, err)
	}
	if taken {
		return &domain.DuplicateTargetError{Name: name, Path: dst}
	}

	exists, err := fsys.Exists(ctx, src)
	if err != nil {
		return remoteErr("exists", src, err)
	}
	if !exists {
		return &domain.NotFoundError{Path: src}
	}

	if err := fsys.Mkdir(ctx, dst.Parent(), dirPerm); err != nil {
		return remoteErr("mkdir", dst.Parent(), err)
	}

	renamed, err := fsys.Rename(ctx, src, dst)
	switch {
	case err != nil:
		err = remoteErr("rename", src, err)
	case !renamed:
		err = &domain.RenameIncompleteError{Source: src, Target: dst}
	}
	if err != nil {
		// Drop the parents made for dst above.
		if pruneErr := pruneEmptyAncestors(ctx, fsys, dst.Parent(), domain.TenantPath(tenantID)); pruneErr != nil {
			return errors.Join(err, pruneErr)
		}
		return err
	}

	return pruneEmptyAncestors(ctx, fsys, src.Parent(), domain.TenantPath(tenantID))
}

func (s *DocumentStore) exists(ctx context.Context, p domain.Path) (bool, error) {
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return false, err
	}

	ok, err := fsys.Exists(ctx, p)
	if err != nil {
		return false, remoteErr("exists", p, err)
	}
	return ok, nil
}

// existing resolves the filesystem and fails with a NotFoundError when p is missing.
func (s *DocumentStore) existing(ctx context.Context, p domain.Path) (domain.Filesystem, error) {
	fsys, err := s.source.Filesystem(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := fsys.Exists(ctx, p)
	if err != nil {
		return nil, remoteErr("exists", p, err)
	}
	if !ok {
		return nil, &domain.NotFoundError{Path: p}
	}
	return fsys, nil
}

func (s *DocumentStore) notify(ctx context.Context, tenantID, repositoryID int64, p domain.Path) {
	s.notifier.Notify(ctx, domain.NewStoreEvent(tenantID, repositoryID, p))
}

// pruneEmptyAncestors walks up from dir deleting empty directories. It stops
// at the first non-empty or missing directory and never deletes floor or
// anything above it. Deletes are non-recursive so an entry created
// concurrently, or a write still in flight, keeps its directory.
func pruneEmptyAncestors(ctx context.Context, fsys domain.Filesystem, dir, floor domain.Path) error {
	for dir != floor && !dir.IsRoot() && floor.Contains(dir) {
		deleted, err := fsys.Delete(ctx, dir, false)
		if errors.Is(err, domain.ErrDirectoryNotEmpty) {
			return nil
		}
		if err != nil {
			return remoteErr("delete", dir, err)
		}
		if !deleted {
			return nil
		}
		dir = dir.Parent()
	}
	return nil
}

func remoteErr(op string, p domain.Path, err error) error {
	var remote *domain.RemoteIOError
	if errors.As(err, &remote) {
		return err
	}
	return &domain.RemoteIOError{Op: op, Path: p, Err: err}
}

// dirPath builds a directory path from a caller-supplied dir. An empty dir
// addresses the repository root.
func dirPath(tenantID, repositoryID int64, dir string) (domain.Path, error) {
	if dir != "" {
		if err := checkRelative("dir", dir); err != nil {
			return "", err
		}
	}
	return domain.DirPath(tenantID, repositoryID, dir), nil
}

// filePath builds a file version path from a caller-supplied name and version.
func filePath(tenantID, repositoryID int64, name, version string) (domain.Path, error) {
	if err := checkRelative("name", name); err != nil {
		return "", err
	}
	if version != "" && (strings.Contains(version, domain.Separator) || !validSegment(version)) {
		return "", &domain.InvalidNameError{Field: "version", Value: version}
	}
	return domain.FilePath(tenantID, repositoryID, name, version), nil
}

// checkRelative accepts slash-separated names that stay inside their
// repository: no empty, "." or ".." segments.
func checkRelative(field, value string) error {
	if value == "" {
		return &domain.InvalidNameError{Field: field, Value: value}
	}
	for _, seg := range strings.Split(value, domain.Separator) {
		if !validSegment(seg) {
			return &domain.InvalidNameError{Field: field, Value: value}
		}
	}
	return nil
}

func validSegment(seg string) bool {
	return seg != "" && seg != "." && seg != ".."
}
