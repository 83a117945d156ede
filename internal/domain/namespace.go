package domain

import (
	"path"
	"strconv"
	"strings"
)

// VersionDefault is the version label used when a caller does not name one.
const VersionDefault = "1.0"

// Separator is the namespace path separator.
const Separator = "/"

// Path is an absolute, slash-separated namespace path.
// The zero value is not valid; build paths with NewPath, DirPath or FilePath.
type Path string

// RootPath is the namespace root.
const RootPath Path = Separator

// NewPath cleans p and roots it at the separator.
func NewPath(p string) Path {
	return Path(path.Clean(Separator + p))
}

func (p Path) String() string { return string(p) }

// IsRoot reports whether p is the namespace root.
func (p Path) IsRoot() bool { return p == RootPath }

// Parent returns all segments but the last. The root is its own parent.
func (p Path) Parent() Path {
	return Path(path.Dir(string(p)))
}

// Name returns the last segment.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return path.Base(string(p))
}

// Child appends one or more segments.
func (p Path) Child(segments ...string) Path {
	return NewPath(path.Join(append([]string{string(p)}, segments...)...))
}

// Suffix appends s verbatim to the path text, like "/1/100" + "/*".
func (p Path) Suffix(s string) Path {
	if p.IsRoot() {
		return NewPath(s)
	}
	return Path(string(p) + s)
}

// Segments returns the path segments without the leading separator.
func (p Path) Segments() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(p), Separator), Separator)
}

// Contains reports whether q equals p or lies below it.
func (p Path) Contains(q Path) bool {
	if p.IsRoot() || p == q {
		return true
	}
	return strings.HasPrefix(string(q), string(p)+Separator)
}

// DirPath builds /tenant/repository[/name]. An empty name addresses the
// repository root.
func DirPath(tenantID, repositoryID int64, name string) Path {
	var sb strings.Builder
	sb.WriteString(Separator)
	sb.WriteString(strconv.FormatInt(tenantID, 10))
	sb.WriteString(Separator)
	sb.WriteString(strconv.FormatInt(repositoryID, 10))
	if name != "" {
		sb.WriteString(Separator)
		sb.WriteString(name)
	}
	return Path(sb.String())
}

// FilePath builds /tenant/repository/name/version, substituting
// VersionDefault for an empty version.
func FilePath(tenantID, repositoryID int64, name, version string) Path {
	if version == "" {
		version = VersionDefault
	}
	return Path(string(DirPath(tenantID, repositoryID, name)) + Separator + version)
}

// TenantPath is the namespace root of one tenant.
func TenantPath(tenantID int64) Path {
	return Path(Separator + strconv.FormatInt(tenantID, 10))
}

// ShortName reduces a listed absolute path to the portion starting at dirName.
// When dirName does not occur in listed, listed is returned unchanged.
func ShortName(listed Path, dirName string) string {
	s := string(listed)
	if pos := strings.Index(s, dirName); pos != -1 {
		return s[pos:]
	}
	return s
}
