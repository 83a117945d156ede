package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them through errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateTarget  = errors.New("duplicate target")
	ErrRenameIncomplete = errors.New("rename incomplete")
	ErrRemoteIO         = errors.New("remote filesystem i/o")
	ErrInvalidName      = errors.New("invalid name")

	// ErrDirectoryNotEmpty is matched by Filesystem.Delete failures on a
	// non-empty directory when recursive is false.
	ErrDirectoryNotEmpty = errors.New("directory not empty")
)

// NotFoundError is returned when a resolved path does not exist.
type NotFoundError struct {
	Path Path
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file %s does not exist", e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateTargetError is returned when a rename target already exists.
// Name is the file being moved.
type DuplicateTargetError struct {
	Name string
	Path Path
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("cannot move file %q: %s already exists", e.Name, e.Path)
}

func (e *DuplicateTargetError) Is(target error) bool { return target == ErrDuplicateTarget }

// InvalidNameError is returned when a caller-supplied name, directory or
// version would address a path outside its repository.
type InvalidNameError struct {
	Field string
	Value string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *InvalidNameError) Is(target error) bool { return target == ErrInvalidName }

// RenameIncompleteError is returned when the filesystem reports a rename as
// unsuccessful without failing outright.
type RenameIncompleteError struct {
	Source Path
	Target Path
}

func (e *RenameIncompleteError) Error() string {
	return fmt.Sprintf("file was not renamed from %s to %s", e.Source, e.Target)
}

func (e *RenameIncompleteError) Is(target error) bool { return target == ErrRenameIncomplete }

// RemoteIOError wraps a lower-level filesystem failure.
type RemoteIOError struct {
	Op   string
	Path Path
	Err  error
}

func (e *RemoteIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteIOError) Unwrap() error { return e.Err }

func (e *RemoteIOError) Is(target error) bool { return target == ErrRemoteIO }

// JobEvaluationError describes a failed deploy, archive or submit step.
// It is logged by the job controller and never returned to store callers.
type JobEvaluationError struct {
	Stage string
	Err   error
}

func (e *JobEvaluationError) Error() string {
	return fmt.Sprintf("job evaluation failed at %s: %v", e.Stage, e.Err)
}

func (e *JobEvaluationError) Unwrap() error { return e.Err }

// TransitionError is returned when a job lifecycle transition is not allowed.
type TransitionError struct {
	Event   JobEvent
	Current JobState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}
