package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// Compile-time checks: JobController feeds the document store.
var (
	_ domain.FilesystemSource = (*JobController)(nil)
	_ domain.EventNotifier    = (*JobController)(nil)
)

// FilesystemDialer connects to the remote filesystem.
type FilesystemDialer func(ctx context.Context) (domain.Filesystem, error)

// SubmitterDialer connects to the job submission service.
type SubmitterDialer func(ctx context.Context) (domain.JobSubmitter, error)

// JobControllerOptions holds the collaborators of a JobController.
type JobControllerOptions struct {
	DialFilesystem FilesystemDialer
	DialSubmitter  SubmitterDialer
	Validator      domain.TransitionValidator
	Artifact       domain.ArtifactSource
	ArtifactPath   domain.Path

	// History is optional; submissions are not recorded when nil.
	History domain.RunHistory

	// Now defaults to time.Now.
	Now func() time.Time
}

// runRecord is the currently tracked job run. It is replaced, never mutated.
type runRecord struct {
	handle domain.RunHandle
	conf   domain.JobConfig
}

// JobController owns the shared filesystem handle and job submission client
// and keeps the word count job deployed and running. All job evaluation is
// serialized by one lock; connecting the handles is guarded separately.
type JobController struct {
	opts JobControllerOptions

	fsMu sync.Mutex
	fs   domain.Filesystem

	submitterMu sync.Mutex
	submitter   domain.JobSubmitter

	stateMu sync.RWMutex
	state   domain.JobState

	mu  sync.Mutex
	run *runRecord
}

// JobStatus is a snapshot of the controller for presentation.
type JobStatus struct {
	State     domain.JobState
	RunID     string
	RunStatus domain.RunStatus
	Config    *domain.JobConfig
}

// NewJobController creates a controller. No connection is made until Init
// or the first filesystem access.
func NewJobController(opts JobControllerOptions) *JobController {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JobController{
		opts:  opts,
		state: domain.JobStateUninitialized,
	}
}

// Init eagerly connects the filesystem and the job submission client.
func (c *JobController) Init(ctx context.Context) error {
	if _, err := c.Filesystem(ctx); err != nil {
		return err
	}
	if _, err := c.jobSubmitter(ctx); err != nil {
		return err
	}
	return nil
}

// Shutdown releases the handles that hold resources.
func (c *JobController) Shutdown(_ context.Context) error {
	var err error

	c.submitterMu.Lock()
	if closer, ok := c.submitter.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	c.submitterMu.Unlock()

	c.fsMu.Lock()
	if closer, ok := c.fs.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	c.fsMu.Unlock()

	return err
}

// State returns the current lifecycle state.
func (c *JobController) State() domain.JobState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Filesystem returns the shared filesystem handle, connecting on first use.
// A connection failure is returned to the caller and nothing is cached.
func (c *JobController) Filesystem(ctx context.Context) (domain.Filesystem, error) {
	c.fsMu.Lock()
	defer c.fsMu.Unlock()

	if c.fs != nil {
		return c.fs, nil
	}

	fsys, err := c.opts.DialFilesystem(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting filesystem: %w", err)
	}

	if err := c.transition(ctx, domain.JobEventConnect); err != nil {
		return nil, err
	}
	c.fs = fsys

	slog.InfoContext(ctx, "filesystem connected")
	return fsys, nil
}

func (c *JobController) connectedFilesystem() domain.Filesystem {
	c.fsMu.Lock()
	defer c.fsMu.Unlock()
	return c.fs
}

func (c *JobController) jobSubmitter(ctx context.Context) (domain.JobSubmitter, error) {
	c.submitterMu.Lock()
	defer c.submitterMu.Unlock()

	if c.submitter != nil {
		return c.submitter, nil
	}

	submitter, err := c.opts.DialSubmitter(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting job submitter: %w", err)
	}
	c.submitter = submitter
	return submitter, nil
}

// Notify evaluates the job state for a store event. Events without a
// repository, or arriving before the filesystem is connected, are ignored.
// Evaluation failures are logged and never returned.
func (c *JobController) Notify(ctx context.Context, event domain.StoreEvent) {
	if !event.HasRepository() {
		return
	}

	fsys := c.connectedFilesystem()
	if fsys == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.evaluate(ctx, fsys, event); err != nil {
		slog.ErrorContext(ctx, "job evaluation failed",
			"error", err,
			"tenant_id", event.TenantID,
			"repository_id", event.RepositoryID,
			"path", event.Path.String(),
		)
	}
}

// EnsureRunning connects if needed, runs the evaluate step for the given
// repository and returns the resulting status.
func (c *JobController) EnsureRunning(ctx context.Context, tenantID, repositoryID int64) (JobStatus, error) {
	if _, err := c.Filesystem(ctx); err != nil {
		return JobStatus{}, err
	}
	root := domain.DirPath(tenantID, repositoryID, "")
	c.Notify(ctx, domain.NewStoreEvent(tenantID, repositoryID, root))
	return c.Status(ctx)
}

// Status reports the lifecycle state and polls the tracked run, if any.
func (c *JobController) Status(ctx context.Context) (JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := JobStatus{State: c.State()}
	if c.run == nil {
		return status, nil
	}

	conf := c.run.conf
	status.RunID = c.run.handle.ID()
	status.Config = &conf

	runStatus, err := c.run.handle.Status(ctx)
	if err != nil {
		return status, fmt.Errorf("polling run %s: %w", status.RunID, err)
	}
	status.RunStatus = runStatus
	return status, nil
}

// evaluate must be called with c.mu held.
func (c *JobController) evaluate(ctx context.Context, fsys domain.Filesystem, event domain.StoreEvent) error {
	submitter, err := c.jobSubmitter(ctx)
	if err != nil {
		return &domain.JobEvaluationError{Stage: "connect", Err: err}
	}

	if c.run == nil {
		if err := c.deploy(ctx, fsys); err != nil {
			return &domain.JobEvaluationError{Stage: "deploy", Err: err}
		}
		conf := domain.NewWordCountConfig(event.RootPath(), c.opts.ArtifactPath)
		return c.submit(ctx, fsys, submitter, conf, false)
	}

	runStatus, err := c.run.handle.Status(ctx)
	if err != nil {
		return &domain.JobEvaluationError{Stage: "poll", Err: err}
	}
	if runStatus.Active() {
		return nil
	}

	slog.InfoContext(ctx, "re-issuing job",
		"job", c.run.conf.Name,
		"run_id", c.run.handle.ID(),
		"run_status", string(runStatus),
	)

	if c.State() == domain.JobStateSubmitted {
		if err := c.transition(ctx, domain.JobEventObserveStale); err != nil {
			return &domain.JobEvaluationError{Stage: "poll", Err: err}
		}
	}
	return c.submit(ctx, fsys, submitter, c.run.conf, true)
}

// deploy copies the job artifact into the filesystem unless it is already there.
func (c *JobController) deploy(ctx context.Context, fsys domain.Filesystem) error {
	path := c.opts.ArtifactPath

	exists, err := fsys.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("checking job artifact: %w", err)
	}

	if !exists {
		if err := c.copyArtifact(ctx, fsys, path); err != nil {
			return err
		}
		slog.InfoContext(ctx, "job code deployed", "path", path.String())
	}

	if c.State() == domain.JobStateFilesystemReady {
		return c.transition(ctx, domain.JobEventDeploy)
	}
	return nil
}

func (c *JobController) copyArtifact(ctx context.Context, fsys domain.Filesystem, path domain.Path) error {
	src, err := c.opts.Artifact.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening job artifact: %w", err)
	}
	defer src.Close()

	dst, err := fsys.Create(ctx, path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return c.discardPartial(ctx, fsys, path, fmt.Errorf("copying job artifact: %w", err))
	}
	if err := dst.Close(); err != nil {
		return c.discardPartial(ctx, fsys, path, fmt.Errorf("closing %s: %w", path, err))
	}
	return nil
}

// discardPartial removes a partially written artifact so the next event
// deploys it again.
func (c *JobController) discardPartial(ctx context.Context, fsys domain.Filesystem, path domain.Path, cause error) error {
	if _, err := fsys.Delete(ctx, path, false); err != nil {
		return errors.Join(cause, fmt.Errorf("removing partial artifact: %w", err))
	}
	return cause
}

// submit archives the previous output, submits conf and replaces the tracked run.
func (c *JobController) submit(ctx context.Context, fsys domain.Filesystem, submitter domain.JobSubmitter, conf domain.JobConfig, resubmission bool) error {
	archived, err := c.archiveOutput(ctx, fsys, conf.OutputPath)
	if err != nil {
		return &domain.JobEvaluationError{Stage: "archive", Err: err}
	}

	handle, err := submitter.Submit(ctx, conf)
	if err != nil {
		return &domain.JobEvaluationError{Stage: "submit", Err: err}
	}

	c.run = &runRecord{handle: handle, conf: conf}

	event := domain.JobEventSubmit
	if resubmission {
		event = domain.JobEventResubmit
	}
	if err := c.transition(ctx, event); err != nil {
		return &domain.JobEvaluationError{Stage: "submit", Err: err}
	}

	slog.InfoContext(ctx, "job submitted",
		"job", conf.Name,
		"run_id", handle.ID(),
		"input", conf.InputPath.String(),
		"output", conf.OutputPath.String(),
		"resubmission", resubmission,
	)

	c.record(ctx, domain.JobRun{
		RunID:          handle.ID(),
		JobName:        conf.Name,
		InputPath:      conf.InputPath,
		OutputPath:     conf.OutputPath,
		ArchivedOutput: archived,
		Resubmission:   resubmission,
		SubmittedAt:    c.opts.Now().UTC(),
	})
	return nil
}

// archiveOutput renames an existing output directory to a free timestamped
// backup name. Output is never deleted.
func (c *JobController) archiveOutput(ctx context.Context, fsys domain.Filesystem, output domain.Path) (domain.Path, error) {
	exists, err := fsys.Exists(ctx, output)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", output, err)
	}
	if !exists {
		return "", nil
	}

	at := c.opts.Now()
	target := domain.ArchivePath(output, at)
	for {
		taken, err := fsys.Exists(ctx, target)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", target, err)
		}
		if !taken {
			break
		}
		at = at.Add(time.Millisecond)
		target = domain.ArchivePath(output, at)
	}

	renamed, err := fsys.Rename(ctx, output, target)
	if err != nil {
		return "", fmt.Errorf("archiving %s: %w", output, err)
	}
	if !renamed {
		return "", &domain.RenameIncompleteError{Source: output, Target: target}
	}

	slog.InfoContext(ctx, "previous job output archived", "output", output.String(), "archive", target.String())
	return target, nil
}

func (c *JobController) record(ctx context.Context, run domain.JobRun) {
	if c.opts.History == nil {
		return
	}
	if err := c.opts.History.Record(ctx, run); err != nil {
		slog.ErrorContext(ctx, "recording job run failed", "error", err, "run_id", run.RunID)
	}
}

func (c *JobController) transition(ctx context.Context, event domain.JobEvent) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	next, err := c.opts.Validator.Apply(ctx, c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}
