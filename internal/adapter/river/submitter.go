package river

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// Compile-time checks.
var (
	_ domain.JobSubmitter = (*Submitter)(nil)
	_ domain.RunHandle    = (*runHandle)(nil)
)

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Submitter implements domain.JobSubmitter by enqueuing River jobs.
type Submitter struct {
	client *Client
}

// NewSubmitter creates a submitter backed by the given River client.
func NewSubmitter(client *Client) *Submitter {
	return &Submitter{client: client}
}

// Submit enqueues one word count run.
func (s *Submitter) Submit(ctx context.Context, conf domain.JobConfig) (domain.RunHandle, error) {
	res, err := s.client.Insert(ctx, NewWordCountArgs(conf), nil)
	if err != nil {
		return nil, fmt.Errorf("enqueuing word count job: %w", err)
	}
	return &runHandle{client: s.client, id: res.Job.ID}, nil
}

// runHandle polls the river_job row of one submitted run.
type runHandle struct {
	client *Client
	id     int64
}

func (h *runHandle) ID() string { return strconv.FormatInt(h.id, 10) }

// Status maps the River job state onto the run status. A job row that no
// longer exists is reported as killed.
func (h *runHandle) Status(ctx context.Context) (domain.RunStatus, error) {
	row, err := h.client.JobGet(ctx, h.id)
	if errors.Is(err, rivertype.ErrNotFound) {
		return domain.RunStatusKilled, nil
	}
	if err != nil {
		return "", fmt.Errorf("getting job %d: %w", h.id, err)
	}
	return RunStatus(row.State), nil
}

// RunStatus converts a River job state.
func RunStatus(state rivertype.JobState) domain.RunStatus {
	switch state {
	case rivertype.JobStateRunning:
		return domain.RunStatusRunning
	case rivertype.JobStateCompleted:
		return domain.RunStatusSucceeded
	case rivertype.JobStateDiscarded:
		return domain.RunStatusFailed
	case rivertype.JobStateCancelled:
		return domain.RunStatusKilled
	default:
		// available, pending, scheduled and retryable jobs have not run yet.
		return domain.RunStatusPreparing
	}
}
