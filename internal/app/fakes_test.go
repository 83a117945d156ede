package app_test

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/neomorfeo/tenantdocs/internal/adapter/memfs"
	"github.com/neomorfeo/tenantdocs/internal/app"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// --- Mocks ---

// testValidator walks domain.JobTransitions without the FSM adapter.
type testValidator struct{}

func (v *testValidator) Apply(_ context.Context, current domain.JobState, event domain.JobEvent) (domain.JobState, error) {
	for _, t := range domain.JobTransitions {
		if t.Event == event && t.Src == current {
			return t.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

type mockHandle struct {
	mu     sync.Mutex
	id     string
	status domain.RunStatus
}

func (h *mockHandle) ID() string { return h.id }

func (h *mockHandle) Status(_ context.Context) (domain.RunStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, nil
}

func (h *mockHandle) set(status domain.RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

type mockSubmitter struct {
	mu      sync.Mutex
	configs []domain.JobConfig
	handles []*mockHandle
	err     error
}

func (m *mockSubmitter) Submit(_ context.Context, conf domain.JobConfig) (domain.RunHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	h := &mockHandle{id: strconv.Itoa(len(m.handles) + 1), status: domain.RunStatusPreparing}
	m.configs = append(m.configs, conf)
	m.handles = append(m.handles, h)
	return h, nil
}

func (m *mockSubmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

func (m *mockSubmitter) last() *mockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles[len(m.handles)-1]
}

type countingArtifact struct {
	mu      sync.Mutex
	content string
	opens   int
}

func (a *countingArtifact) Open(_ context.Context) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opens++
	return io.NopCloser(strings.NewReader(a.content)), nil
}

type mockHistory struct {
	mu   sync.Mutex
	runs []domain.JobRun
}

func (m *mockHistory) Record(_ context.Context, run domain.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockHistory) List(_ context.Context, _ int) ([]domain.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.JobRun(nil), m.runs...), nil
}

// recordingNotifier collects store events without evaluating jobs.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.StoreEvent
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.StoreEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

type staticSource struct {
	fs  domain.Filesystem
	err error
}

func (s staticSource) Filesystem(_ context.Context) (domain.Filesystem, error) {
	return s.fs, s.err
}

// failingFS fails selected operations and delegates the rest.
type failingFS struct {
	domain.Filesystem
	failOpen   bool
	failRename bool
	refuse     bool
}

var errInjected = errors.New("injected failure")

func (f *failingFS) Open(ctx context.Context, p domain.Path) (io.ReadCloser, error) {
	if f.failOpen {
		return nil, errInjected
	}
	return f.Filesystem.Open(ctx, p)
}

func (f *failingFS) Rename(ctx context.Context, src, dst domain.Path) (bool, error) {
	if f.failRename {
		return false, errInjected
	}
	if f.refuse {
		return false, nil
	}
	return f.Filesystem.Rename(ctx, src, dst)
}

const artifactPath domain.Path = "/wordcount/jars/wordcount.job"

type harness struct {
	fs        *memfs.FS
	submitter *mockSubmitter
	artifact  *countingArtifact
	history   *mockHistory
	ctrl      *app.JobController
	store     *app.DocumentStore
}

func newHarness() *harness {
	h := &harness{
		fs:        memfs.New(),
		submitter: &mockSubmitter{},
		artifact:  &countingArtifact{content: "job"},
		history:   &mockHistory{},
	}
	h.ctrl = app.NewJobController(app.JobControllerOptions{
		DialFilesystem: func(context.Context) (domain.Filesystem, error) { return h.fs, nil },
		DialSubmitter:  func(context.Context) (domain.JobSubmitter, error) { return h.submitter, nil },
		Validator:      &testValidator{},
		Artifact:       h.artifact,
		ArtifactPath:   artifactPath,
		History:        h.history,
	})
	h.store = app.NewDocumentStore(h.ctrl, h.ctrl)
	return h
}
