package domain

import (
	"strconv"
	"time"
)

// JobState represents the lifecycle state of the indexing job controller.
type JobState string

const (
	JobStateUninitialized   JobState = "uninitialized"
	JobStateFilesystemReady JobState = "filesystem_ready"
	JobStateCodeDeployed    JobState = "job_code_deployed"
	JobStateSubmitted       JobState = "job_submitted"
	JobStateStale           JobState = "job_stale"
)

// JobEvent represents an action that moves the controller between states.
type JobEvent string

const (
	JobEventConnect      JobEvent = "connect"
	JobEventDeploy       JobEvent = "deploy"
	JobEventSubmit       JobEvent = "submit"
	JobEventObserveStale JobEvent = "observe_stale"
	JobEventResubmit     JobEvent = "resubmit"
)

// JobTransition defines a valid state change: an event moves the controller from Src to Dst.
type JobTransition struct {
	Event JobEvent
	Src   JobState
	Dst   JobState
}

// JobTransitions defines all valid state changes of the job controller.
var JobTransitions = []JobTransition{
	{Event: JobEventConnect, Src: JobStateUninitialized, Dst: JobStateFilesystemReady},
	{Event: JobEventDeploy, Src: JobStateFilesystemReady, Dst: JobStateCodeDeployed},
	{Event: JobEventSubmit, Src: JobStateCodeDeployed, Dst: JobStateSubmitted},
	{Event: JobEventObserveStale, Src: JobStateSubmitted, Dst: JobStateStale},
	{Event: JobEventResubmit, Src: JobStateStale, Dst: JobStateSubmitted},
}

// RunStatus is the last known status of a submitted job run.
type RunStatus string

const (
	RunStatusPreparing RunStatus = "preparing"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusKilled    RunStatus = "killed"
)

// Active reports whether a run with this status is still in flight.
// Any other status makes the tracked run stale.
func (s RunStatus) Active() bool {
	return s == RunStatusRunning || s == RunStatusPreparing
}

// Word count job identities. The worker resolves mapper, combiner and
// reducer by these names.
const (
	WordCountJobName = "Word Count"
	WordCountMapper  = "wordcount.tokenize"
	WordCountReducer = "wordcount.sum"
	WordCountResults = "wc-results"
	TextFormat       = "text"
)

// JobConfig is the submission configuration of one indexing job.
type JobConfig struct {
	Name         string
	Mapper       string
	Combiner     string
	Reducer      string
	InputFormat  string
	OutputFormat string
	InputPath    Path
	OutputPath   Path
	Classpath    []Path
}

// NewWordCountConfig builds the job configuration for the content namespace
// rooted at root: input is every entry below root, output is the sibling
// results directory.
func NewWordCountConfig(root, artifact Path) JobConfig {
	return JobConfig{
		Name:         WordCountJobName,
		Mapper:       WordCountMapper,
		Combiner:     WordCountReducer,
		Reducer:      WordCountReducer,
		InputFormat:  TextFormat,
		OutputFormat: TextFormat,
		InputPath:    root.Suffix("/*"),
		OutputPath:   root.Parent().Child(WordCountResults),
		Classpath:    []Path{artifact},
	}
}

// ArchivePath returns the timestamped backup name for an output directory.
func ArchivePath(output Path, at time.Time) Path {
	return output.Parent().Child("." + output.Name() + "-" + strconv.FormatInt(at.UnixMilli(), 10))
}

// JobRun is one submission as recorded in the run history.
type JobRun struct {
	RunID          string
	JobName        string
	InputPath      Path
	OutputPath     Path
	ArchivedOutput Path
	Resubmission   bool
	SubmittedAt    time.Time
}
