package river

import (
	"github.com/riverqueue/river"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// WordCountArgs carries one job configuration through River's queue.
// River serializes it as JSON into the river_job table.
type WordCountArgs struct {
	Name         string   `json:"name"`
	Mapper       string   `json:"mapper"`
	Combiner     string   `json:"combiner,omitempty"`
	Reducer      string   `json:"reducer"`
	InputFormat  string   `json:"input_format"`
	OutputFormat string   `json:"output_format"`
	InputPath    string   `json:"input_path"`
	OutputPath   string   `json:"output_path"`
	Classpath    []string `json:"classpath"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (WordCountArgs) Kind() string { return "wordcount.run" }

// InsertOpts disables retries. A failed run is noticed by the job controller
// on the next store event and resubmitted there.
func (WordCountArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// NewWordCountArgs converts a job configuration into queue arguments.
func NewWordCountArgs(conf domain.JobConfig) WordCountArgs {
	classpath := make([]string, 0, len(conf.Classpath))
	for _, p := range conf.Classpath {
		classpath = append(classpath, p.String())
	}
	return WordCountArgs{
		Name:         conf.Name,
		Mapper:       conf.Mapper,
		Combiner:     conf.Combiner,
		Reducer:      conf.Reducer,
		InputFormat:  conf.InputFormat,
		OutputFormat: conf.OutputFormat,
		InputPath:    conf.InputPath.String(),
		OutputPath:   conf.OutputPath.String(),
		Classpath:    classpath,
	}
}

// Config converts the queue arguments back into a job configuration.
func (a WordCountArgs) Config() domain.JobConfig {
	classpath := make([]domain.Path, 0, len(a.Classpath))
	for _, p := range a.Classpath {
		classpath = append(classpath, domain.NewPath(p))
	}
	return domain.JobConfig{
		Name:         a.Name,
		Mapper:       a.Mapper,
		Combiner:     a.Combiner,
		Reducer:      a.Reducer,
		InputFormat:  a.InputFormat,
		OutputFormat: a.OutputFormat,
		InputPath:    domain.Path(a.InputPath),
		OutputPath:   domain.NewPath(a.OutputPath),
		Classpath:    classpath,
	}
}
