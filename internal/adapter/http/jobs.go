package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/tenantdocs/internal/app"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// JobResponse is the API representation of the job controller.
type JobResponse struct {
	State      string   `json:"state" doc:"Controller lifecycle state"`
	RunID      string   `json:"run_id,omitempty" doc:"Tracked run"`
	RunStatus  string   `json:"run_status,omitempty" doc:"Last polled status of the tracked run"`
	Name       string   `json:"name,omitempty" doc:"Job name"`
	InputPath  string   `json:"input_path,omitempty" doc:"Input glob"`
	OutputPath string   `json:"output_path,omitempty" doc:"Output directory"`
	Classpath  []string `json:"classpath,omitempty" doc:"Deployed artifacts"`
}

func toJobResponse(s app.JobStatus) JobResponse {
	resp := JobResponse{
		State:     string(s.State),
		RunID:     s.RunID,
		RunStatus: string(s.RunStatus),
	}
	if s.Config != nil {
		resp.Name = s.Config.Name
		resp.InputPath = s.Config.InputPath.String()
		resp.OutputPath = s.Config.OutputPath.String()
		for _, p := range s.Config.Classpath {
			resp.Classpath = append(resp.Classpath, p.String())
		}
	}
	return resp
}

// RunResponse is the API representation of one recorded submission.
type RunResponse struct {
	RunID          string `json:"run_id" doc:"Run identifier"`
	JobName        string `json:"job_name" doc:"Job name"`
	InputPath      string `json:"input_path" doc:"Input glob"`
	OutputPath     string `json:"output_path" doc:"Output directory"`
	ArchivedOutput string `json:"archived_output,omitempty" doc:"Where the previous output was moved"`
	Resubmission   bool   `json:"resubmission" doc:"Whether the run replaced a stale one"`
	SubmittedAt    string `json:"submitted_at" doc:"Submission timestamp (ISO 8601)"`
}

func toRunResponse(r domain.JobRun) RunResponse {
	return RunResponse{
		RunID:          r.RunID,
		JobName:        r.JobName,
		InputPath:      r.InputPath.String(),
		OutputPath:     r.OutputPath.String(),
		ArchivedOutput: r.ArchivedOutput.String(),
		Resubmission:   r.Resubmission,
		SubmittedAt:    r.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

type JobStatusOutput struct {
	Body JobResponse
}

type EnsureJobInput struct {
	Body struct {
		TenantID     int64 `json:"tenant_id" doc:"Tenant whose repository feeds a first submission"`
		RepositoryID int64 `json:"repository_id" minimum:"1" doc:"Repository whose content feeds a first submission"`
	}
}

type ListRunsInput struct {
	Limit int `query:"limit" required:"false" default:"50" minimum:"0" doc:"Max results, 0 for all"`
}

type ListRunsOutput struct {
	Body []RunResponse
}

// RegisterJobs adds the job controller routes to the Huma API. The run
// history routes are skipped when history is nil.
func RegisterJobs(api huma.API, jobs *app.JobController, history domain.RunHistory) {
	huma.Register(api, huma.Operation{
		OperationID: "get-wordcount-job",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/wordcount",
		Summary:     "Get the word count job state",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, _ *struct{}) (*JobStatusOutput, error) {
		status, err := jobs.Status(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &JobStatusOutput{Body: toJobResponse(status)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ensure-wordcount-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/jobs/wordcount/ensure",
		Summary:     "Deploy and submit the word count job unless a run is active",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *EnsureJobInput) (*JobStatusOutput, error) {
		status, err := jobs.EnsureRunning(ctx, input.Body.TenantID, input.Body.RepositoryID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &JobStatusOutput{Body: toJobResponse(status)}, nil
	})

	if history == nil {
		return
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-wordcount-runs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/wordcount/runs",
		Summary:     "List recorded submissions, newest first",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
		runs, err := history.List(ctx, input.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]RunResponse, len(runs))
		for i, r := range runs {
			resp[i] = toRunResponse(r)
		}
		return &ListRunsOutput{Body: resp}, nil
	})
}
