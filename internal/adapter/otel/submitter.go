package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// TracingSubmitter wraps a domain.JobSubmitter with OpenTelemetry tracing.
type TracingSubmitter struct {
	next   domain.JobSubmitter
	tracer trace.Tracer
}

// Compile-time check: TracingSubmitter implements domain.JobSubmitter.
var _ domain.JobSubmitter = (*TracingSubmitter)(nil)

// NewTracingSubmitter creates a tracing decorator around the given submitter.
func NewTracingSubmitter(next domain.JobSubmitter) *TracingSubmitter {
	return &TracingSubmitter{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingSubmitter) Submit(ctx context.Context, conf domain.JobConfig) (domain.RunHandle, error) {
	ctx, span := s.tracer.Start(ctx, "JobSubmitter.Submit",
		trace.WithAttributes(
			attribute.String("job.name", conf.Name),
			attribute.String("job.input", conf.InputPath.String()),
			attribute.String("job.output", conf.OutputPath.String()),
		),
	)
	defer span.End()

	handle, err := s.next.Submit(ctx, conf)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("job.run_id", handle.ID()))
	return handle, nil
}

// TracingHistory wraps a domain.RunHistory with OpenTelemetry tracing.
type TracingHistory struct {
	next   domain.RunHistory
	tracer trace.Tracer
}

// Compile-time check: TracingHistory implements domain.RunHistory.
var _ domain.RunHistory = (*TracingHistory)(nil)

// NewTracingHistory creates a tracing decorator around the given history.
func NewTracingHistory(next domain.RunHistory) *TracingHistory {
	return &TracingHistory{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (h *TracingHistory) Record(ctx context.Context, run domain.JobRun) error {
	ctx, span := h.tracer.Start(ctx, "RunHistory.Record",
		trace.WithAttributes(
			attribute.String("job.run_id", run.RunID),
			attribute.Bool("job.resubmission", run.Resubmission),
		),
	)
	defer span.End()

	err := h.next.Record(ctx, run)
	recordError(span, err)
	return err
}

func (h *TracingHistory) List(ctx context.Context, limit int) ([]domain.JobRun, error) {
	ctx, span := h.tracer.Start(ctx, "RunHistory.List",
		trace.WithAttributes(attribute.Int("query.limit", limit)),
	)
	defer span.End()

	runs, err := h.next.List(ctx, limit)
	recordError(span, err)
	span.SetAttributes(attribute.Int("result.count", len(runs)))
	return runs, err
}
