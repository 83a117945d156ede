package otel

import (
	"context"
	"io"
	"io/fs"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

const tracerName = "github.com/neomorfeo/tenantdocs/internal/adapter/otel"

// TracingFilesystem wraps a domain.Filesystem with OpenTelemetry tracing.
// Each method creates a span carrying the path and records errors.
type TracingFilesystem struct {
	next   domain.Filesystem
	tracer trace.Tracer
}

// Compile-time check: TracingFilesystem implements domain.Filesystem.
var _ domain.Filesystem = (*TracingFilesystem)(nil)

// NewTracingFilesystem creates a tracing decorator around the given filesystem.
func NewTracingFilesystem(next domain.Filesystem) *TracingFilesystem {
	return &TracingFilesystem{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (f *TracingFilesystem) start(ctx context.Context, op string, p domain.Path, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("fs.path", p.String()))
	return f.tracer.Start(ctx, "Filesystem."+op, trace.WithAttributes(attrs...))
}

func (f *TracingFilesystem) Exists(ctx context.Context, p domain.Path) (bool, error) {
	ctx, span := f.start(ctx, "Exists", p)
	defer span.End()

	ok, err := f.next.Exists(ctx, p)
	recordError(span, err)
	span.SetAttributes(attribute.Bool("fs.exists", ok))
	return ok, err
}

func (f *TracingFilesystem) Create(ctx context.Context, p domain.Path) (io.WriteCloser, error) {
	ctx, span := f.start(ctx, "Create", p)
	defer span.End()

	w, err := f.next.Create(ctx, p)
	recordError(span, err)
	return w, err
}

func (f *TracingFilesystem) Open(ctx context.Context, p domain.Path) (io.ReadCloser, error) {
	ctx, span := f.start(ctx, "Open", p)
	defer span.End()

	r, err := f.next.Open(ctx, p)
	recordError(span, err)
	return r, err
}

func (f *TracingFilesystem) Delete(ctx context.Context, p domain.Path, recursive bool) (bool, error) {
	ctx, span := f.start(ctx, "Delete", p, attribute.Bool("fs.recursive", recursive))
	defer span.End()

	ok, err := f.next.Delete(ctx, p, recursive)
	recordError(span, err)
	span.SetAttributes(attribute.Bool("fs.deleted", ok))
	return ok, err
}

func (f *TracingFilesystem) Rename(ctx context.Context, src, dst domain.Path) (bool, error) {
	ctx, span := f.start(ctx, "Rename", src, attribute.String("fs.target", dst.String()))
	defer span.End()

	ok, err := f.next.Rename(ctx, src, dst)
	recordError(span, err)
	span.SetAttributes(attribute.Bool("fs.renamed", ok))
	return ok, err
}

func (f *TracingFilesystem) List(ctx context.Context, p domain.Path) ([]domain.FileStatus, error) {
	ctx, span := f.start(ctx, "List", p)
	defer span.End()

	entries, err := f.next.List(ctx, p)
	recordError(span, err)
	span.SetAttributes(attribute.Int("fs.entries", len(entries)))
	return entries, err
}

func (f *TracingFilesystem) Stat(ctx context.Context, p domain.Path) (domain.FileStatus, error) {
	ctx, span := f.start(ctx, "Stat", p)
	defer span.End()

	st, err := f.next.Stat(ctx, p)
	recordError(span, err)
	return st, err
}

func (f *TracingFilesystem) Mkdir(ctx context.Context, p domain.Path, perm fs.FileMode) error {
	ctx, span := f.start(ctx, "Mkdir", p)
	defer span.End()

	err := f.next.Mkdir(ctx, p, perm)
	recordError(span, err)
	return err
}

// Close closes the wrapped filesystem when it holds resources.
func (f *TracingFilesystem) Close() error {
	if closer, ok := f.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
