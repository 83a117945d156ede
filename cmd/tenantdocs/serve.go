package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	handler "github.com/neomorfeo/tenantdocs/internal/adapter/http"
	"github.com/neomorfeo/tenantdocs/internal/adapter/fsm"
	"github.com/neomorfeo/tenantdocs/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/tenantdocs/internal/adapter/river"
	"github.com/neomorfeo/tenantdocs/internal/adapter/sqlite"
	"github.com/neomorfeo/tenantdocs/internal/app"
	"github.com/neomorfeo/tenantdocs/internal/config"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the document API and run the indexing job worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, nil)
		},
	}
}

// run wires every adapter and serves until ctx is cancelled. When ready is
// not nil it receives the listener address once the server accepts requests.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) (err error) {
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, providers.Shutdown(shutdownCtx))
	}()

	db, err := otel.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	runs, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("run history: %w", err)
	}
	history := otel.NewTracingHistory(runs)

	// The river client is created after the controller because its worker
	// reads through the controller's filesystem handle.
	var client *riveradapter.Client
	controller := app.NewJobController(app.JobControllerOptions{
		DialFilesystem: filesystemDialer(cfg.Filesystem),
		DialSubmitter: func(context.Context) (domain.JobSubmitter, error) {
			if client == nil {
				return nil, errors.New("job queue is not running")
			}
			return otel.NewTracingSubmitter(riveradapter.NewSubmitter(client)), nil
		},
		Validator:    fsm.New(),
		Artifact:     artifactSource(cfg.Job),
		ArtifactPath: domain.NewPath(cfg.Job.ArtifactPath),
		History:      history,
	})

	client, err = riveradapter.Setup(ctx, db, controller, cfg.Job.Workers)
	if err != nil {
		return fmt.Errorf("job queue: %w", err)
	}
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("starting job queue: %w", err)
	}

	if err := controller.Init(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return multierr.Append(fmt.Errorf("initializing job controller: %w", err), client.Stop(stopCtx))
	}

	store := app.NewDocumentStore(controller, controller)

	router := chi.NewMux()
	router.Use(otelchi.Middleware("tenantdocs", otelchi.WithChiRoutes(router)))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	api := humachi.New(router, huma.DefaultConfig("tenantdocs", "0.1.0"))
	handler.Register(api, store)
	handler.RegisterJobs(api, controller, history)

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listening on :%s: %w", cfg.Port, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.InfoContext(ctx, "tenantdocs listening",
			"addr", ln.Addr().String(),
			"filesystem", cfg.Filesystem.DSN,
		)
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var err error
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		err = multierr.Append(err, client.Stop(shutdownCtx))
		err = multierr.Append(err, controller.Shutdown(shutdownCtx))
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "stopped")
	return nil
}

func artifactSource(cfg config.JobConfig) domain.ArtifactSource {
	if cfg.ArtifactFile != "" {
		return riveradapter.FileArtifact{Path: cfg.ArtifactFile}
	}
	return riveradapter.EmbeddedArtifact{}
}
