package main

import (
	"context"
	"fmt"

	"github.com/neomorfeo/tenantdocs/internal/adapter/localfs"
	"github.com/neomorfeo/tenantdocs/internal/adapter/memfs"
	"github.com/neomorfeo/tenantdocs/internal/adapter/otel"
	"github.com/neomorfeo/tenantdocs/internal/adapter/s3fs"
	"github.com/neomorfeo/tenantdocs/internal/app"
	"github.com/neomorfeo/tenantdocs/internal/config"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// filesystemDialer selects the backend named by the DSN scheme. Every
// backend is wrapped in the tracing decorator.
func filesystemDialer(cfg config.FilesystemConfig) app.FilesystemDialer {
	return func(ctx context.Context) (domain.Filesystem, error) {
		dsn, err := cfg.Parse()
		if err != nil {
			return nil, err
		}

		var fsys domain.Filesystem
		switch dsn.Backend {
		case config.BackendMemory:
			fsys = memfs.New()
		case config.BackendLocal:
			local, err := localfs.New(dsn.Path)
			if err != nil {
				return nil, fmt.Errorf("opening local filesystem: %w", err)
			}
			fsys = local
		case config.BackendS3:
			bucket, err := s3fs.Dial(ctx, s3fs.Options{
				Bucket:    dsn.Bucket,
				Prefix:    dsn.Path,
				Region:    cfg.Region,
				Endpoint:  cfg.Endpoint,
				AccessKey: cfg.AccessKey,
				SecretKey: cfg.SecretKey,
			})
			if err != nil {
				return nil, fmt.Errorf("connecting to s3: %w", err)
			}
			fsys = bucket
		default:
			return nil, fmt.Errorf("unsupported filesystem backend %q", dsn.Backend)
		}

		return otel.NewTracingFilesystem(fsys), nil
	}
}
