package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/tenantdocs/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenantdocs.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "tenantdocs.db", cfg.DatabasePath)
	assert.Equal(t, "memory://", cfg.Filesystem.DSN)
	assert.Equal(t, "/wordcount/jars/wordcount.job", cfg.Job.ArtifactPath)
	assert.Equal(t, 2, cfg.Job.Workers)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
filesystem:
  dsn: s3://documents/tenantdocs
  region: eu-west-1
job:
  workers: 4
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "tenantdocs.db", cfg.DatabasePath, "unset fields keep their default")
	assert.Equal(t, "eu-west-1", cfg.Filesystem.Region)
	assert.Equal(t, 4, cfg.Job.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: \"9090\"\n")
	t.Setenv("PORT", "7070")
	t.Setenv("FILESYSTEM_DSN", "file:///var/lib/tenantdocs")
	t.Setenv("JOB_WORKERS", "8")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "file:///var/lib/tenantdocs", cfg.Filesystem.DSN)
	assert.Equal(t, 8, cfg.Job.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoad_BadWorkers(t *testing.T) {
	t.Setenv("JOB_WORKERS", "many")

	_, err := config.Load("")
	assert.ErrorContains(t, err, "JOB_WORKERS")
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Port = ""
	cfg.Job.ArtifactPath = "relative/job"
	cfg.Job.Workers = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "port is required")
	assert.ErrorContains(t, err, "must be absolute")
	assert.ErrorContains(t, err, "at least 1")
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want config.DSN
	}{
		{"memory://", config.DSN{Backend: config.BackendMemory}},
		{"file:///var/lib/tenantdocs", config.DSN{Backend: config.BackendLocal, Path: "/var/lib/tenantdocs"}},
		{"s3://documents/tenantdocs/", config.DSN{Backend: config.BackendS3, Bucket: "documents", Path: "tenantdocs"}},
		{"s3://documents", config.DSN{Backend: config.BackendS3, Bucket: "documents"}},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := config.FilesystemConfig{DSN: tt.dsn}.Parse()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDSN_Invalid(t *testing.T) {
	for _, dsn := range []string{"hdfs://namenode:8020", "s3:///prefix", "file://", "file://remote/x"} {
		t.Run(dsn, func(t *testing.T) {
			_, err := config.FilesystemConfig{DSN: dsn}.Parse()
			assert.Error(t, err)
		})
	}
}
