// Package config loads the tenantdocs configuration.
// Order: defaults -> YAML file -> environment overrides -> Validate.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Port         string           `yaml:"port"`
	DatabasePath string           `yaml:"database_path"`
	Filesystem   FilesystemConfig `yaml:"filesystem"`
	Job          JobConfig        `yaml:"job"`
}

// FilesystemConfig selects the remote filesystem backend.
type FilesystemConfig struct {
	// DSN is memory://, file:///path or s3://bucket/prefix.
	DSN string `yaml:"dsn"`

	// S3 settings; ignored by the other backends.
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// JobConfig configures the indexing job and its workers.
type JobConfig struct {
	// ArtifactPath is where the job code is deployed on the filesystem.
	ArtifactPath string `yaml:"artifact_path"`
	// ArtifactFile replaces the embedded job code with a local file.
	ArtifactFile string `yaml:"artifact_file"`
	Workers      int    `yaml:"workers"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:         "8080",
		DatabasePath: "tenantdocs.db",
		Filesystem: FilesystemConfig{
			DSN: "memory://",
		},
		Job: JobConfig{
			ArtifactPath: "/wordcount/jars/wordcount.job",
			Workers:      2,
		},
	}
}

// Load reads the configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides overrides fields from environment variables.
func (c *Config) ApplyEnvOverrides() error {
	setString(&c.Port, "PORT")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.Filesystem.DSN, "FILESYSTEM_DSN")
	setString(&c.Filesystem.Region, "AWS_REGION")
	setString(&c.Filesystem.Endpoint, "S3_ENDPOINT")
	setString(&c.Filesystem.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.Filesystem.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Job.ArtifactPath, "JOB_ARTIFACT_PATH")
	setString(&c.Job.ArtifactFile, "JOB_ARTIFACT_FILE")

	if v := os.Getenv("JOB_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JOB_WORKERS: %w", err)
		}
		c.Job.Workers = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if _, err := c.Filesystem.Parse(); err != nil {
		errs = append(errs, err)
	}
	if !strings.HasPrefix(c.Job.ArtifactPath, "/") {
		errs = append(errs, fmt.Errorf("job.artifact_path %q must be absolute", c.Job.ArtifactPath))
	}
	if c.Job.Workers < 1 {
		errs = append(errs, fmt.Errorf("job.workers must be at least 1, got %d", c.Job.Workers))
	}
	return errors.Join(errs...)
}

// Backend names a filesystem implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendLocal  Backend = "file"
	BackendS3     Backend = "s3"
)

// DSN is a parsed filesystem DSN.
type DSN struct {
	Backend Backend
	// Bucket is set for s3.
	Bucket string
	// Path is the local root for file and the key prefix for s3.
	Path string
}

// Parse parses the filesystem DSN.
func (c FilesystemConfig) Parse() (DSN, error) {
	u, err := url.Parse(c.DSN)
	if err != nil {
		return DSN{}, fmt.Errorf("filesystem.dsn: %w", err)
	}

	switch Backend(u.Scheme) {
	case BackendMemory:
		return DSN{Backend: BackendMemory}, nil
	case BackendLocal:
		if u.Host != "" && u.Host != "localhost" {
			return DSN{}, fmt.Errorf("filesystem.dsn: file DSN must not name host %q", u.Host)
		}
		if u.Path == "" {
			return DSN{}, errors.New("filesystem.dsn: file DSN needs a path")
		}
		return DSN{Backend: BackendLocal, Path: u.Path}, nil
	case BackendS3:
		if u.Host == "" {
			return DSN{}, errors.New("filesystem.dsn: s3 DSN needs a bucket")
		}
		return DSN{Backend: BackendS3, Bucket: u.Host, Path: strings.Trim(u.Path, "/")}, nil
	default:
		return DSN{}, fmt.Errorf("filesystem.dsn: unsupported scheme %q (use memory, file or s3)", u.Scheme)
	}
}
