package river

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

//go:embed artifact/wordcount.job
var embeddedArtifact []byte

// Manifest is the content of a deployed job artifact. The worker refuses to
// run a configuration whose mapper, combiner or reducer the artifact does not
// declare.
type Manifest struct {
	Kind     string `yaml:"kind"`
	Name     string `yaml:"name"`
	Mapper   string `yaml:"mapper"`
	Combiner string `yaml:"combiner"`
	Reducer  string `yaml:"reducer"`
}

// Compile-time checks.
var (
	_ domain.ArtifactSource = EmbeddedArtifact{}
	_ domain.ArtifactSource = FileArtifact{}
)

// EmbeddedArtifact serves the job artifact compiled into the binary.
type EmbeddedArtifact struct{}

func (EmbeddedArtifact) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(embeddedArtifact)), nil
}

// FileArtifact serves a job artifact from the local disk.
type FileArtifact struct {
	Path string
}

func (a FileArtifact) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("opening job artifact: %w", err)
	}
	return f, nil
}

// ReadManifest decodes an artifact.
func ReadManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decoding job artifact: %w", err)
	}
	return m, nil
}

// Provides reports whether the manifest declares every function the
// configuration names.
func (m Manifest) Provides(conf domain.JobConfig) bool {
	if m.Kind != (WordCountArgs{}).Kind() {
		return false
	}
	if conf.Mapper != m.Mapper || conf.Reducer != m.Reducer {
		return false
	}
	return conf.Combiner == "" || conf.Combiner == m.Combiner
}
