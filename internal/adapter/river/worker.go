package river

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

const (
	// PartFile is the single output partition written by the worker.
	PartFile = "part-00000"
	// SuccessMarker is created after the output is complete.
	SuccessMarker = "_SUCCESS"
)

// MapFunc emits a (key, count) pair for every token of one input line.
type MapFunc func(line string, emit func(key string, n int64))

// ReduceFunc folds the counts of one key.
type ReduceFunc func(key string, counts []int64) int64

// Mappers and Reducers resolve the function names of a job configuration.
var (
	Mappers = map[string]MapFunc{
		domain.WordCountMapper: tokenize,
	}
	Reducers = map[string]ReduceFunc{
		domain.WordCountReducer: sum,
	}
)

func tokenize(line string, emit func(string, int64)) {
	for _, word := range strings.Fields(line) {
		emit(word, 1)
	}
}

func sum(_ string, counts []int64) int64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

// WordCountWorker runs word count jobs against the shared filesystem.
type WordCountWorker struct {
	river.WorkerDefaults[WordCountArgs]
	source domain.FilesystemSource
}

// NewWordCountWorker creates a worker reading and writing through source.
func NewWordCountWorker(source domain.FilesystemSource) *WordCountWorker {
	return &WordCountWorker{source: source}
}

// Work executes one run: it verifies the deployed artifact, counts the words
// of every file matched by the input path and writes the sorted counts.
func (w *WordCountWorker) Work(ctx context.Context, job *river.Job[WordCountArgs]) error {
	conf := job.Args.Config()

	slog.InfoContext(ctx, "running job",
		"job", conf.Name,
		"job_id", job.ID,
		"input", conf.InputPath.String(),
		"output", conf.OutputPath.String(),
	)

	fsys, err := w.source.Filesystem(ctx)
	if err != nil {
		return err
	}

	mapper, combiner, reducer, err := resolve(conf)
	if err != nil {
		return err
	}
	if err := checkClasspath(ctx, fsys, conf); err != nil {
		return err
	}

	exists, err := fsys.Exists(ctx, conf.OutputPath)
	if err != nil {
		return fmt.Errorf("checking output: %w", err)
	}
	if exists {
		return fmt.Errorf("output directory %s already exists", conf.OutputPath)
	}

	inputs, err := expandInput(ctx, fsys, conf.InputPath)
	if err != nil {
		return err
	}

	shuffled := make(map[string][]int64)
	for _, input := range inputs {
		partial, err := mapFile(ctx, fsys, input, mapper)
		if err != nil {
			return err
		}
		for key, counts := range partial {
			if combiner != nil {
				counts = []int64{combiner(key, counts)}
			}
			shuffled[key] = append(shuffled[key], counts...)
		}
	}

	keys := make([]string, 0, len(shuffled))
	for key := range shuffled {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if err := writeOutput(ctx, fsys, conf.OutputPath, keys, shuffled, reducer); err != nil {
		return err
	}

	slog.InfoContext(ctx, "job finished",
		"job", conf.Name,
		"job_id", job.ID,
		"files", len(inputs),
		"keys", len(keys),
	)
	return nil
}

func resolve(conf domain.JobConfig) (MapFunc, ReduceFunc, ReduceFunc, error) {
	mapper, ok := Mappers[conf.Mapper]
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown mapper %q", conf.Mapper)
	}
	reducer, ok := Reducers[conf.Reducer]
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown reducer %q", conf.Reducer)
	}
	if conf.Combiner == "" {
		return mapper, nil, reducer, nil
	}
	combiner, ok := Reducers[conf.Combiner]
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown combiner %q", conf.Combiner)
	}
	return mapper, combiner, reducer, nil
}

// checkClasspath requires every classpath entry to be a deployed artifact
// declaring the configured functions.
func checkClasspath(ctx context.Context, fsys domain.Filesystem, conf domain.JobConfig) error {
	if len(conf.Classpath) == 0 {
		return errors.New("job has no classpath")
	}
	for _, p := range conf.Classpath {
		r, err := fsys.Open(ctx, p)
		if err != nil {
			return fmt.Errorf("opening artifact %s: %w", p, err)
		}
		m, err := ReadManifest(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("artifact %s: %w", p, err)
		}
		if !m.Provides(conf) {
			return fmt.Errorf("artifact %s does not provide %s", p, conf.Name)
		}
	}
	return nil
}

// expandInput resolves a glob in the last segment of input and collects the
// files below every match.
func expandInput(ctx context.Context, fsys domain.Filesystem, input domain.Path) ([]domain.Path, error) {
	pattern := input.Name()
	var roots []domain.Path

	if strings.ContainsAny(pattern, "*?[") {
		entries, err := fsys.List(ctx, input.Parent())
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("listing input %s: %w", input.Parent(), err)
		}
		for _, e := range entries {
			ok, err := path.Match(pattern, e.Path.Name())
			if err != nil {
				return nil, fmt.Errorf("bad input pattern %q: %w", pattern, err)
			}
			if ok {
				roots = append(roots, e.Path)
			}
		}
	} else {
		roots = []domain.Path{input}
	}

	var files []domain.Path
	for _, root := range roots {
		found, err := walkFiles(ctx, fsys, root)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func walkFiles(ctx context.Context, fsys domain.Filesystem, root domain.Path) ([]domain.Path, error) {
	st, err := fsys.Stat(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !st.IsDir {
		return []domain.Path{root}, nil
	}

	entries, err := fsys.List(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	var files []domain.Path
	for _, e := range entries {
		if !e.IsDir {
			files = append(files, e.Path)
			continue
		}
		found, err := walkFiles(ctx, fsys, e.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func mapFile(ctx context.Context, fsys domain.Filesystem, p domain.Path, mapper MapFunc) (map[string][]int64, error) {
	r, err := fsys.Open(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("opening input %s: %w", p, err)
	}
	defer r.Close()

	out := make(map[string][]int64)
	emit := func(key string, n int64) {
		out[key] = append(out[key], n)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		mapper(scanner.Text(), emit)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input %s: %w", p, err)
	}
	return out, nil
}

func writeOutput(ctx context.Context, fsys domain.Filesystem, output domain.Path, keys []string, values map[string][]int64, reducer ReduceFunc) error {
	part := output.Child(PartFile)
	w, err := fsys.Create(ctx, part)
	if err != nil {
		return fmt.Errorf("creating %s: %w", part, err)
	}

	bw := bufio.NewWriter(w)
	for _, key := range keys {
		line := key + "\t" + strconv.FormatInt(reducer(key, values[key]), 10) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			_ = w.Close()
			return fmt.Errorf("writing %s: %w", part, err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", part, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", part, err)
	}

	marker, err := fsys.Create(ctx, output.Child(SuccessMarker))
	if err != nil {
		return fmt.Errorf("creating success marker: %w", err)
	}
	if err := marker.Close(); err != nil {
		return fmt.Errorf("closing success marker: %w", err)
	}
	return nil
}
