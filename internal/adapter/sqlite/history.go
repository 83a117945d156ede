package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/tenantdocs/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: RunHistory implements domain.RunHistory.
var _ domain.RunHistory = (*RunHistory)(nil)

// RunHistory implements domain.RunHistory using SQLite.
type RunHistory struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready history.
func New(dataSourceName string) (*RunHistory, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready history.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*RunHistory, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &RunHistory{db: db}, nil
}

// Close closes the underlying database connection.
func (r *RunHistory) Close() error {
	return r.db.Close()
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05.000Z"

// Record appends one submission.
func (r *RunHistory) Record(ctx context.Context, run domain.JobRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO job_runs (run_id, job_name, input_path, output_path, archived_output, resubmission, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.JobName, run.InputPath.String(), run.OutputPath.String(),
		run.ArchivedOutput.String(), run.Resubmission,
		run.SubmittedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("run %s already recorded", run.RunID)
		}
		return fmt.Errorf("inserting job run: %w", err)
	}
	return nil
}

// List returns the most recent submissions first. A non-positive limit
// returns every run.
func (r *RunHistory) List(ctx context.Context, limit int) ([]domain.JobRun, error) {
	query := `SELECT run_id, job_name, input_path, output_path, archived_output, resubmission, submitted_at
		FROM job_runs ORDER BY submitted_at DESC, id DESC`
	var args []any

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing job runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.JobRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (domain.JobRun, error) {
	var run domain.JobRun
	var input, output, archived, submittedAt string

	err := rows.Scan(&run.RunID, &run.JobName, &input, &output, &archived, &run.Resubmission, &submittedAt)
	if err != nil {
		return domain.JobRun{}, fmt.Errorf("scanning job run row: %w", err)
	}

	run.InputPath = domain.Path(input)
	run.OutputPath = domain.Path(output)
	run.ArchivedOutput = domain.Path(archived)
	run.SubmittedAt, _ = time.Parse(timeFormat, submittedAt)

	return run, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
