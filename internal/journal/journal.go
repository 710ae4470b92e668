// Package journal records reconcile runs in a SQLite database so operators
// can see what each run changed on the host.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Run outcomes.
const (
	OutcomeReady    = "Ready"
	OutcomeDegraded = "Degraded"
	OutcomeFailed   = "Failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	backend_name TEXT NOT NULL,
	volume_group TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	created      INTEGER NOT NULL DEFAULT 0,
	prepared     TEXT NOT NULL DEFAULT '',
	extended     TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Entry is one recorded reconcile run.
type Entry struct {
	RunID       string    `json:"runID" yaml:"runID"`
	BackendName string    `json:"backendName" yaml:"backendName"`
	VolumeGroup string    `json:"volumeGroup" yaml:"volumeGroup"`
	StartedAt   time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt" yaml:"finishedAt"`
	Outcome     string    `json:"outcome" yaml:"outcome"`
	Created     bool      `json:"created" yaml:"created"`
	Prepared    []string  `json:"prepared,omitempty" yaml:"prepared,omitempty"`
	Extended    []string  `json:"extended,omitempty" yaml:"extended,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns how long the run took.
func (e *Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Journal is a SQLite-backed run journal.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create journal schema")
	}

	return &Journal{db: db, path: path}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Record appends a run to the journal.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, backend_name, volume_group, started_at, finished_at,
		                  outcome, created, prepared, extended, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.BackendName, e.VolumeGroup,
		formatTime(e.StartedAt), formatTime(e.FinishedAt),
		e.Outcome, e.Created,
		strings.Join(e.Prepared, ","), strings.Join(e.Extended, ","),
		e.Error)
	if err != nil {
		return errors.Wrapf(err, "failed to record run %s", e.RunID)
	}
	return nil
}

// List returns up to limit runs, most recent first. A limit of zero or less
// returns every run.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT run_id, backend_name, volume_group, started_at, finished_at,
		       outcome, created, prepared, extended, error
		FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			started, finished  string
			prepared, extended string
		)
		if err := rows.Scan(&e.RunID, &e.BackendName, &e.VolumeGroup, &started, &finished,
			&e.Outcome, &e.Created, &prepared, &extended, &e.Error); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		if e.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if e.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		e.Prepared = splitList(prepared)
		e.Extended = splitList(extended)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp %q in journal", s)
	}
	return t, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
