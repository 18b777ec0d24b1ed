// internal/history/store.go

// Package history persists run reports in a local SQLite database so past
// runs can be listed from the CLI.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Outcome is one stored step result.
type Outcome struct {
	Name     string
	Status   string
	Detail   string
	SoftFail bool
	Duration time.Duration
}

// Run is one stored run.
type Run struct {
	ID         string
	Target     string
	Started    time.Time
	Finished   time.Time
	Passed     bool
	Error      string
	Screenshot string
	Outcomes   []Outcome
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores run and its outcomes in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, target, started_at, finished_at, passed, error, screenshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Target, formatTime(run.Started), formatTime(run.Finished), run.Passed,
		nullString(run.Error), nullString(run.Screenshot))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, o := range run.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes (run_id, seq, name, status, detail, soft_fail, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, o.Name, o.Status, nullString(o.Detail), o.SoftFail, o.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Name, err)
		}
	}

	return tx.Commit()
}

// List returns the most recent runs, newest first, with their outcomes.
// A limit of zero or less returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, started_at, finished_at, passed, error, screenshot
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Outcomes, err = s.outcomes(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target, started_at, finished_at, passed, error, screenshot
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	r.Outcomes, err = s.outcomes(ctx, id)
	return r, err
}

func (s *Store) outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, detail, soft_fail, duration_ms
		FROM outcomes WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o      Outcome
			detail sql.NullString
			ms     int64
		)
		if err := rows.Scan(&o.Name, &o.Status, &detail, &o.SoftFail, &ms); err != nil {
			return nil, err
		}
		o.Detail = detail.String
		o.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
		errText, shot     sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.Target, &started, &finished, &r.Passed, &errText, &shot); err != nil {
		return Run{}, err
	}
	var err error
	if r.Started, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if r.Finished, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	r.Error = errText.String
	r.Screenshot = shot.String
	return r, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
