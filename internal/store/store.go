// Package store keeps a SQLite history of validation runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"testops/internal/logging"
	"testops/internal/validator"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Kind records how a run's code was obtained.
type Kind string

const (
	KindGenerated Kind = "generated"
	KindFile      Kind = "file"
	KindInline    Kind = "inline"
)

// Run is one validated candidate.
type Run struct {
	ID         string           `json:"id"`
	CreatedAt  time.Time        `json:"created_at"`
	Kind       Kind             `json:"kind"`
	Source     string           `json:"source"` // requirement text or file path
	Code       string           `json:"code"`
	Report     validator.Report `json:"validation"`
	Complexity string           `json:"complexity,omitempty"`
}

// Stats summarizes the history.
type Stats struct {
	Total       int `json:"total"`
	Passed      int `json:"passed"`
	ParseErrors int `json:"parse_errors"`
}

// Store is the run history database.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Run history opened: %s", path)
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		kind TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL,
		report TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores run and returns its ID. A missing ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Kind == "" {
		run.Kind = KindInline
	}

	report, err := json.Marshal(run.Report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, kind, source, code, report, complexity, passed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), string(run.Kind), run.Source, run.Code,
		string(report), run.Complexity, boolToInt(run.Report.Passed()))
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}

	logging.StoreDebug("Recorded run %s (kind=%s, passed=%v)", run.ID, run.Kind, run.Report.Passed())
	return run.ID, nil
}

// Get loads a single run.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, kind, source, code, report, complexity
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// Recent returns up to limit runs, newest first. A non-positive limit means 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, kind, source, code, report, complexity
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats counts recorded runs by outcome.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(passed), 0),
		       COALESCE(SUM(CASE WHEN report LIKE '{"error":%' THEN 1 ELSE 0 END), 0)
		FROM runs`).Scan(&st.Total, &st.Passed, &st.ParseErrors)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		created int64
		kind    string
		report  string
	)
	if err := row.Scan(&run.ID, &created, &kind, &run.Source, &run.Code, &report, &run.Complexity); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, created)
	run.Kind = Kind(kind)
	if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
		return nil, fmt.Errorf("corrupt report for run %s: %w", run.ID, err)
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
