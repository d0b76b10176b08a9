// Package store persists pipeline runs in SQLite. The approval gate
// lives here: a run parked awaiting_approval survives process exit and
// is picked up again by resume.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shortreel/internal/types"
)

// ErrRunNotFound is returned when no run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Status is a run's lifecycle state.
type Status string

const (
	StatusResearching      Status = "researching"
	StatusScripting        Status = "scripting"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusSynthesizing     Status = "synthesizing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// transitions lists, for each status, the statuses a run may move to.
var transitions = map[Status][]Status{
	StatusResearching:      {StatusScripting, StatusFailed},
	StatusScripting:        {StatusAwaitingApproval, StatusFailed},
	StatusAwaitingApproval: {StatusApproved, StatusRejected, StatusAwaitingApproval},
	StatusApproved:         {StatusSynthesizing, StatusFailed},
	StatusSynthesizing:     {StatusCompleted, StatusFailed},
}

func canTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Run is one persisted pipeline run.
type Run struct {
	ID        string
	Topic     string
	Status    Status
	RunDir    string
	Script    *types.Script
	VideoPath string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new run in the researching state.
func (s *Store) Create(ctx context.Context, id, topic, runDir string) (*Run, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, topic, status, run_dir, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, topic, StatusResearching, runDir, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches one run.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, status, run_dir, script_json, video_path, error, created_at, updated_at
		 FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// List returns all runs, most recent first.
func (s *Store) List(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, status, run_dir, script_json, video_path, error, created_at, updated_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Transition moves a run to the next status, enforcing the lifecycle.
func (s *Store) Transition(ctx context.Context, id string, to Status) error {
	run, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canTransition(run.Status, to) {
		return fmt.Errorf("run %s: illegal transition %s -> %s", id, run.Status, to)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, to, now, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// SetScript stores the script JSON for a run. Used both when scripting
// finishes and when a reviewer edits the script at the approval gate.
func (s *Store) SetScript(ctx context.Context, id string, script *types.Script) error {
	data, err := json.Marshal(script)
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET script_json = ?, updated_at = ? WHERE id = ?`, string(data), now, id)
	if err != nil {
		return fmt.Errorf("update run script: %w", err)
	}
	return requireRow(res, id)
}

// SetVideoPath records where the finished video landed.
func (s *Store) SetVideoPath(ctx context.Context, id, path string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET video_path = ?, updated_at = ? WHERE id = ?`, path, now, id)
	if err != nil {
		return fmt.Errorf("update run video path: %w", err)
	}
	return requireRow(res, id)
}

// Fail marks a run failed with the error text. Allowed from any
// non-terminal status.
func (s *Store) Fail(ctx context.Context, id, errText string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?, ?)`,
		StatusFailed, errText, now, id, StatusCompleted, StatusRejected, StatusFailed)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return requireRow(res, id)
}

// Reject marks an awaiting run rejected. Rejected runs are terminal.
func (s *Store) Reject(ctx context.Context, id, reason string) error {
	run, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if run.Status != StatusAwaitingApproval {
		return fmt.Errorf("run %s is %s, not awaiting approval", id, run.Status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusRejected, reason, now, id)
	if err != nil {
		return fmt.Errorf("reject run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		scriptJSON sql.NullString
		videoPath  sql.NullString
		errText    sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&run.ID, &run.Topic, &run.Status, &run.RunDir,
		&scriptJSON, &videoPath, &errText, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if scriptJSON.Valid && scriptJSON.String != "" {
		var script types.Script
		if err := json.Unmarshal([]byte(scriptJSON.String), &script); err != nil {
			return nil, fmt.Errorf("unmarshal run script: %w", err)
		}
		run.Script = &script
	}
	run.VideoPath = videoPath.String
	run.Error = errText.String
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &run, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
