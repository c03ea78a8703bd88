// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal keeps a local SQLite audit log of migration runs: one row
// per run, per file, and per statement. It is never consulted to skip work.
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/techcare/ops/internal/migrate"
)

// Run status values.
const (
	StatusRunning     = "running"
	StatusSucceeded   = "succeeded"
	StatusPartial     = "partial"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

const defaultLimit = 20

// timeFormat is fixed-width so timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one row of the runs table with aggregate counts.
type Run struct {
	ID         string `db:"id" json:"id"`
	Target     string `db:"target" json:"target"`
	Dir        string `db:"dir" json:"dir"`
	StartedAt  string `db:"started_at" json:"started_at"`
	FinishedAt string `db:"finished_at" json:"finished_at"`
	Status     string `db:"status" json:"status"`
	Files      int    `db:"files" json:"files"`
	Succeeded  int    `db:"succeeded" json:"succeeded"`
	Failed     int    `db:"failed" json:"failed"`
}

// Statement is one recorded statement.
type Statement struct {
	RunID    string `db:"run_id" json:"run_id"`
	Path     string `db:"path" json:"path"`
	Index    int    `db:"idx" json:"index"`
	Kind     string `db:"kind" json:"kind"`
	SQL      string `db:"sql" json:"sql"`
	Response string `db:"response" json:"response,omitempty"`
	Error    string `db:"error" json:"error,omitempty"`
}

// Journal wraps the SQLite database.
type Journal struct {
	db *sqlx.DB
}

// Open opens or creates the journal at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return j, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL DEFAULT '',
			dir TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, path)
		)`,
		`CREATE TABLE IF NOT EXISTS statements (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			idx INTEGER NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			sql TEXT NOT NULL,
			response TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, path, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}

// BeginRun inserts a run in the running state.
func (j *Journal) BeginRun(ctx context.Context, runID, target, dir string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, target, dir, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		runID, target, dir, now(), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", runID, err)
	}
	return nil
}

// RecordFile stores a file result and its statements in one transaction.
// Recording the same file twice for a run replaces the earlier rows.
func (j *Journal) RecordFile(ctx context.Context, runID string, res migrate.FileResult) error {
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files (run_id, path, outcome, error, recorded_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, path) DO UPDATE SET
			outcome=excluded.outcome, error=excluded.error, recorded_at=excluded.recorded_at`,
		runID, res.Path, string(res.Outcome), res.Error, now(),
	); err != nil {
		return fmt.Errorf("recording file %s: %w", res.Path, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM statements WHERE run_id = ? AND path = ?`, runID, res.Path,
	); err != nil {
		return fmt.Errorf("clearing statements of %s: %w", res.Path, err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO statements (run_id, path, idx, kind, sql, response, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, frag := range res.Fragments {
		if _, err := stmt.ExecContext(ctx,
			runID, res.Path, frag.Index, frag.Kind, frag.Statement, string(frag.Response), frag.Error,
		); err != nil {
			return fmt.Errorf("recording statement %d of %s: %w", frag.Index, res.Path, err)
		}
	}

	return tx.Commit()
}

// FinishRun stamps the finish time and final status of a run.
func (j *Journal) FinishRun(ctx context.Context, runID, status string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`, now(), status, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

const runColumns = `r.id, r.target, r.dir, r.started_at, r.finished_at, r.status,
	(SELECT count(*) FROM files f WHERE f.run_id = r.id) AS files,
	(SELECT count(*) FROM statements s WHERE s.run_id = r.id AND s.error = '') AS succeeded,
	(SELECT count(*) FROM statements s WHERE s.run_id = r.id AND s.error <> '') AS failed`

// Runs returns the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	var runs []Run
	err := j.db.SelectContext(ctx, &runs,
		`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by ID or unique ID prefix.
func (j *Journal) GetRun(ctx context.Context, id string) (Run, error) {
	var runs []Run
	err := j.db.SelectContext(ctx, &runs,
		`SELECT `+runColumns+` FROM runs r WHERE r.id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(id)+"%")
	if err != nil {
		return Run{}, fmt.Errorf("looking up run %s: %w", id, err)
	}
	switch len(runs) {
	case 0:
		return Run{}, fmt.Errorf("run %s not found", id)
	case 1:
		return runs[0], nil
	default:
		return Run{}, fmt.Errorf("run prefix %s is ambiguous", id)
	}
}

// Statements returns the statements of a run in execution order.
func (j *Journal) Statements(ctx context.Context, runID string) ([]Statement, error) {
	var stmts []Statement
	err := j.db.SelectContext(ctx, &stmts,
		`SELECT s.run_id, s.path, s.idx, s.kind, s.sql, s.response, s.error
		 FROM statements s JOIN files f ON f.run_id = s.run_id AND f.path = s.path
		 WHERE s.run_id = ?
		 ORDER BY f.path, s.idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing statements of run %s: %w", runID, err)
	}
	return stmts, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
