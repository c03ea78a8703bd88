// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package migrate applies the SQL files of a migrations directory, one
// statement at a time, through a pluggable Executor.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a single migration file went.
type Outcome string

const (
	// AllSucceeded means every statement ran, or the file had none.
	AllSucceeded Outcome = "all_succeeded"
	// PartialFailure means at least one statement failed.
	PartialFailure Outcome = "partial_failure"
	// ReadFailed means the file could not be read and nothing was sent.
	ReadFailed Outcome = "read_failed"
	// Interrupted means the run was cancelled before every statement ran.
	Interrupted Outcome = "interrupted"
)

// ErrPartialFailure is returned by Run when FailOnError is set and a file
// finished with failed statements.
var ErrPartialFailure = errors.New("migration finished with failed statements")

// ReadError reports a migration file that could not be read. It stops the run.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading migration %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// FragmentResult is the outcome of one statement.
type FragmentResult struct {
	// Index is the 1-based position of the statement in its file.
	Index     int
	Statement string
	Kind      string
	// Response is the raw payload returned by the executor.
	Response json.RawMessage
	// Error is empty on success.
	Error string
}

// OK reports whether the statement succeeded.
func (f FragmentResult) OK() bool { return f.Error == "" }

// FileResult is the outcome of one migration file.
type FileResult struct {
	Path      string
	Outcome   Outcome
	Fragments []FragmentResult
	// Error holds the read error for ReadFailed.
	Error string
	// Skipped counts the statements never sent because the run was
	// interrupted.
	Skipped int

	readErr error
}

// Results returns the payloads of the statements that succeeded, in order.
func (r FileResult) Results() []json.RawMessage {
	var out []json.RawMessage
	for _, f := range r.Fragments {
		if f.OK() {
			out = append(out, f.Response)
		}
	}
	return out
}

// Failed returns the statements that failed, in order.
func (r FileResult) Failed() []FragmentResult {
	var out []FragmentResult
	for _, f := range r.Fragments {
		if !f.OK() {
			out = append(out, f)
		}
	}
	return out
}

// Summary describes a complete run.
type Summary struct {
	RunID      string
	Target     string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileResult
}

// Counts returns the number of succeeded and failed statements.
func (s Summary) Counts() (succeeded, failed int) {
	for _, f := range s.Files {
		for _, frag := range f.Fragments {
			if frag.OK() {
				succeeded++
			} else {
				failed++
			}
		}
	}
	return succeeded, failed
}

// FilesWithFailures returns how many files ended in PartialFailure.
func (s Summary) FilesWithFailures() int {
	n := 0
	for _, f := range s.Files {
		if f.Outcome == PartialFailure {
			n++
		}
	}
	return n
}

// Recorder persists file results as they complete. The apply journal
// implements it.
type Recorder interface {
	RecordFile(ctx context.Context, runID string, res FileResult) error
}

// Runner applies migration files in filename order.
type Runner struct {
	Exec Executor
	Out  io.Writer

	// Recorder is optional. Recording failures are reported, never fatal.
	Recorder Recorder

	// FailOnError stops the run after the first file with failed statements.
	// When false a failed statement is logged and the run carries on.
	FailOnError bool

	RunID  string
	Target string
}

// NewRunner returns a best-effort runner writing progress to w.
func NewRunner(exec Executor, w io.Writer) *Runner {
	return &Runner{
		Exec:  exec,
		Out:   w,
		RunID: uuid.NewString(),
	}
}

const banner = "=================================================="

// Run applies every .sql file under dir. It returns ErrDirNotFound or
// ErrNoMigrations before any call is made, a *ReadError when a file cannot
// be read, ErrPartialFailure under FailOnError, or the context error when
// interrupted. The summary covers every file attempted.
func (r *Runner) Run(ctx context.Context, dir string) (Summary, error) {
	summary := Summary{
		RunID:     r.RunID,
		Target:    r.Target,
		Dir:       dir,
		StartedAt: time.Now().UTC(),
	}

	files, err := Discover(dir)
	if err != nil {
		switch {
		case errors.Is(err, ErrDirNotFound):
			fmt.Fprintf(r.Out, "Diretório de migrações não encontrado: %s\n", dir)
		case errors.Is(err, ErrNoMigrations):
			fmt.Fprintln(r.Out, "Nenhum arquivo de migração encontrado.")
		}
		summary.FinishedAt = time.Now().UTC()
		return summary, err
	}

	fmt.Fprintf(r.Out, "Encontrados %d arquivos de migração.\n", len(files))

	for _, path := range files {
		fmt.Fprintf(r.Out, "\n%s\n", banner)
		fmt.Fprintf(r.Out, "Aplicando migração: %s\n", filepath.Base(path))
		fmt.Fprintln(r.Out, banner)

		res := r.ApplyFile(ctx, path)
		summary.Files = append(summary.Files, res)
		r.record(ctx, res)

		if err := ctx.Err(); err != nil {
			summary.FinishedAt = time.Now().UTC()
			return summary, err
		}

		switch {
		case res.Outcome == ReadFailed:
			fmt.Fprintf(r.Out, "Falha ao aplicar migração: %s\n", path)
			summary.FinishedAt = time.Now().UTC()
			return summary, &ReadError{Path: path, Err: res.readErr}
		case res.Outcome == PartialFailure && r.FailOnError:
			fmt.Fprintf(r.Out, "Falha ao aplicar migração: %s\n", path)
			summary.FinishedAt = time.Now().UTC()
			return summary, fmt.Errorf("%w: %s (%d failed)", ErrPartialFailure, path, len(res.Failed()))
		}
	}

	if _, failed := summary.Counts(); failed > 0 {
		fmt.Fprintf(r.Out, "\nAtenção: %d comando(s) falharam em %d arquivo(s).\n", failed, summary.FilesWithFailures())
	}
	fmt.Fprintln(r.Out, "\nTodas as migrações foram aplicadas com sucesso!")
	summary.FinishedAt = time.Now().UTC()
	return summary, nil
}

// ApplyFile reads one migration file and executes its statements in order.
// A failed statement is logged and does not stop the file.
func (r *Runner) ApplyFile(ctx context.Context, path string) FileResult {
	fmt.Fprintf(r.Out, "Executando arquivo: %s\n", path)
	res := FileResult{Path: path, Outcome: AllSucceeded}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(r.Out, "Erro ao processar arquivo %s: %v\n", path, err)
		res.Outcome = ReadFailed
		res.Error = err.Error()
		res.readErr = err
		return res
	}

	stmts := Split(string(data))
	for i, stmt := range stmts {
		if ctx.Err() != nil {
			res.Outcome = Interrupted
			res.Skipped = len(stmts) - i
			break
		}

		frag := FragmentResult{
			Index:     i + 1,
			Statement: stmt,
			Kind:      Kind(stmt),
		}
		body := strings.TrimSuffix(stmt, ";")

		payload, err := r.Exec.Exec(ctx, stmt)
		if err != nil {
			frag.Error = err.Error()
			res.Outcome = PartialFailure
			fmt.Fprintf(r.Out, "Erro ao executar comando: %v\n", err)
			fmt.Fprintf(r.Out, "Comando com erro: %s\n", body)
		} else {
			frag.Response = payload
			fmt.Fprintf(r.Out, "Comando executado com sucesso: %s...\n", Preview(body, previewRunes))
		}
		res.Fragments = append(res.Fragments, frag)
	}

	return res
}

func (r *Runner) record(ctx context.Context, res FileResult) {
	if r.Recorder == nil {
		return
	}
	// Record even when interrupted so the journal shows where the run stopped.
	if err := r.Recorder.RecordFile(context.WithoutCancel(ctx), r.RunID, res); err != nil {
		fmt.Fprintf(r.Out, "Aviso: não foi possível registrar %s no journal: %v\n", filepath.Base(res.Path), err)
	}
}
