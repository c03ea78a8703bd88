// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/techcare/ops/internal/journal"
	"github.com/techcare/ops/internal/migrate"
	"github.com/techcare/ops/internal/rpc"
	"github.com/techcare/ops/pkg/types"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply supabase/migrations/*.sql to the database",
	Long: `Migrate applies every .sql file in the migrations directory in filename
order. Each file is split on ";" and every statement is sent on its own
through the exec_sql remote procedure of the hosted backend.

The migrations directory is resolved against --base-dir, which defaults
to the current directory: run techcare from the repository root or pass
--base-dir.

A failed statement is reported and the run carries on with the next one;
use --fail-on-error to stop after the first file with failures. Nothing
is skipped because it ran before: migrations should be idempotent.

Targets:
  rpc      POST <backend>/rest/v1/rpc/<function> (default)
  sql      execute directly through a database/sql driver (--driver, --dsn)
  dry-run  print the statements without executing them

Credentials for the rpc target come from TECHCARE_BACKEND_URL and
TECHCARE_BACKEND_SERVICE_KEY (or SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY),
the config file, or the files supabase-url and supabase-service-key in the
secrets directory.

Runs are recorded in the apply journal (--journal). Dry runs are not.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context(), viper.GetViper(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	f := migrateCmd.Flags()
	f.String("dir", migrate.DefaultSubdir, "migrations directory, relative to --base-dir")
	f.String("target", string(types.TargetRPC), "where statements go: rpc, sql, or dry-run")
	f.String("function", migrate.DefaultFunction, "remote procedure that executes SQL (rpc target)")
	f.String("driver", "pgx", "database/sql driver for the sql target: pgx, postgres, mysql, sqlite3")
	f.String("dsn", "", "connection string for the sql target")
	f.Bool("fail-on-error", false, "stop after the first file with failed statements")
	f.String("journal", defaultJournal, `apply journal (SQLite), relative to --base-dir; "" disables it`)
	f.String("report", "", "write a YAML run report to this path")
	f.Int("rate-limit-retries", 0, "retries with backoff on HTTP 429 (rpc target)")
	f.Duration("timeout", 0, "HTTP timeout per call (rpc target, default 1m)")

	for flag, key := range map[string]string{
		"dir":                "migrate.dir",
		"target":             "migrate.target",
		"function":           "migrate.function",
		"driver":             "migrate.driver",
		"dsn":                "migrate.dsn",
		"fail-on-error":      "migrate.fail_on_error",
		"journal":            "migrate.journal",
		"report":             "migrate.report",
		"rate-limit-retries": "backend.rate_limit_retries",
		"timeout":            "backend.timeout",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(ctx context.Context, v *viper.Viper, out, errOut io.Writer) error {
	cfg, err := migrationConfig(v)
	if err != nil {
		return err
	}

	exec, closeExec, err := newExecutor(ctx, v, cfg, out)
	if err != nil {
		return err
	}
	defer closeExec()

	runner := migrate.NewRunner(exec, out)
	runner.FailOnError = cfg.FailOnError
	runner.Target = string(cfg.Target)

	var j *journal.Journal
	if journaled(cfg) {
		j = openJournal(ctx, cfg, runner, errOut)
	}
	if j != nil {
		defer j.Close()
		runner.Recorder = j
	}

	summary, runErr := runner.Run(ctx, cfg.Dir)

	if j != nil {
		if err := j.FinishRun(context.WithoutCancel(ctx), runner.RunID, runStatus(summary, runErr)); err != nil {
			fmt.Fprintf(errOut, "warning: %v\n", err)
		}
	}

	if cfg.ReportPath != "" {
		if err := migrate.WriteReport(cfg.ReportPath, summary); err != nil {
			fmt.Fprintf(errOut, "warning: %v\n", err)
		} else {
			fmt.Fprintf(errOut, "Report written to %s\n", cfg.ReportPath)
		}
	}

	return runErr
}

// newExecutor builds the executor for the configured target and a func
// that releases its resources.
func newExecutor(ctx context.Context, v *viper.Viper, cfg types.MigrationConfig, out io.Writer) (migrate.Executor, func(), error) {
	noop := func() {}

	switch cfg.Target {
	case types.TargetSQL:
		db, err := migrate.OpenDatabase(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		return &migrate.SQLExecutor{DB: db}, func() { db.Close() }, nil

	case types.TargetDryRun:
		return &migrate.DryRunExecutor{Out: out}, noop, nil

	default:
		client, err := rpc.NewClient(backendConfig(v, loadedSecrets), nil)
		if err != nil {
			if errors.Is(err, rpc.ErrMissingCredentials) {
				return nil, noop, configError(
					"set TECHCARE_BACKEND_URL and TECHCARE_BACKEND_SERVICE_KEY, or add supabase-url and supabase-service-key to "+v.GetString("secrets_dir"),
					err)
			}
			return nil, noop, configError("backend", err)
		}
		return migrate.NewRPCExecutor(client, cfg.Function), noop, nil
	}
}

// journaled reports whether a run should be recorded. Dry runs and runs
// whose directory holds no migrations leave nothing on disk.
func journaled(cfg types.MigrationConfig) bool {
	if cfg.JournalPath == "" || cfg.Target == types.TargetDryRun {
		return false
	}
	_, err := migrate.Discover(cfg.Dir)
	return err == nil
}

// openJournal opens the apply journal and registers the run. The journal is
// an audit trail: failures are reported and the run proceeds without it.
func openJournal(ctx context.Context, cfg types.MigrationConfig, runner *migrate.Runner, errOut io.Writer) *journal.Journal {
	if cfg.JournalPath == "" {
		return nil
	}
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		fmt.Fprintf(errOut, "warning: journal disabled: %v\n", err)
		return nil
	}
	if err := j.BeginRun(ctx, runner.RunID, runner.Target, cfg.Dir); err != nil {
		fmt.Fprintf(errOut, "warning: journal disabled: %v\n", err)
		j.Close()
		return nil
	}
	return j
}

// runStatus maps the outcome of Runner.Run to a journal status.
func runStatus(s migrate.Summary, err error) string {
	switch {
	case err == nil:
		if _, failed := s.Counts(); failed > 0 {
			return journal.StatusPartial
		}
		return journal.StatusSucceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return journal.StatusInterrupted
	case errors.Is(err, migrate.ErrPartialFailure):
		return journal.StatusPartial
	default:
		return journal.StatusFailed
	}
}
