// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/techcare/ops/internal/journal"
	"github.com/techcare/ops/internal/migrate"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past migration runs from the apply journal",
	Long: `History lists recent migrate runs recorded in the local apply journal,
newest first. With a run ID (or a unique prefix of one) it prints every
statement of that run with its outcome.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		path := journalPath(viper.GetViper())
		if cmd.Flags().Changed("journal") {
			p, _ := cmd.Flags().GetString("journal")
			path = resolvePath(viper.GetString("base_dir"), p)
		}
		if path == "" {
			return configError("history", fmt.Errorf("the apply journal is disabled"))
		}

		var runID string
		if len(args) == 1 {
			runID = args[0]
		}
		return runHistory(cmd.Context(), path, runID, limit, jsonOutput, cmd.OutOrStdout())
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	historyCmd.Flags().String("journal", defaultJournal, "apply journal, relative to --base-dir")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, path, runID string, limit int, jsonOutput bool, w io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		return err
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	if runID == "" {
		runs, err := j.Runs(ctx, limit)
		if err != nil {
			return err
		}
		return formatRuns(w, runs, jsonOutput)
	}

	run, err := j.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	stmts, err := j.Statements(ctx, run.ID)
	if err != nil {
		return err
	}
	return formatRun(w, run, stmts, jsonOutput)
}

func formatRuns(w io.Writer, runs []journal.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-20s  %-8s  %-11s  %5s  %5s  %5s\n",
		"Run", "Started", "Target", "Status", "Files", "OK", "Fail")
	fmt.Fprintln(w, strings.Repeat("-", 74))
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-20s  %-8s  %-11s  %5d  %5d  %5d\n",
			shortID(r.ID), shortTime(r.StartedAt), r.Target, r.Status, r.Files, r.Succeeded, r.Failed)
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

func formatRun(w io.Writer, run journal.Run, stmts []journal.Statement, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			journal.Run
			Statements []journal.Statement `json:"statements"`
		}{run, stmts})
	}

	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Target:   %s\n", run.Target)
	fmt.Fprintf(w, "Dir:      %s\n", run.Dir)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt)
	fmt.Fprintf(w, "Finished: %s\n", run.FinishedAt)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)

	path := ""
	for _, s := range stmts {
		if s.Path != path {
			path = s.Path
			fmt.Fprintf(w, "\n%s\n", path)
		}
		mark := "ok  "
		if s.Error != "" {
			mark = "FAIL"
		}
		sql := strings.Join(strings.Fields(s.SQL), " ")
		if utf8.RuneCountInString(sql) > 60 {
			sql = migrate.Preview(sql, 57) + "..."
		}
		fmt.Fprintf(w, "  %s %3d  %-8s  %s\n", mark, s.Index, s.Kind, sql)
		if s.Error != "" {
			fmt.Fprintf(w, "           %s\n", s.Error)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// shortTime trims a journal timestamp to second precision.
func shortTime(ts string) string {
	if len(ts) >= 19 {
		return strings.Replace(ts[:19], "T", " ", 1)
	}
	return ts
}
