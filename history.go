package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/chemsync/internal/runlog"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent sync runs",
		Long: `List recent non-dry runs from the local run log, newest first. With a
run ID, list that run's per-item failures instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	path := cc.Cfg.State.RunLog
	if path == "" {
		return errors.New("run log is disabled ([state] run_log is empty)")
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if cc.Flags.Output != outputText {
			return writeStructured(os.Stdout, cc.Flags.Output, []runlog.Run{})
		}

		cc.Statusf("No runs recorded yet.\n")

		return nil
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	store, err := runlog.Open(cmd.Context(), path, cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return showFailures(cmd.Context(), os.Stdout, cc.Flags.Output, store, args[0])
	}

	return showRuns(cmd.Context(), os.Stdout, cc.Flags.Output, store, limit)
}

func showRuns(ctx context.Context, w io.Writer, format string, store *runlog.Store, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("--limit: must be positive, got %d", limit)
	}

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if format != outputText {
		if runs == nil {
			runs = []runlog.Run{}
		}

		return writeStructured(w, format, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for i := range runs {
		r := &runs[i]
		rows = append(rows, []string{
			r.ID,
			formatTime(r.StartedAt),
			formatDuration(r.Duration),
			runMode(r),
			itoa(r.Seen),
			itoa(r.Created),
			itoa(r.Updated),
			itoa(r.Disposed),
			itoa(r.Pushed),
			itoa(r.Failures),
			r.Error,
		})
	}

	printTable(w, []string{
		"RUN", "STARTED", "DURATION", "MODE", "SEEN", "CREATED", "UPDATED",
		"DISPOSED", "PUSHED", "FAILURES", "ERROR",
	}, rows)

	return nil
}

func runMode(r *runlog.Run) string {
	var parts []string

	if r.ImportOnly {
		parts = append(parts, "import-only")
	}

	if r.SkipFiles {
		parts = append(parts, "no-files")
	}

	if len(parts) == 0 {
		return "full"
	}

	return strings.Join(parts, ",")
}

func showFailures(ctx context.Context, w io.Writer, format string, store *runlog.Store, runID string) error {
	failures, err := store.Failures(ctx, runID)
	if err != nil {
		return err
	}

	if format != outputText {
		return writeStructured(w, format, failures)
	}

	if len(failures) == 0 {
		fmt.Fprintf(w, "Run %s has no recorded failures.\n", runID)
		return nil
	}

	printFailures(w, failures)

	return nil
}
