package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/chemsync/internal/config"
	"github.com/tonimelisma/chemsync/internal/metrics"
	"github.com/tonimelisma/chemsync/internal/runlog"
	"github.com/tonimelisma/chemsync/internal/sync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile ChemInventory and datalab",
		Long: `Run one reconciliation: import every ChemInventory container into
datalab, mark items whose container is gone as disposed, then push datalab
items with no inventory counterpart back to ChemInventory.

Use --dry-run to see the planned writes without making any. Use --watch to
repeat the run every poll_interval until interrupted; config file edits are
picked up between runs.`,
		RunE: runSync,
	}

	cmd.Flags().Bool("dry-run", false, "plan writes without performing them")
	cmd.Flags().Bool("skip-files", false, "do not copy attachments")
	cmd.Flags().Bool("import-only", false, "skip the export pass")
	cmd.Flags().Bool("watch", false, "repeat runs every poll_interval")

	return cmd
}

// runner is the part of the engine a sync cycle needs.
type runner interface {
	RunOnce(ctx context.Context, opts sync.RunOpts) (*sync.Report, error)
}

// cycle performs one run and records its outcome in every configured sink.
type cycle struct {
	metrics  *metrics.Collector
	store    *runlog.Store // nil when the run log is disabled
	textfile string
	output   string
	out      io.Writer
	logger   *slog.Logger
}

func runSync(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	if err := cc.Cfg.RequireCredentials(); err != nil {
		return err
	}

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}

	ctx := shutdownContext(cmd.Context(), logger)

	c := &cycle{
		metrics:  metrics.New(),
		textfile: cc.Cfg.State.MetricsTextfile,
		output:   cc.Flags.Output,
		out:      os.Stdout,
		logger:   logger,
	}

	if path := cc.Cfg.State.RunLog; path != "" {
		store, openErr := runlog.Open(ctx, path, logger)
		if openErr != nil {
			return openErr
		}
		defer store.Close()

		c.store = store
	}

	if !watch {
		return c.run(ctx, cc.Cfg.Config, engineFactory(cc))
	}

	holder := config.NewHolder(cc.Cfg.Config, cc.Cfg.ConfigPath)

	return runWatch(ctx, &watchLoop{
		holder: holder,
		env:    cc.Env,
		cli:    cc.CLI,
		logger: logger,
		runOnce: func(ctx context.Context, cfg *config.Config) error {
			return c.run(ctx, cfg, engineFactory(cc))
		},
	})
}

// engineFactory builds a fresh session and engine for each run so a
// reloaded config takes effect without restarting.
func engineFactory(cc *CLIContext) func(cfg *config.Config) (runner, error) {
	return func(cfg *config.Config) (runner, error) {
		session, err := NewSession(cfg, cc.Cfg.InventoryAPIKey, cc.Cfg.RegistryAPIKey, cc.Logger)
		if err != nil {
			return nil, err
		}

		engine, err := session.NewEngine(cfg, cc.Logger)
		if err != nil {
			return nil, err
		}

		return engine, nil
	}
}

// run executes one reconciliation. Per-item failures are reported but do
// not fail the command; a run-stopping error does.
func (c *cycle) run(ctx context.Context, cfg *config.Config, build func(*config.Config) (runner, error)) error {
	engine, err := build(cfg)
	if err != nil {
		return err
	}

	opts := sync.RunOpts{
		DryRun:     cfg.Sync.DryRun,
		SkipFiles:  cfg.Sync.SkipFiles,
		ImportOnly: cfg.Sync.ImportOnly,
	}

	report, runErr := engine.RunOnce(ctx, opts)
	if report == nil {
		if runErr == nil {
			runErr = errors.New("sync: engine returned no report")
		}

		return runErr
	}

	c.record(ctx, report, runErr)

	if err := printReport(c.out, c.output, report); err != nil {
		return fmt.Errorf("printing report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("sync run %s stopped in %s: %w", report.RunID, report.Phase, runErr)
	}

	if n := report.FailureCount(); n > 0 {
		c.logger.Warn("run finished with per-item failures",
			slog.String("run_id", report.RunID),
			slog.Int("failures", n),
		)
	}

	return nil
}

// record feeds the metrics collector, the textfile and the run log. Sink
// errors are logged, not returned.
func (c *cycle) record(ctx context.Context, report *sync.Report, runErr error) {
	c.metrics.Observe(report, runErr)

	if c.textfile != "" {
		if err := c.metrics.WriteTextfile(c.textfile); err != nil {
			c.logger.Warn("writing metrics textfile",
				slog.String("path", c.textfile),
				slog.String("error", err.Error()),
			)
		}
	}

	if c.store == nil || report.DryRun {
		return
	}

	// The run log entry is written even when ctx was canceled mid-run.
	if err := c.store.Record(context.WithoutCancel(ctx), report, runErr); err != nil {
		c.logger.Warn("recording run",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()),
		)
	}
}
