package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultAttachmentWorkers bounds parallel attachment downloads per item.
const DefaultAttachmentWorkers = 4

// DefaultAttachmentTypes lists the MIME types of linked files copied when
// EngineConfig names none.
var DefaultAttachmentTypes = []string{"application/pdf"}

// DefaultFallbackLocation receives exported containers whose registry
// location matches no inventory location.
const DefaultFallbackLocation = "Unassigned"

// EngineConfig holds the options for NewEngine.
type EngineConfig struct {
	Inventory         InventoryService // satisfied by *inventory.Client
	Registry          RegistryService  // satisfied by *registry.Client
	Collection        string           // optional registry collection for created items
	AttachmentTypes   []string         // MIME types of linked files to copy; empty uses DefaultAttachmentTypes
	FallbackLocation  string
	AttachmentWorkers int
	TempDir           string // parent of per-item download directories; "" uses os.TempDir
	Logger            *slog.Logger
}

// RunOpts holds per-run options for RunOnce.
type RunOpts struct {
	DryRun     bool
	SkipFiles  bool
	ImportOnly bool
}

// Engine runs reconciliation passes. It keeps no state between runs: every
// run rebuilds its identity sets from the two services.
type Engine struct {
	inventory         InventoryService
	registry          RegistryService
	collection        string
	attachmentTypes   []string
	fallbackLocation  string
	attachmentWorkers int
	tempDir           string
	logger            *slog.Logger

	nowFunc  func() time.Time
	newRunID func() string
}

// NewEngine creates an Engine from cfg, filling in defaults.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg.Inventory == nil || cfg.Registry == nil {
		return nil, errors.New("sync: engine needs both an inventory and a registry client")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		inventory:         cfg.Inventory,
		registry:          cfg.Registry,
		collection:        cfg.Collection,
		attachmentTypes:   slices.Clone(cfg.AttachmentTypes),
		fallbackLocation:  cfg.FallbackLocation,
		attachmentWorkers: cfg.AttachmentWorkers,
		tempDir:           cfg.TempDir,
		logger:            logger,
		nowFunc:           time.Now,
		newRunID:          uuid.NewString,
	}

	if len(e.attachmentTypes) == 0 {
		e.attachmentTypes = slices.Clone(DefaultAttachmentTypes)
	}

	if e.fallbackLocation == "" {
		e.fallbackLocation = DefaultFallbackLocation
	}

	if e.attachmentWorkers < 1 {
		e.attachmentWorkers = DefaultAttachmentWorkers
	}

	return e, nil
}

// RunOnce executes a complete run: connection check, import pass, then the
// export pass unless opts.ImportOnly is set. Per-item failures are counted
// in the report and never returned as an error. An error means the run
// stopped early; the partial report is still returned.
func (e *Engine) RunOnce(ctx context.Context, opts RunOpts) (*Report, error) {
	start := e.nowFunc()

	report := &Report{
		RunID:      e.newRunID(),
		DryRun:     opts.DryRun,
		SkipFiles:  opts.SkipFiles,
		ImportOnly: opts.ImportOnly,
		StartedAt:  start,
		Phase:      PhaseIdle.String(),
	}

	logger := e.logger.With(slog.String("run_id", report.RunID))
	logger.Info("sync run starting",
		slog.Bool("dry_run", opts.DryRun),
		slog.Bool("skip_files", opts.SkipFiles),
		slog.Bool("import_only", opts.ImportOnly),
	)

	finish := func(err error) (*Report, error) {
		report.Duration = e.nowFunc().Sub(start)

		if err != nil {
			logger.Error("sync run aborted",
				slog.String("phase", report.Phase),
				slog.String("error", err.Error()),
			)

			return report, err
		}

		logger.Info("sync run complete",
			slog.Duration("duration", report.Duration),
			slog.Int("created", report.Import.Created),
			slog.Int("updated", report.Import.Updated),
			slog.Int("disposed", report.Import.Disposed),
			slog.Int("pushed", report.Export.Pushed),
			slog.Int("failures", report.FailureCount()),
		)

		return report, nil
	}

	if err := e.verifyConnections(ctx); err != nil {
		return finish(err)
	}

	report.Phase = PhaseImport.String()

	found, deleted, err := e.importPass(ctx, opts, report)
	if err != nil {
		return finish(err)
	}

	if !opts.ImportOnly {
		report.Phase = PhaseExport.String()

		if err := e.exportPass(ctx, opts, found, deleted, report); err != nil {
			return finish(err)
		}
	}

	report.Phase = PhaseDone.String()

	return finish(nil)
}

// verifyConnections checks both services before any pass starts. Either
// failing aborts the run.
func (e *Engine) verifyConnections(ctx context.Context) error {
	details, err := e.inventory.Details(ctx)
	if err != nil {
		return fmt.Errorf("sync: connecting to inventory: %w", err)
	}

	if err := e.registry.Info(ctx); err != nil {
		return fmt.Errorf("sync: connecting to registry: %w", err)
	}

	e.logger.Info("connected",
		slog.String("inventory_name", details.InventoryName),
		slog.Int64("inventory_number", details.InventoryNumber),
	)

	return nil
}

// recordFailure logs and records a per-item failure. Callers bump the
// matching counter.
func (e *Engine) recordFailure(report *Report, phase Phase, id string, err error) {
	e.logger.Warn("item failed",
		slog.String("phase", phase.String()),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)

	report.Failures = append(report.Failures, ItemFailure{
		Phase: phase.String(),
		ID:    id,
		Error: err.Error(),
	})
}

// plan records a write that dry-run mode suppressed.
func (e *Engine) plan(report *Report, phase Phase, action, target string, record any) {
	e.logger.Info("dry run: write suppressed",
		slog.String("phase", phase.String()),
		slog.String("action", action),
		slog.String("target", target),
	)

	report.Planned = append(report.Planned, PlannedWrite{
		Phase:  phase.String(),
		Action: action,
		Target: target,
		Record: record,
	})
}
