package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// propagateDeletions marks the registry counterpart of every deleted
// inventory container as disposed. Only the status field is written.
// Identifiers of deleted containers and their counterparts are added to
// deleted so the export pass never recreates them.
func (e *Engine) propagateDeletions(ctx context.Context, dryRun bool, deleted *IdentitySet, report *Report) error {
	rows, err := e.inventory.ListDeletedContainers(ctx)
	if err != nil {
		return fmt.Errorf("sync: listing deleted containers: %w", err)
	}

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.disposeCounterpart(ctx, &rows[i], dryRun, deleted, report)
	}

	return nil
}

func (e *Engine) disposeCounterpart(
	ctx context.Context, row *inventory.DeletedContainer, dryRun bool, deleted *IdentitySet, report *Report,
) {
	containerID := strconv.FormatInt(row.ID, 10)
	deleted.add(containerID, row.Barcode)

	it, err := e.findDeletedCounterpart(ctx, row.Barcode, containerID)
	if err != nil {
		e.failImport(report, containerID, err)

		return
	}

	if it == nil {
		report.Import.Unreconciled++
		e.logger.Info("deleted container has no registry counterpart",
			slog.String("container_id", containerID),
			slog.String("barcode", row.Barcode),
		)

		return
	}

	deleted.add(it.ItemID, it.Refcode)

	if it.Status == registry.StatusDisposed {
		report.Import.AlreadyDisposed++
		return
	}

	fields := map[string]any{"status": registry.StatusDisposed}

	if dryRun {
		report.Import.Disposed++
		e.plan(report, PhaseImport, ActionDisposeItem, it.ItemID, fields)

		return
	}

	if err := e.registry.UpdateItem(ctx, it.ItemID, fields); err != nil {
		e.failImport(report, it.ItemID, fmt.Errorf("disposing: %w", err))

		return
	}

	report.Import.Disposed++
	e.logger.Info("disposed registry item for deleted container",
		slog.String("item_id", it.ItemID),
		slog.String("container_id", containerID),
	)
}

// findDeletedCounterpart tries the barcode, then the container id, as
// independent item id lookups. The first hit wins; nil means neither
// matched.
func (e *Engine) findDeletedCounterpart(ctx context.Context, barcode, containerID string) (*registry.Item, error) {
	for _, id := range []string{barcode, containerID} {
		it, found, err := lookup(ctx, e.registry.GetItem, id)
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", id, err)
		}

		if found {
			return it, nil
		}
	}

	return nil, nil
}
