package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// importPass writes every inventory container into the registry, then
// propagates inventory deletions. It returns the identifiers it accounted
// for (found) and those of deleted containers (deleted). Containers are
// handled one at a time so later rows see earlier rows' identifiers.
func (e *Engine) importPass(ctx context.Context, opts RunOpts, report *Report) (found, deleted *IdentitySet, err error) {
	keys, err := e.readFieldKeys(ctx)
	if err != nil {
		return nil, nil, err
	}

	export, err := e.inventory.ListContainers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("sync: listing containers: %w", err)
	}

	containers := export.Containers

	e.logger.Info("import pass starting",
		slog.Int("containers", len(containers)),
		slog.Int("rejected_rows", len(export.Rejected)),
	)

	found = newIdentitySet()

	// An undecodable row still counts as found so its registry item is
	// not exported back as a new container.
	for _, rej := range export.Rejected {
		report.Import.Seen++
		found.add(rej.ID)
		e.failImport(report, rej.ID, fmt.Errorf("decoding container: %w", rej.Err))
	}

	for i := range containers {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		report.Import.Seen++
		e.importContainer(ctx, &containers[i], keys, opts, found, report)
	}

	deleted = newIdentitySet()

	if err := e.propagateDeletions(ctx, opts.DryRun, deleted, report); err != nil {
		return nil, nil, err
	}

	e.logger.Info("import pass complete",
		slog.Int("seen", report.Import.Seen),
		slog.Int("created", report.Import.Created),
		slog.Int("updated", report.Import.Updated),
		slog.Int("failed", report.Import.Failed),
		slog.Int("found_ids", found.Len()),
		slog.Int("deleted_ids", deleted.Len()),
	)

	return found, deleted, nil
}

// importContainer reconciles one container. The container's identifiers
// join found before any write so the export pass skips them even when the
// write fails.
func (e *Engine) importContainer(
	ctx context.Context, c *inventory.Container, keys FieldKeys, opts RunOpts, found *IdentitySet, report *Report,
) {
	item := MapInventoryToRegistry(c, keys)
	containerID := item.ItemID

	found.add(containerID, c.Barcode, item.Refcode)

	target, err := e.resolveImportTarget(ctx, c, item.Refcode)
	if err != nil {
		e.failImport(report, containerID, err)
		return
	}

	found.add(target.ItemID)

	existing := target.Existing
	if existing == nil {
		it, ok, lookupErr := lookup(ctx, e.registry.GetItem, target.ItemID)
		if lookupErr != nil {
			e.failImport(report, target.ItemID, fmt.Errorf("looking up item: %w", lookupErr))
			return
		}

		if ok {
			existing = it
		}
	}

	item.ItemID = target.ItemID

	if existing != nil {
		found.add(existing.ItemID, existing.Refcode)
		e.updateItem(ctx, c, item, existing, opts, report)

		return
	}

	e.createItem(ctx, c, item, opts, found, report)
}

func (e *Engine) createItem(
	ctx context.Context, c *inventory.Container, item *registry.Item, opts RunOpts, found *IdentitySet, report *Report,
) {
	if opts.DryRun {
		report.Import.Created++
		e.plan(report, PhaseImport, ActionCreateItem, item.ItemID, item.Document())

		return
	}

	err := e.registry.CreateItem(ctx, item, e.collection)

	switch {
	case err == nil:
		report.Import.Created++
		e.logger.Info("created registry item",
			slog.String("item_id", item.ItemID),
			slog.Int64("container_id", c.ID),
		)
	case errors.Is(err, registry.ErrDuplicate):
		// Created concurrently since the lookup; fall back to an update.
		existing, fetchErr := e.registry.GetItem(ctx, item.ItemID)
		if fetchErr != nil {
			e.failImport(report, item.ItemID, fmt.Errorf("refetching duplicate: %w", fetchErr))
			return
		}

		found.add(existing.Refcode)
		e.updateItem(ctx, c, item, existing, opts, report)

		return
	default:
		e.failImport(report, item.ItemID, fmt.Errorf("creating item: %w", err))
		return
	}

	if !opts.SkipFiles {
		e.reconcileAttachments(ctx, c, item.ItemID, nil, report)
	}
}

func (e *Engine) updateItem(
	ctx context.Context, c *inventory.Container, item, existing *registry.Item, opts RunOpts, report *Report,
) {
	if existing.Type != "" && existing.Type != item.Type {
		e.failImport(report, item.ItemID,
			fmt.Errorf("type mismatch: registry item is %q, container maps to %q", existing.Type, item.Type))

		return
	}

	fields := item.UpdateFields()

	if opts.DryRun {
		report.Import.Updated++
		e.plan(report, PhaseImport, ActionUpdateItem, item.ItemID, fields)

		return
	}

	if err := e.registry.UpdateItem(ctx, item.ItemID, fields); err != nil {
		e.failImport(report, item.ItemID, fmt.Errorf("updating item: %w", err))
		return
	}

	report.Import.Updated++
	e.logger.Debug("updated registry item",
		slog.String("item_id", item.ItemID),
		slog.Int64("container_id", c.ID),
	)

	if !opts.SkipFiles {
		e.reconcileAttachments(ctx, c, item.ItemID, existing.FileNames(), report)
	}
}

func (e *Engine) failImport(report *Report, id string, err error) {
	report.Import.Failed++
	e.recordFailure(report, PhaseImport, id, err)
}
