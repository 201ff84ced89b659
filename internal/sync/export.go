package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// Sentinel errors for export-side resolution.
var (
	ErrNoSubstance = errors.New("sync: no matching substance")
	ErrNoLocation  = errors.New("sync: no matching location")
)

// exportPass creates an inventory container for every registry item the
// import pass did not account for. The identity field is ensured first so
// each new container links back to its item.
func (e *Engine) exportPass(ctx context.Context, opts RunOpts, found, deleted *IdentitySet, report *Report) error {
	keys, err := e.ensureIdentityField(ctx, opts.DryRun, report)
	if err != nil {
		return err
	}

	items, err := e.registry.ListItems(ctx, registry.TypeStartingMaterials)
	if err != nil {
		return fmt.Errorf("sync: listing registry items: %w", err)
	}

	e.logger.Info("export pass starting", slog.Int("items", len(items)))

	res := &resolver{inventory: e.inventory, fallback: e.fallbackLocation}

	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		it := &items[i]
		report.Export.Seen++

		if skip, reason := skipExport(it, found, deleted); skip {
			report.Export.Skipped++
			e.logger.Debug("export skipped",
				slog.String("item_id", it.ItemID),
				slog.String("refcode", it.Refcode),
				slog.String("reason", reason),
			)

			continue
		}

		e.exportItem(ctx, it, keys, opts, res, report)
	}

	e.logger.Info("export pass complete",
		slog.Int("seen", report.Export.Seen),
		slog.Int("skipped", report.Export.Skipped),
		slog.Int("pushed", report.Export.Pushed),
		slog.Int("failed", report.Export.Failed),
	)

	return nil
}

func (e *Engine) exportItem(
	ctx context.Context, it *registry.Item, keys FieldKeys, opts RunOpts, res *resolver, report *Report,
) {
	var locationID, substanceID int64

	// Resolution needs live lookups; dry-run uses placeholders instead.
	if !opts.DryRun {
		var err error

		locationID, err = res.location(ctx, it)
		if err != nil {
			e.failExport(report, it.ItemID, err)
			return
		}

		substanceID, err = res.substance(ctx, it)
		if err != nil {
			e.failExport(report, it.ItemID, err)
			return
		}
	}

	nc := MapRegistryToInventory(it, locationID, substanceID, keys)

	if opts.DryRun {
		report.Export.Pushed++
		e.plan(report, PhaseExport, ActionCreateContainer, it.ItemID, nc)

		return
	}

	id, err := e.inventory.CreateContainer(ctx, nc)
	if err != nil {
		e.failExport(report, it.ItemID, fmt.Errorf("creating container: %w", err))
		return
	}

	report.Export.Pushed++
	e.logger.Info("created inventory container",
		slog.String("item_id", it.ItemID),
		slog.String("refcode", it.Refcode),
		slog.Int64("container_id", id),
	)
}

func (e *Engine) failExport(report *Report, id string, err error) {
	report.Export.Failed++
	e.recordFailure(report, PhaseExport, id, err)
}

// resolver maps registry names to inventory ids for the export pass. The
// location listing is fetched once per pass.
type resolver struct {
	inventory InventoryService
	fallback  string
	locations []inventory.Location
	loaded    bool
}

// location returns the id of the inventory location named by the item.
// Matching is exact first, then case-insensitive; items without a match go
// to the fallback location.
func (r *resolver) location(ctx context.Context, it *registry.Item) (int64, error) {
	if !r.loaded {
		locs, err := r.inventory.ListLocations(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing locations: %w", err)
		}

		r.locations = locs
		r.loaded = true
	}

	name, _ := it.FieldString("location")
	name = strings.TrimSpace(name)

	for _, want := range []string{name, r.fallback} {
		if want == "" {
			continue
		}

		if id, ok := r.matchLocation(want); ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("%w: %q (fallback %q)", ErrNoLocation, name, r.fallback)
}

func (r *resolver) matchLocation(name string) (int64, bool) {
	for _, loc := range r.locations {
		if loc.Name == name {
			return loc.ID, true
		}
	}

	for _, loc := range r.locations {
		if strings.EqualFold(loc.Name, name) {
			return loc.ID, true
		}
	}

	return 0, false
}

// substance returns the first inventory substance matching the item's name
// and CAS number. No match fails the item.
func (r *resolver) substance(ctx context.Context, it *registry.Item) (int64, error) {
	name, _ := it.FieldString("name")
	cas, _ := it.FieldString("CAS")

	matches, err := r.inventory.FindSubstance(ctx, name, cas)
	if err != nil {
		return 0, fmt.Errorf("finding substance: %w", err)
	}

	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: name %q, CAS %q", ErrNoSubstance, name, cas)
	}

	return matches[0].ID, nil
}
