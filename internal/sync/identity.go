package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// How an import target was resolved.
const (
	viaRefcode     = "refcode"
	viaBarcode     = "barcode"
	viaContainerID = "container_id"
)

// importTarget is the registry item an inventory row is written to.
type importTarget struct {
	ItemID   string
	Existing *registry.Item // nil when no counterpart was found by a hint
	Via      string
}

// fetchFunc is GetItem or GetItemByRefcode.
type fetchFunc func(ctx context.Context, id string) (*registry.Item, error)

// lookup fetches an item and separates "absent" from "broken": a not-found
// response is found=false with a nil error; any other failure is returned.
func lookup(ctx context.Context, fetch fetchFunc, id string) (*registry.Item, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	it, err := fetch(ctx, id)

	switch {
	case err == nil:
		return it, true, nil
	case errors.Is(err, registry.ErrNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// resolveImportTarget decides which registry item an inventory row maps to:
//  1. the item whose refcode is stored in the row's identity field,
//  2. else the item whose id equals the row's barcode,
//  3. else the row's own container id.
//
// The first hint present decides; a hint that finds nothing falls through
// to the container id.
func (e *Engine) resolveImportTarget(ctx context.Context, c *inventory.Container, refcode string) (importTarget, error) {
	fallback := importTarget{ItemID: strconv.FormatInt(c.ID, 10), Via: viaContainerID}

	switch {
	case refcode != "":
		it, found, err := lookup(ctx, e.registry.GetItemByRefcode, refcode)
		if err != nil {
			return importTarget{}, fmt.Errorf("looking up refcode %q: %w", refcode, err)
		}

		if found {
			return importTarget{ItemID: it.ItemID, Existing: it, Via: viaRefcode}, nil
		}
	case c.Barcode != "":
		it, found, err := lookup(ctx, e.registry.GetItem, c.Barcode)
		if err != nil {
			return importTarget{}, fmt.Errorf("looking up barcode %q: %w", c.Barcode, err)
		}

		if found {
			return importTarget{ItemID: it.ItemID, Existing: it, Via: viaBarcode}, nil
		}
	}

	return fallback, nil
}

// skipExport reports whether a registry item is already accounted for:
// its item id or refcode was seen during the import pass, or belongs to a
// container that was deleted from the inventory and must not be
// resurrected.
func skipExport(it *registry.Item, found, deleted *IdentitySet) (bool, string) {
	switch {
	case found.Contains(it.ItemID), found.Contains(it.Refcode):
		return true, "found"
	case deleted.Contains(it.ItemID), deleted.Contains(it.Refcode):
		return true, "deleted"
	default:
		return false, ""
	}
}
