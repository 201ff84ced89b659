package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

func exportFixture(t *testing.T) (*fakeInventory, *fakeRegistry) {
	t.Helper()

	inv := newFakeInventory()
	inv.withIdentityField()
	inv.locations = []inventory.Location{{ID: 1, Name: "Shelf A"}, {ID: 2, Name: "Unassigned"}}
	inv.substances = []inventory.Substance{{ID: 7, Name: "Toluene"}}

	return inv, newFakeRegistry()
}

func TestExport_SubstanceMissFailsOnlyThatItem(t *testing.T) {
	inv, reg := exportFixture(t)
	reg.put(&registry.Item{ItemID: "A", Fields: map[string]any{"name": "Unobtainium"}})
	reg.put(&registry.Item{ItemID: "B", Fields: map[string]any{"name": "Toluene"}})

	report, err := newTestEngine(t, inv, reg).RunOnce(context.Background(), RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Export.Seen)
	assert.Equal(t, 1, report.Export.Failed)
	assert.Equal(t, 1, report.Export.Pushed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "A", report.Failures[0].ID)
	assert.Contains(t, report.Failures[0].Error, ErrNoSubstance.Error())
}

func TestExport_LocationFallback(t *testing.T) {
	inv, reg := exportFixture(t)
	reg.put(&registry.Item{ItemID: "A", Fields: map[string]any{"name": "Toluene", "location": "Shelf A"}})
	reg.put(&registry.Item{ItemID: "B", Fields: map[string]any{"name": "Toluene", "location": "Basement"}})
	reg.put(&registry.Item{ItemID: "C", Fields: map[string]any{"name": "Toluene"}})

	report, err := newTestEngine(t, inv, reg).RunOnce(context.Background(), RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Export.Pushed)
	require.Len(t, inv.created, 3)
	assert.Equal(t, int64(1), inv.created[0].LocationID)
	assert.Equal(t, int64(2), inv.created[1].LocationID)
	assert.Equal(t, int64(2), inv.created[2].LocationID)
	assert.Equal(t, 1, inv.locationCalls, "locations are listed once per pass")
}

func TestExport_NoFallbackLocationFailsItem(t *testing.T) {
	inv, reg := exportFixture(t)
	inv.locations = []inventory.Location{{ID: 1, Name: "Shelf A"}}
	reg.put(&registry.Item{ItemID: "A", Fields: map[string]any{"name": "Toluene", "location": "Basement"}})

	report, err := newTestEngine(t, inv, reg).RunOnce(context.Background(), RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Export.Failed)
	assert.Contains(t, report.Failures[0].Error, ErrNoLocation.Error())
	assert.Empty(t, inv.created)
}

func TestExport_DryRunUsesPlaceholders(t *testing.T) {
	inv, reg := exportFixture(t)
	reg.put(&registry.Item{ItemID: "A", Refcode: "grey:A", Fields: map[string]any{"name": "Toluene", "location": "Shelf A"}})

	report, err := newTestEngine(t, inv, reg).RunOnce(context.Background(), RunOpts{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Export.Pushed)
	assert.Empty(t, inv.created)
	assert.Zero(t, inv.locationCalls)

	require.Len(t, report.Planned, 1)
	planned := report.Planned[0]
	assert.Equal(t, ActionCreateContainer, planned.Action)
	assert.Equal(t, "A", planned.Target)

	nc, ok := planned.Record.(*inventory.NewContainer)
	require.True(t, ok)
	assert.Zero(t, nc.LocationID)
	assert.Zero(t, nc.SubstanceID)
	assert.Equal(t, "grey:A", nc.CustomFields["cf-1"])
}

func TestSkipExport(t *testing.T) {
	item := &registry.Item{ItemID: "I", Refcode: "R"}

	tests := []struct {
		name       string
		found      []string
		deleted    []string
		wantSkip   bool
		wantReason string
	}{
		{name: "item id found", found: []string{"I"}, wantSkip: true, wantReason: "found"},
		{name: "refcode found", found: []string{"R"}, wantSkip: true, wantReason: "found"},
		{name: "item id deleted", deleted: []string{"I"}, wantSkip: true, wantReason: "deleted"},
		{name: "refcode deleted", deleted: []string{"R"}, wantSkip: true, wantReason: "deleted"},
		{name: "unrelated ids", found: []string{"X"}, deleted: []string{"Y"}},
		{name: "empty sets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, deleted := newIdentitySet(), newIdentitySet()
			found.add(tt.found...)
			deleted.add(tt.deleted...)

			skip, reason := skipExport(item, found, deleted)
			assert.Equal(t, tt.wantSkip, skip)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestSkipExport_EmptyRefcodeNeverMatches(t *testing.T) {
	found := newIdentitySet()
	found.add("", "other")

	skip, _ := skipExport(&registry.Item{ItemID: "I"}, found, newIdentitySet())
	assert.False(t, skip)
	assert.Equal(t, 1, found.Len())
}
