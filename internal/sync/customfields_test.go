package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/chemsync/internal/inventory"
)

func TestEnsureIdentityField_CreatesOnce(t *testing.T) {
	inv := newFakeInventory()
	e := newTestEngine(t, inv, newFakeRegistry())
	ctx := context.Background()

	keys, err := e.ensureIdentityField(ctx, false, &Report{})
	require.NoError(t, err)
	assert.Equal(t, "cf-1", keys[IdentityFieldName])

	keys, err = e.ensureIdentityField(ctx, false, &Report{})
	require.NoError(t, err)
	assert.Equal(t, "cf-1", keys[IdentityFieldName])
	assert.Equal(t, 1, inv.createFieldCalls)
	require.Len(t, inv.fields.Container, 1)
	assert.Equal(t, identityFieldType, inv.fields.Container[0].Type)
}

func TestEnsureIdentityField_DryRunPlansOnly(t *testing.T) {
	inv := newFakeInventory()
	e := newTestEngine(t, inv, newFakeRegistry())
	report := &Report{}

	keys, err := e.ensureIdentityField(context.Background(), true, report)
	require.NoError(t, err)
	assert.NotContains(t, keys, IdentityFieldName)
	assert.Zero(t, inv.createFieldCalls)
	require.Len(t, report.Planned, 1)
	assert.Equal(t, ActionCreateField, report.Planned[0].Action)
}

func TestFieldKeys(t *testing.T) {
	set := &inventory.CustomFieldSet{
		Container: []inventory.CustomField{{ID: 3, Name: "Lot Number"}},
		Substance: []inventory.CustomField{{ID: 4, Name: "Lot Number"}, {ID: 5, Name: "Form type"}},
	}

	keys := fieldKeysFrom(set)
	assert.Equal(t, "cf-3", keys[LotNumberField], "container scope wins")
	assert.Equal(t, "sf-5", keys[FormTypeField])

	c := &inventory.Container{Custom: map[string]string{"sf-5": "powder"}}
	assert.Equal(t, "powder", keys.Value(c, FormTypeField))
	assert.Empty(t, keys.Value(c, LotNumberField))
	assert.Empty(t, keys.Value(c, "No Such Field"))
	assert.Empty(t, fieldKeysFrom(nil))
}
