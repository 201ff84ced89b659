package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

type fakeDetailer struct {
	details *inventory.Details
	err     error
}

func (f *fakeDetailer) Details(context.Context) (*inventory.Details, error) { return f.details, f.err }

type fakeInfoer struct {
	err   error
	calls int
}

func (f *fakeInfoer) Info(context.Context) error {
	f.calls++
	return f.err
}

func TestWhoami_Success(t *testing.T) {
	inv := &fakeDetailer{details: &inventory.Details{InventoryNumber: 1234, InventoryName: "Synthesis Lab"}}
	reg := &fakeInfoer{}

	res, err := whoami(context.Background(), inv, reg)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), res.InventoryNumber)
	assert.Equal(t, "Synthesis Lab", res.InventoryName)
	assert.NotEmpty(t, res.RegistryLatency)
	assert.Equal(t, 1, reg.calls)
}

func TestWhoami_InventoryFailureSkipsRegistry(t *testing.T) {
	reg := &fakeInfoer{}

	_, err := whoami(context.Background(), &fakeDetailer{err: inventory.ErrUnauthorized}, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrUnauthorized)
	assert.Contains(t, err.Error(), "connecting to inventory")
	assert.Zero(t, reg.calls)
}

func TestWhoami_RegistryFailure(t *testing.T) {
	inv := &fakeDetailer{details: &inventory.Details{InventoryNumber: 1}}

	_, err := whoami(context.Background(), inv, &fakeInfoer{err: registry.ErrUnauthorized})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrUnauthorized))
	assert.Contains(t, err.Error(), "connecting to registry")
}

func TestPrintWhoami(t *testing.T) {
	res := &whoamiResult{
		InventoryURL:    "https://app.cheminventory.net/api",
		InventoryNumber: 1234,
		InventoryName:   "Synthesis Lab",
		RegistryURL:     "https://datalab.example.org",
		RegistryLatency: "120ms",
	}

	var text bytes.Buffer
	require.NoError(t, printWhoami(&text, outputText, res))
	assert.Contains(t, text.String(), "Inventory: Synthesis Lab (#1234)")
	assert.Contains(t, text.String(), "https://datalab.example.org")

	var yml bytes.Buffer
	require.NoError(t, printWhoami(&yml, outputYAML, res))
	assert.Contains(t, yml.String(), "inventory_number: 1234")
}
