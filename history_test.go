package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/chemsync/internal/runlog"
)

func seededStore(t *testing.T) *runlog.Store {
	t.Helper()

	ctx := context.Background()

	store, err := runlog.Open(ctx, filepath.Join(t.TempDir(), "runs.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	older := runReport("run-old")
	older.ImportOnly = true
	newer := runReport("run-new")
	newer.StartedAt = older.StartedAt.Add(time.Hour)

	require.NoError(t, store.Record(ctx, older, nil))
	require.NoError(t, store.Record(ctx, newer, errors.New("registry unreachable")))

	return store
}

func TestShowRuns_Text(t *testing.T) {
	store := seededStore(t)

	var buf bytes.Buffer
	require.NoError(t, showRuns(context.Background(), &buf, outputText, store, 10))

	out := buf.String()
	assert.Contains(t, out, "FAILURES")
	assert.Contains(t, out, "import-only")
	assert.Contains(t, out, "registry unreachable")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("run-new")), bytes.Index(buf.Bytes(), []byte("run-old")),
		"newest first")
}

func TestShowRuns_Limit(t *testing.T) {
	store := seededStore(t)

	var buf bytes.Buffer
	require.NoError(t, showRuns(context.Background(), &buf, outputText, store, 1))
	assert.Contains(t, buf.String(), "run-new")
	assert.NotContains(t, buf.String(), "run-old")

	assert.Error(t, showRuns(context.Background(), &buf, outputText, store, 0))
}

func TestShowRuns_JSONEmpty(t *testing.T) {
	store, err := runlog.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var buf bytes.Buffer
	require.NoError(t, showRuns(context.Background(), &buf, outputJSON, store, 5))
	assert.Equal(t, "[]\n", buf.String())
}

func TestShowFailures(t *testing.T) {
	store := seededStore(t)

	var buf bytes.Buffer
	require.NoError(t, showFailures(context.Background(), &buf, outputText, store, "run-new"))
	assert.Contains(t, buf.String(), "rejected")

	buf.Reset()
	require.NoError(t, showFailures(context.Background(), &buf, outputText, store, "no-such-run"))
	assert.Contains(t, buf.String(), "has no recorded failures")
}

func TestRunMode(t *testing.T) {
	assert.Equal(t, "full", runMode(&runlog.Run{}))
	assert.Equal(t, "import-only,no-files", runMode(&runlog.Run{ImportOnly: true, SkipFiles: true}))
}
