package runlog

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/chemsync/internal/sync"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state", "runs.db")

	s, err := Open(context.Background(), path, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	return s
}

func sampleReport(id string, started time.Time) *sync.Report {
	return &sync.Report{
		RunID:     id,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Phase:     "done",
		Import: sync.ImportStats{
			Seen: 10, Created: 2, Updated: 7, Failed: 1, Disposed: 1, FilesUploaded: 3,
		},
		Export: sync.ExportStats{Seen: 4, Skipped: 3, Pushed: 1},
		Failures: []sync.ItemFailure{
			{Phase: "import", ID: "42", Error: "updating item: registry: request rejected"},
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, sampleReport("run-a", t0), nil))
	require.NoError(t, s.Record(ctx, sampleReport("run-b", t0.Add(time.Hour)), errors.New("registry unreachable")))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-b", runs[0].ID, "newest first")
	assert.Equal(t, "registry unreachable", runs[0].Error)

	a := runs[1]
	assert.Equal(t, "run-a", a.ID)
	assert.True(t, a.StartedAt.Equal(t0))
	assert.Equal(t, 1500*time.Millisecond, a.Duration)
	assert.Equal(t, 10, a.Seen)
	assert.Equal(t, 2, a.Created)
	assert.Equal(t, 7, a.Updated)
	assert.Equal(t, 1, a.Disposed)
	assert.Equal(t, 3, a.FilesUploaded)
	assert.Equal(t, 4, a.ExportedSeen)
	assert.Equal(t, 3, a.Skipped)
	assert.Equal(t, 1, a.Pushed)
	assert.Equal(t, 1, a.Failures)
	assert.Empty(t, a.Error)

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFailures(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, sampleReport("run-a", time.Now()), nil))

	failures, err := s.Failures(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "42", failures[0].ID)
	assert.Equal(t, "import", failures[0].Phase)

	none, err := s.Failures(ctx, "run-missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecord_DuplicateRunIDFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, sampleReport("run-a", time.Now()), nil))
	require.Error(t, s.Record(ctx, sampleReport("run-a", time.Now()), nil))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	s, err := Open(ctx, path, logger)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleReport("run-a", time.Now()), nil))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, logger)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecord_NilReport(t *testing.T) {
	require.Error(t, openTestStore(t).Record(context.Background(), nil, nil))
}
