// Package metrics turns run reports into Prometheus counters and writes
// them in the node exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tonimelisma/chemsync/internal/sync"
)

const namespace = "chemsync"

// Run results.
const (
	ResultOK      = "ok"
	ResultAborted = "aborted"
)

// Collector accumulates outcomes across the runs of one process.
type Collector struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	items        *prometheus.CounterVec
	files        *prometheus.CounterVec
	lastRun      prometheus.Gauge
	lastDuration prometheus.Gauge
	lastFailures prometheus.Gauge
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by result.",
		}, []string{"result", "dry_run"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items handled by pass and outcome.",
		}, []string{"pass", "outcome"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_total",
			Help:      "Attachment copies by outcome.",
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the most recent run.",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the most recent run.",
		}),
		lastFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failures",
			Help:      "Per-item failures in the most recent run.",
		}),
	}

	c.registry.MustRegister(c.runs, c.items, c.files, c.lastRun, c.lastDuration, c.lastFailures)

	return c
}

// Gatherer exposes the collector's registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Observe adds a run's counters. runErr marks a run that stopped early.
func (c *Collector) Observe(r *sync.Report, runErr error) {
	result := ResultOK
	if runErr != nil {
		result = ResultAborted
	}

	c.runs.WithLabelValues(result, fmt.Sprint(r.DryRun)).Inc()

	add := func(pass, outcome string, n int) {
		c.items.WithLabelValues(pass, outcome).Add(float64(n))
	}

	add("import", "created", r.Import.Created)
	add("import", "updated", r.Import.Updated)
	add("import", "failed", r.Import.Failed)
	add("import", "disposed", r.Import.Disposed)
	add("import", "already_disposed", r.Import.AlreadyDisposed)
	add("import", "unreconciled", r.Import.Unreconciled)
	add("export", "pushed", r.Export.Pushed)
	add("export", "skipped", r.Export.Skipped)
	add("export", "failed", r.Export.Failed)

	c.files.WithLabelValues("uploaded").Add(float64(r.Import.FilesUploaded))
	c.files.WithLabelValues("failed").Add(float64(r.Import.FileFailures))

	c.lastRun.Set(float64(r.StartedAt.Unix()))
	c.lastDuration.Set(r.Duration.Seconds())
	c.lastFailures.Set(float64(r.FailureCount()))
}

// WriteTextfile writes the current values to path for the node exporter's
// textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: creating directory for %s: %w", path, err)
	}

	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}

	return nil
}
