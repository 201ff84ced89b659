package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/tonimelisma/chemsync/internal/sync"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// formatDuration rounds a run duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	return d.Round(100 * time.Millisecond).String()
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case outputYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}

		_, err = w.Write(out)

		return err
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
}

// printReport writes a run report in the requested format.
func printReport(w io.Writer, format string, r *sync.Report) error {
	if format != outputText {
		return writeStructured(w, format, r)
	}

	printReportText(w, r)

	return nil
}

func printReportText(w io.Writer, r *sync.Report) {
	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(w, "Run %s (%s) finished in %s, phase %s\n", r.RunID, mode, formatDuration(r.Duration), r.Phase)
	fmt.Fprintf(w, "Import: %d seen, %d created, %d updated, %d failed, %d files uploaded, %d file failures\n",
		r.Import.Seen, r.Import.Created, r.Import.Updated, r.Import.Failed,
		r.Import.FilesUploaded, r.Import.FileFailures)
	fmt.Fprintf(w, "Deletions: %d disposed, %d already disposed, %d unreconciled\n",
		r.Import.Disposed, r.Import.AlreadyDisposed, r.Import.Unreconciled)

	if r.ImportOnly {
		fmt.Fprintln(w, "Export: skipped (import only)")
	} else {
		fmt.Fprintf(w, "Export: %d seen, %d skipped, %d pushed, %d failed\n",
			r.Export.Seen, r.Export.Skipped, r.Export.Pushed, r.Export.Failed)
	}

	if len(r.Planned) > 0 {
		fmt.Fprintf(w, "\nPlanned writes (%d):\n", len(r.Planned))

		rows := make([][]string, 0, len(r.Planned))
		for _, p := range r.Planned {
			rows = append(rows, []string{p.Phase, p.Action, p.Target})
		}

		printTable(w, []string{"PHASE", "ACTION", "TARGET"}, rows)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\nFailures (%d):\n", len(r.Failures))
		printFailures(w, r.Failures)
	}
}

func printFailures(w io.Writer, failures []sync.ItemFailure) {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.Phase, f.ID, f.Error})
	}

	printTable(w, []string{"PHASE", "ID", "ERROR"}, rows)
}

// itoa keeps table-building code short.
func itoa(n int) string {
	return strconv.Itoa(n)
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	// Compute column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row. The last column is not padded.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			parts[i] = cell
			continue
		}

		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
