package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// downloadedFile is a candidate attachment fetched to a temporary file.
type downloadedFile struct {
	Name string
	Path string
}

// diffAttachments returns the candidate names that are not already
// attached, in candidate order and without repeats. Names are compared in
// Unicode NFC form so the same filename typed on different systems matches.
func diffAttachments(existing, candidates []string) []string {
	have := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		have[norm.NFC.String(name)] = struct{}{}
	}

	var missing []string

	for _, name := range candidates {
		key := norm.NFC.String(name)
		if _, ok := have[key]; ok {
			continue
		}

		have[key] = struct{}{}
		missing = append(missing, name)
	}

	return missing
}

// reconcileAttachments uploads the container's linked documents that the
// registry item does not have yet and attaches each new upload to the
// item. Existing attachments are never replaced or removed. Failures are
// counted against the item's files, not the item itself.
func (e *Engine) reconcileAttachments(
	ctx context.Context, c *inventory.Container, itemID string, existing []string, report *Report,
) {
	if c.SubstanceID == 0 {
		return
	}

	uploaded, err := e.uploadMissingFiles(ctx, c.SubstanceID, itemID, existing)
	report.Import.FilesUploaded += uploaded

	if err != nil {
		report.Import.FileFailures++
		e.recordFailure(report, PhaseImport, itemID, fmt.Errorf("attachments: %w", err))
	}
}

func (e *Engine) uploadMissingFiles(ctx context.Context, substanceID int64, itemID string, existing []string) (int, error) {
	linked, err := e.inventory.ListLinkedFiles(ctx, substanceID, e.attachmentTypes)
	if err != nil {
		return 0, fmt.Errorf("listing linked files: %w", err)
	}

	if len(linked) == 0 {
		return 0, nil
	}

	dir, err := os.MkdirTemp(e.tempDir, "chemsync-files-*")
	if err != nil {
		return 0, fmt.Errorf("creating download directory: %w", err)
	}
	defer os.RemoveAll(dir)

	files, err := e.downloadAll(ctx, linked, dir)
	if err != nil {
		return 0, err
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	missing := make(map[string]bool)
	for _, name := range diffAttachments(existing, names) {
		missing[name] = true
	}

	uploaded := 0

	for _, f := range files {
		if !missing[f.Name] {
			continue
		}

		delete(missing, f.Name)

		if err := e.uploadAndAttach(ctx, itemID, f); err != nil {
			return uploaded, err
		}

		uploaded++
	}

	return uploaded, nil
}

// downloadAll fetches every linked file into dir in parallel. Results keep
// the order of linked so later decisions are deterministic.
func (e *Engine) downloadAll(ctx context.Context, linked []inventory.LinkedFile, dir string) ([]downloadedFile, error) {
	files := make([]downloadedFile, len(linked))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.attachmentWorkers)

	for i := range linked {
		g.Go(func() error {
			path := filepath.Join(dir, strconv.Itoa(i))

			name, err := e.downloadTo(gctx, linked[i].ID, path)
			if err != nil {
				return fmt.Errorf("downloading file %d: %w", linked[i].ID, err)
			}

			if name == "" {
				name = linked[i].Name
			}

			files[i] = downloadedFile{Name: name, Path: path}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return files, nil
}

func (e *Engine) downloadTo(ctx context.Context, fileID int64, path string) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	name, _, err := e.inventory.DownloadFile(ctx, fileID, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return name, err
}

func (e *Engine) uploadAndAttach(ctx context.Context, itemID string, f downloadedFile) error {
	content, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer content.Close()

	fileID, err := e.registry.UploadFile(ctx, itemID, f.Name, content)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", f.Name, err)
	}

	if err := e.registry.AttachFile(ctx, itemID, registry.BlockTypeMedia, fileID); err != nil {
		return fmt.Errorf("attaching %s: %w", f.Name, err)
	}

	e.logger.Info("attached document",
		slog.String("item_id", itemID),
		slog.String("name", f.Name),
	)

	return nil
}
