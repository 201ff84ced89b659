// Package sync implements the bidirectional reconciliation engine between
// a ChemInventory inventory and a datalab registry. A run is two sequential
// passes: the import pass brings every inventory container into the
// registry, propagates deletions, and records which identifiers it saw; the
// export pass pushes registry items the import pass did not account for
// back into the inventory.
package sync

import (
	"context"
	"io"
	"time"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// InventoryService is the subset of the inventory client the engine uses.
// Satisfied by *inventory.Client.
type InventoryService interface {
	Details(ctx context.Context) (*inventory.Details, error)
	ListContainers(ctx context.Context) (*inventory.ContainerExport, error)
	ListDeletedContainers(ctx context.Context) ([]inventory.DeletedContainer, error)
	ListLinkedFiles(ctx context.Context, substanceID int64, mimeTypes []string) ([]inventory.LinkedFile, error)
	DownloadFile(ctx context.Context, fileID int64, w io.Writer) (string, int64, error)
	ListCustomFields(ctx context.Context) (*inventory.CustomFieldSet, error)
	CreateCustomField(ctx context.Context, name, fieldType, scope string) error
	CreateContainer(ctx context.Context, nc *inventory.NewContainer) (int64, error)
	FindSubstance(ctx context.Context, name, cas string) ([]inventory.Substance, error)
	ListLocations(ctx context.Context) ([]inventory.Location, error)
}

// RegistryService is the subset of the registry client the engine uses.
// Satisfied by *registry.Client.
type RegistryService interface {
	Info(ctx context.Context) error
	ListItems(ctx context.Context, itemType string) ([]registry.Item, error)
	GetItem(ctx context.Context, itemID string) (*registry.Item, error)
	GetItemByRefcode(ctx context.Context, refcode string) (*registry.Item, error)
	CreateItem(ctx context.Context, it *registry.Item, collection string) error
	UpdateItem(ctx context.Context, itemID string, fields map[string]any) error
	UploadFile(ctx context.Context, itemID, name string, content io.Reader) (string, error)
	AttachFile(ctx context.Context, itemID, blockType, fileID string) error
}

// Phase is the run-level state. A run moves strictly forward.
type Phase int

// Run phases.
const (
	PhaseIdle Phase = iota
	PhaseImport
	PhaseExport
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseImport:
		return "import"
	case PhaseExport:
		return "export"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Planned write actions reported in dry-run mode.
const (
	ActionCreateItem      = "create_item"
	ActionUpdateItem      = "update_item"
	ActionDisposeItem     = "dispose_item"
	ActionCreateContainer = "create_container"
	ActionCreateField     = "create_custom_field"
)

// PlannedWrite is a mutating call that dry-run mode computed but did not
// perform. Record holds the payload that would have been sent.
type PlannedWrite struct {
	Phase  string `json:"phase" yaml:"phase"`
	Action string `json:"action" yaml:"action"`
	Target string `json:"target" yaml:"target"`
	Record any    `json:"record,omitempty" yaml:"record,omitempty"`
}

// ItemFailure is a per-item error. It is counted and reported; it never
// aborts a run.
type ItemFailure struct {
	Phase string `json:"phase" yaml:"phase"`
	ID    string `json:"id" yaml:"id"`
	Error string `json:"error" yaml:"error"`
}

// ImportStats counts import pass outcomes.
type ImportStats struct {
	Seen            int `json:"seen" yaml:"seen"`
	Created         int `json:"created" yaml:"created"`
	Updated         int `json:"updated" yaml:"updated"`
	Failed          int `json:"failed" yaml:"failed"`
	FilesUploaded   int `json:"files_uploaded" yaml:"files_uploaded"`
	FileFailures    int `json:"file_failures" yaml:"file_failures"`
	Disposed        int `json:"disposed" yaml:"disposed"`
	AlreadyDisposed int `json:"already_disposed" yaml:"already_disposed"`
	Unreconciled    int `json:"unreconciled" yaml:"unreconciled"`
}

// ExportStats counts export pass outcomes.
type ExportStats struct {
	Seen    int `json:"seen" yaml:"seen"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Pushed  int `json:"pushed" yaml:"pushed"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Report summarizes one run.
type Report struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	DryRun     bool           `json:"dry_run" yaml:"dry_run"`
	SkipFiles  bool           `json:"skip_files" yaml:"skip_files"`
	ImportOnly bool           `json:"import_only" yaml:"import_only"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	Duration   time.Duration  `json:"duration" yaml:"duration"`
	Phase      string         `json:"phase" yaml:"phase"`
	Import     ImportStats    `json:"import" yaml:"import"`
	Export     ExportStats    `json:"export" yaml:"export"`
	Failures   []ItemFailure  `json:"failures,omitempty" yaml:"failures,omitempty"`
	Planned    []PlannedWrite `json:"planned,omitempty" yaml:"planned,omitempty"`
}

// FailureCount is the total number of per-item failures in both passes.
func (r *Report) FailureCount() int {
	return r.Import.Failed + r.Import.FileFailures + r.Export.Failed
}

// IdentitySet is a flat set of identifiers. Container ids, barcodes, item
// ids and refcodes share one namespace: two identifiers of different kinds
// that are equal as strings are treated as the same entity.
type IdentitySet struct {
	ids map[string]struct{}
}

func newIdentitySet() *IdentitySet {
	return &IdentitySet{ids: make(map[string]struct{})}
}

// add records every non-empty id.
func (s *IdentitySet) add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

// Contains reports whether id is in the set. The empty string never is.
func (s *IdentitySet) Contains(id string) bool {
	if s == nil || id == "" {
		return false
	}

	_, ok := s.ids[id]

	return ok
}

// Len returns the number of identifiers in the set.
func (s *IdentitySet) Len() int {
	if s == nil {
		return 0
	}

	return len(s.ids)
}
