package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// --- fakeInventory: in-memory InventoryService ---

type fakeInventory struct {
	mu gosync.Mutex

	containers []inventory.Container
	rejected   []inventory.RowError
	deleted    []inventory.DeletedContainer
	fields     inventory.CustomFieldSet
	linked     map[int64][]inventory.LinkedFile
	content    map[int64]string
	substances []inventory.Substance
	locations  []inventory.Location

	detailsErr  error
	listErr     error
	deletedErr  error
	downloadErr error

	nextFieldID     int64
	nextContainerID int64
	created         []*inventory.NewContainer

	// Call counters
	createFieldCalls int
	downloadCalls    int
	locationCalls    int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		linked:          make(map[int64][]inventory.LinkedFile),
		content:         make(map[int64]string),
		nextFieldID:     1,
		nextContainerID: 1000,
	}
}

func (f *fakeInventory) Details(_ context.Context) (*inventory.Details, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}

	return &inventory.Details{InventoryNumber: 1, InventoryName: "Test Lab"}, nil
}

func (f *fakeInventory) ListContainers(_ context.Context) (*inventory.ContainerExport, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	return &inventory.ContainerExport{
		Containers: slices.Clone(f.containers),
		Rejected:   slices.Clone(f.rejected),
	}, nil
}

func (f *fakeInventory) ListDeletedContainers(_ context.Context) ([]inventory.DeletedContainer, error) {
	if f.deletedErr != nil {
		return nil, f.deletedErr
	}

	return slices.Clone(f.deleted), nil
}

// ListLinkedFiles filters by MIME type the way the real client does.
func (f *fakeInventory) ListLinkedFiles(_ context.Context, substanceID int64, mimeTypes []string) ([]inventory.LinkedFile, error) {
	var files []inventory.LinkedFile

	for _, lf := range f.linked[substanceID] {
		if len(mimeTypes) == 0 || slices.ContainsFunc(mimeTypes, func(m string) bool { return strings.EqualFold(m, lf.MimeType) }) {
			files = append(files, lf)
		}
	}

	return files, nil
}

func (f *fakeInventory) DownloadFile(_ context.Context, fileID int64, w io.Writer) (string, int64, error) {
	f.mu.Lock()
	f.downloadCalls++
	f.mu.Unlock()

	if f.downloadErr != nil {
		return "", 0, f.downloadErr
	}

	n, err := io.WriteString(w, f.content[fileID])

	for _, files := range f.linked {
		for _, lf := range files {
			if lf.ID == fileID {
				return lf.Name, int64(n), err
			}
		}
	}

	return "", int64(n), err
}

func (f *fakeInventory) ListCustomFields(_ context.Context) (*inventory.CustomFieldSet, error) {
	return &inventory.CustomFieldSet{
		Container: slices.Clone(f.fields.Container),
		Substance: slices.Clone(f.fields.Substance),
	}, nil
}

func (f *fakeInventory) CreateCustomField(_ context.Context, name, fieldType, scope string) error {
	f.createFieldCalls++

	field := inventory.CustomField{ID: f.nextFieldID, Name: name, Type: fieldType, Scope: scope}
	f.nextFieldID++

	if scope == inventory.ScopeSubstance {
		f.fields.Substance = append(f.fields.Substance, field)
	} else {
		f.fields.Container = append(f.fields.Container, field)
	}

	return nil
}

// CreateContainer records the payload and makes the new container visible
// to later listings, the way the real service does.
func (f *fakeInventory) CreateContainer(_ context.Context, nc *inventory.NewContainer) (int64, error) {
	id := f.nextContainerID
	f.nextContainerID++

	f.created = append(f.created, nc)

	name := nc.Name
	f.containers = append(f.containers, inventory.Container{
		ID:          id,
		Barcode:     nc.Barcode,
		Name:        &name,
		SubstanceID: nc.SubstanceID,
		Custom:      maps.Clone(nc.CustomFields),
	})

	return id, nil
}

func (f *fakeInventory) FindSubstance(_ context.Context, name, _ string) ([]inventory.Substance, error) {
	var out []inventory.Substance

	for _, s := range f.substances {
		if strings.EqualFold(s.Name, name) {
			out = append(out, s)
		}
	}

	return out, nil
}

func (f *fakeInventory) ListLocations(_ context.Context) ([]inventory.Location, error) {
	f.locationCalls++

	return slices.Clone(f.locations), nil
}

// withIdentityField pre-creates the identity field and returns its key.
func (f *fakeInventory) withIdentityField() string {
	_ = f.CreateCustomField(context.Background(), IdentityFieldName, identityFieldType, inventory.ScopeContainer)
	f.createFieldCalls = 0

	return f.fields.Container[len(f.fields.Container)-1].Key()
}

// --- fakeRegistry: in-memory RegistryService ---

type updateCall struct {
	ItemID string
	Fields map[string]any
}

type fakeRegistry struct {
	items map[string]*registry.Item

	infoErr     error
	listErr     error
	getErr      map[string]error
	createHook  func(it *registry.Item) error // runs before each create; non-nil error fails it
	updateErr   map[string]error
	uploadNames map[string]string

	// Call records
	creates        []*registry.Item
	collections    []string
	updates        []updateCall
	uploads        []string
	attaches       []string
	listItemsCalls int
	nextFileID     int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		items:       make(map[string]*registry.Item),
		getErr:      make(map[string]error),
		updateErr:   make(map[string]error),
		uploadNames: make(map[string]string),
	}
}

func cloneItem(it *registry.Item) *registry.Item {
	c := *it
	c.Fields = maps.Clone(it.Fields)
	c.Files = slices.Clone(it.Files)

	return &c
}

// put stores an item directly, bypassing call records.
func (r *fakeRegistry) put(it *registry.Item) {
	if it.Type == "" {
		it.Type = registry.TypeStartingMaterials
	}

	if it.Fields == nil {
		it.Fields = make(map[string]any)
	}

	r.items[it.ItemID] = it
}

func (r *fakeRegistry) Info(_ context.Context) error {
	return r.infoErr
}

func (r *fakeRegistry) ListItems(_ context.Context, itemType string) ([]registry.Item, error) {
	r.listItemsCalls++

	if r.listErr != nil {
		return nil, r.listErr
	}

	ids := slices.Sorted(maps.Keys(r.items))
	out := make([]registry.Item, 0, len(ids))

	for _, id := range ids {
		if r.items[id].Type == itemType {
			out = append(out, *cloneItem(r.items[id]))
		}
	}

	return out, nil
}

func (r *fakeRegistry) GetItem(_ context.Context, itemID string) (*registry.Item, error) {
	if err := r.getErr[itemID]; err != nil {
		return nil, err
	}

	it, ok := r.items[itemID]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", itemID, registry.ErrNotFound)
	}

	return cloneItem(it), nil
}

func (r *fakeRegistry) GetItemByRefcode(_ context.Context, refcode string) (*registry.Item, error) {
	for _, it := range r.items {
		if it.Refcode == refcode {
			return cloneItem(it), nil
		}
	}

	return nil, fmt.Errorf("refcode %s: %w", refcode, registry.ErrNotFound)
}

func (r *fakeRegistry) CreateItem(_ context.Context, it *registry.Item, collection string) error {
	if r.createHook != nil {
		if err := r.createHook(it); err != nil {
			return err
		}
	}

	if _, exists := r.items[it.ItemID]; exists {
		return fmt.Errorf("create %s: %w", it.ItemID, registry.ErrDuplicate)
	}

	stored := cloneItem(it)
	if stored.Refcode == "" {
		stored.Refcode = "test:" + it.ItemID
	}

	r.items[it.ItemID] = stored
	r.creates = append(r.creates, cloneItem(it))
	r.collections = append(r.collections, collection)

	return nil
}

func (r *fakeRegistry) UpdateItem(_ context.Context, itemID string, fields map[string]any) error {
	if err := r.updateErr[itemID]; err != nil {
		return err
	}

	it, ok := r.items[itemID]
	if !ok {
		return fmt.Errorf("update %s: %w", itemID, registry.ErrNotFound)
	}

	r.updates = append(r.updates, updateCall{ItemID: itemID, Fields: maps.Clone(fields)})

	for k, v := range fields {
		if k == "status" {
			it.Status, _ = v.(string)
			continue
		}

		it.Fields[k] = v
	}

	return nil
}

func (r *fakeRegistry) UploadFile(_ context.Context, itemID, name string, content io.Reader) (string, error) {
	if _, err := io.ReadAll(content); err != nil {
		return "", err
	}

	r.nextFileID++
	id := fmt.Sprintf("file-%d", r.nextFileID)
	r.uploadNames[id] = name
	r.uploads = append(r.uploads, itemID+"/"+name)

	return id, nil
}

func (r *fakeRegistry) AttachFile(_ context.Context, itemID, blockType, fileID string) error {
	it, ok := r.items[itemID]
	if !ok {
		return fmt.Errorf("attach %s: %w", itemID, registry.ErrNotFound)
	}

	r.attaches = append(r.attaches, blockType+":"+fileID)
	it.Files = append(it.Files, registry.File{Name: r.uploadNames[fileID]})

	return nil
}

// --- helpers ---

func strPtr(s string) *string { return &s }

func newTestEngine(t *testing.T, inv InventoryService, reg RegistryService) *Engine {
	t.Helper()

	e, err := NewEngine(&EngineConfig{
		Inventory: inv,
		Registry:  reg,
		TempDir:   t.TempDir(),
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	e.nowFunc = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	e.newRunID = func() string { return "run-test" }

	return e
}
