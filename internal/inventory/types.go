package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Custom field scopes as reported by the API.
const (
	ScopeContainer = "container"
	ScopeSubstance = "substance"
)

// Prefixes of the keys under which custom values appear in export rows.
const (
	ContainerFieldPrefix = "cf-"
	SubstanceFieldPrefix = "sf-"
)

// Details identifies the inventory an API key is bound to.
type Details struct {
	InventoryNumber int64
	InventoryName   string
}

// Container is one row of the inventory export. Optional values are nil
// when the API returns null or an empty string, so callers can tell a
// missing value from a present one.
type Container struct {
	ID               int64
	Barcode          string
	Name             *string
	Size             *string
	Unit             *string
	Supplier         *string
	CAS              *string
	Hazards          *string
	SMILES           *string
	MolecularFormula *string
	MolecularWeight  *float64
	Location         *string
	DateAcquired     *string
	Comments         *string
	Disposed         string
	SubstanceID      int64

	// Custom holds custom field values keyed by "cf-<id>" or "sf-<id>".
	Custom map[string]string
}

// UnmarshalJSON decodes an export row. The export mixes numbers and
// strings for the same column across inventories, so every column is read
// leniently.
func (c *Container) UnmarshalJSON(data []byte) error {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("inventory: decoding container row: %w", err)
	}

	id, err := rawInt(row["id"])
	if err != nil {
		return fmt.Errorf("inventory: container id: %w", err)
	}

	substanceID, err := rawInt(row["substanceid"])
	if err != nil {
		return fmt.Errorf("inventory: container %d substance id: %w", id, err)
	}

	*c = Container{
		ID:               id,
		Barcode:          deref(rawString(row["barcode"])),
		Name:             rawString(row["name"]),
		Size:             rawString(row["size"]),
		Unit:             rawString(row["unit"]),
		Supplier:         rawString(row["supplier"]),
		CAS:              rawString(row["cas"]),
		Hazards:          rawString(row["hazards"]),
		SMILES:           rawString(row["smiles"]),
		MolecularFormula: rawString(row["molecularformula"]),
		MolecularWeight:  rawFloat(row["mw"]),
		Location:         rawString(row["location"]),
		DateAcquired:     rawString(row["dateacquired"]),
		Comments:         rawString(row["comments"]),
		Disposed:         deref(rawString(row["disposed"])),
		SubstanceID:      substanceID,
	}

	for key, raw := range row {
		if !strings.HasPrefix(key, ContainerFieldPrefix) && !strings.HasPrefix(key, SubstanceFieldPrefix) {
			continue
		}

		if v := rawString(raw); v != nil {
			if c.Custom == nil {
				c.Custom = make(map[string]string)
			}

			c.Custom[key] = *v
		}
	}

	return nil
}

// ContainerExport is the decoded inventory export.
type ContainerExport struct {
	Containers []Container
	Rejected   []RowError
}

// RowError describes an export row that could not be decoded. ID is the
// row's raw id as sent by the API.
type RowError struct {
	ID  string
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("inventory: export row %s: %v", e.ID, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// DeletedContainer is an entry in the deleted-containers listing.
type DeletedContainer struct {
	ID      int64
	Barcode string
}

// UnmarshalJSON tolerates string or numeric ids.
func (d *DeletedContainer) UnmarshalJSON(data []byte) error {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("inventory: decoding deleted container: %w", err)
	}

	id, err := rawInt(row["id"])
	if err != nil {
		return fmt.Errorf("inventory: deleted container id: %w", err)
	}

	d.ID = id
	d.Barcode = deref(rawString(row["barcode"]))

	return nil
}

// CustomField describes one user-defined field.
type CustomField struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Scope string `json:"-"`
}

// Key returns the prefixed identifier under which the field's values
// appear in export rows and are written on create.
func (f CustomField) Key() string {
	prefix := ContainerFieldPrefix
	if f.Scope == ScopeSubstance {
		prefix = SubstanceFieldPrefix
	}

	return prefix + strconv.FormatInt(f.ID, 10)
}

// CustomFieldSet is the full set of custom field descriptors, by scope.
type CustomFieldSet struct {
	Container []CustomField `json:"container"`
	Substance []CustomField `json:"substance"`
}

// All returns every descriptor with its Scope filled in.
func (s *CustomFieldSet) All() []CustomField {
	out := make([]CustomField, 0, len(s.Container)+len(s.Substance))

	for _, f := range s.Container {
		f.Scope = ScopeContainer
		out = append(out, f)
	}

	for _, f := range s.Substance {
		f.Scope = ScopeSubstance
		out = append(out, f)
	}

	return out
}

// LinkedFile is a document stored against a substance.
type LinkedFile struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimetype"`
}

// Substance is a chemical identity entry.
type Substance struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	CAS  string `json:"cas"`
}

// Location is a named storage slot.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewContainer is the payload for container creation.
type NewContainer struct {
	Name         string            `json:"name"`
	LocationID   int64             `json:"locationid"`
	SubstanceID  int64             `json:"substanceid"`
	Size         string            `json:"size,omitempty"`
	Unit         string            `json:"unit,omitempty"`
	Barcode      string            `json:"barcode,omitempty"`
	Supplier     string            `json:"supplier,omitempty"`
	Comments     string            `json:"comments,omitempty"`
	DateAcquired string            `json:"dateacquired,omitempty"`
	CustomFields map[string]string `json:"customfields,omitempty"`
}

// rawString returns the column as a string, or nil for null, missing or
// empty values. Numbers keep their JSON text.
func rawString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	} else {
		s = string(raw)
	}

	if s == "" {
		return nil
	}

	return &s
}

func rawFloat(raw json.RawMessage) *float64 {
	s := rawString(raw)
	if s == nil {
		return nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}

	return &f
}

func rawInt(raw json.RawMessage) (int64, error) {
	s := rawString(raw)
	if s == nil {
		return 0, nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(*s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", *s)
	}

	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
