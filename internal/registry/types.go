package registry

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// TypeStartingMaterials is the item type used for inventory containers.
const TypeStartingMaterials = "starting_materials"

// Item statuses.
const (
	StatusAvailable = "available"
	StatusDisposed  = "disposed"
)

// reservedKeys are item attributes held in dedicated Item fields or owned
// by the server; they never appear in Item.Fields.
var reservedKeys = map[string]bool{
	"item_id":        true,
	"refcode":        true,
	"type":           true,
	"status":         true,
	"files":          true,
	"file_ObjectIds": true,
	"immutable_id":   true,
	"_id":            true,
}

// File is an attachment stored against an item.
type File struct {
	Name string `json:"name"`
}

// Item is a registry record. Fields carries the free-form attribute set;
// a key that is absent means the attribute is unset.
type Item struct {
	ItemID  string
	Refcode string
	Type    string
	Status  string
	Files   []File
	Fields  map[string]any
}

// UnmarshalJSON splits the flat item document into dedicated fields and
// the free-form remainder.
func (it *Item) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("registry: decoding item: %w", err)
	}

	*it = Item{Fields: make(map[string]any)}

	strField := func(key string) string {
		var s string
		if raw, ok := doc[key]; ok {
			_ = json.Unmarshal(raw, &s) // non-string values are treated as unset
		}

		return s
	}

	it.ItemID = strField("item_id")
	it.Refcode = strField("refcode")
	it.Type = strField("type")
	it.Status = strField("status")

	if raw, ok := doc["files"]; ok {
		if err := json.Unmarshal(raw, &it.Files); err != nil {
			return fmt.Errorf("registry: decoding files of %q: %w", it.ItemID, err)
		}
	}

	for key, raw := range doc {
		if reservedKeys[key] {
			continue
		}

		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("registry: decoding field %q of %q: %w", key, it.ItemID, err)
		}

		if v != nil {
			it.Fields[key] = v
		}
	}

	return nil
}

// FileNames returns the original filenames of the item's attachments.
func (it *Item) FileNames() []string {
	names := make([]string, 0, len(it.Files))
	for _, f := range it.Files {
		names = append(names, f.Name)
	}

	return names
}

// FieldString returns a field as a string. Numbers are formatted without
// trailing zeros; any other type reports false.
func (it *Item) FieldString(key string) (string, bool) {
	switch v := it.Fields[key].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// UpdateFields is the attribute set sent when updating an existing item.
// The item id and refcode are never rewritten.
func (it *Item) UpdateFields() map[string]any {
	out := maps.Clone(it.Fields)
	if out == nil {
		out = make(map[string]any)
	}

	if it.Status != "" {
		out["status"] = it.Status
	}

	return out
}

// Document is the full document sent when creating the item.
func (it *Item) Document() map[string]any {
	doc := it.UpdateFields()
	doc["item_id"] = it.ItemID
	doc["type"] = it.Type

	return doc
}
