package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
)

// unknownName names containers created from registry items without a name.
const unknownName = "Unknown"

// legacyEmptyComment is how older inventories recorded "no comment".
const legacyEmptyComment = "None"

// disposedFlag is the inventory export value for a disposed container.
const disposedFlag = "1"

// descriptionFields are custom fields appended to the item description as
// labeled lines, in this order.
var descriptionFields = []string{
	IdentifyingNumberField,
	LotNumberField,
	FormTypeField,
}

// registryDateLayouts are the layouts accepted for an item's date field.
var registryDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	time.DateOnly,
}

// MapInventoryToRegistry projects an inventory container onto a registry
// item. The item id is the container id; identity resolution may retarget
// it later. Optional container values that are missing stay absent from the
// item's fields.
func MapInventoryToRegistry(c *inventory.Container, keys FieldKeys) *registry.Item {
	fields := make(map[string]any)

	setOptional(fields, "name", c.Name)
	setOptional(fields, "size", c.Size)
	setOptional(fields, "size_unit", c.Unit)
	setOptional(fields, "supplier", c.Supplier)
	setOptional(fields, "CAS", c.CAS)
	setOptional(fields, "GHS_codes", c.Hazards)
	setOptional(fields, "smiles_representation", c.SMILES)
	setOptional(fields, "chemform", c.MolecularFormula)
	setOptional(fields, "location", c.Location)
	setOptional(fields, "date", c.DateAcquired)

	if c.MolecularWeight != nil {
		fields["molar_mass"] = *c.MolecularWeight
	}

	if c.Barcode != "" {
		fields["barcode"] = c.Barcode
	}

	if desc, ok := describe(c, keys); ok {
		fields["description"] = desc
	}

	status := registry.StatusAvailable
	if c.Disposed == disposedFlag {
		status = registry.StatusDisposed
	}

	return &registry.Item{
		ItemID:  strconv.FormatInt(c.ID, 10),
		Refcode: keys.Value(c, IdentityFieldName),
		Type:    registry.TypeStartingMaterials,
		Status:  status,
		Fields:  fields,
	}
}

// describe builds the description from the comment and the labeled custom
// field lines. It reports false when the container has neither.
func describe(c *inventory.Container, keys FieldKeys) (string, bool) {
	var parts []string

	present := false

	if c.Comments != nil {
		present = true

		if *c.Comments != legacyEmptyComment {
			parts = append(parts, *c.Comments)
		}
	}

	for _, label := range descriptionFields {
		if v := keys.Value(c, label); v != "" {
			present = true

			parts = append(parts, label+": "+v)
		}
	}

	return strings.Join(parts, "\n"), present
}

func setOptional(fields map[string]any, key string, v *string) {
	if v != nil {
		fields[key] = *v
	}
}

// MapRegistryToInventory builds the container creation payload for a
// registry item. locationID and substanceID must already be resolved. When
// keys knows the identity field, the item's refcode is written to it so the
// next import pass finds this item instead of creating a new one.
func MapRegistryToInventory(it *registry.Item, locationID, substanceID int64, keys FieldKeys) *inventory.NewContainer {
	name, ok := it.FieldString("name")
	if !ok {
		name = unknownName
	}

	nc := &inventory.NewContainer{
		Name:        name,
		LocationID:  locationID,
		SubstanceID: substanceID,
	}

	nc.Size, _ = it.FieldString("size")
	nc.Unit, _ = it.FieldString("size_unit")
	nc.Supplier, _ = it.FieldString("supplier")
	nc.Comments, _ = it.FieldString("description")
	nc.Barcode, _ = it.FieldString("barcode")

	if raw, ok := it.FieldString("date"); ok {
		if d, ok := parseRegistryDate(raw); ok {
			nc.DateAcquired = d.Format(time.DateOnly)
		}
	}

	if key, ok := keys[IdentityFieldName]; ok && it.Refcode != "" {
		nc.CustomFields = map[string]string{key: it.Refcode}
	}

	return nc
}

func parseRegistryDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)

	for _, layout := range registryDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
