package sync

import (
	"context"
	"fmt"

	"github.com/tonimelisma/chemsync/internal/inventory"
)

// Well-known inventory custom fields.
const (
	// IdentityFieldName holds the registry refcode of the item a container
	// was exported from or imported into.
	IdentityFieldName      = "DataLab ID"
	IdentifyingNumberField = "Identifying #"
	LotNumberField         = "Lot Number"
	FormTypeField          = "Form type"
)

const identityFieldType = "text"

// FieldKeys maps custom field names to the prefixed keys ("cf-<id>",
// "sf-<id>") under which their values are read and written.
type FieldKeys map[string]string

// fieldKeysFrom builds the lookup from the descriptor set. When a name
// exists in both scopes the container field wins.
func fieldKeysFrom(set *inventory.CustomFieldSet) FieldKeys {
	keys := make(FieldKeys)
	if set == nil {
		return keys
	}

	for _, f := range set.All() {
		if _, seen := keys[f.Name]; seen {
			continue
		}

		keys[f.Name] = f.Key()
	}

	return keys
}

// Value returns the container's value for the named custom field, or ""
// when the field is unknown or unset.
func (k FieldKeys) Value(c *inventory.Container, name string) string {
	key, ok := k[name]
	if !ok {
		return ""
	}

	return c.Custom[key]
}

// readFieldKeys loads the current descriptors without modifying them.
func (e *Engine) readFieldKeys(ctx context.Context) (FieldKeys, error) {
	set, err := e.inventory.ListCustomFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: listing custom fields: %w", err)
	}

	return fieldKeysFrom(set), nil
}

// ensureIdentityField makes sure the identity custom field exists on the
// inventory side and returns the refreshed lookup. In dry-run mode a
// missing field is tolerated and never created; mapping then omits the
// identity link for the run. A second call when the field exists performs
// no write.
func (e *Engine) ensureIdentityField(ctx context.Context, dryRun bool, report *Report) (FieldKeys, error) {
	keys, err := e.readFieldKeys(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := keys[IdentityFieldName]; ok {
		return keys, nil
	}

	if dryRun {
		e.plan(report, PhaseExport, ActionCreateField, IdentityFieldName,
			map[string]string{"type": identityFieldType, "scope": inventory.ScopeContainer})

		return keys, nil
	}

	if err := e.inventory.CreateCustomField(ctx, IdentityFieldName, identityFieldType, inventory.ScopeContainer); err != nil {
		return nil, fmt.Errorf("sync: creating identity field: %w", err)
	}

	keys, err = e.readFieldKeys(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := keys[IdentityFieldName]; !ok {
		return nil, fmt.Errorf("sync: identity field %q missing after creation", IdentityFieldName)
	}

	return keys, nil
}
