package inventory

import (
	"context"
	"log/slog"
)

// ListCustomFields returns the custom field descriptors for both scopes.
func (c *Client) ListCustomFields(ctx context.Context) (*CustomFieldSet, error) {
	var set CustomFieldSet

	if err := c.post(ctx, endpointListCustomFields, nil, true, &set); err != nil {
		return nil, err
	}

	return &set, nil
}

// CreateCustomField defines a new custom field.
func (c *Client) CreateCustomField(ctx context.Context, name, fieldType, scope string) error {
	body := map[string]any{
		"name":      name,
		"type":      fieldType,
		"appliesto": scope,
	}

	if err := c.post(ctx, endpointAddCustomField, body, false, nil); err != nil {
		return err
	}

	c.logger.Info("created custom field",
		slog.String("name", name),
		slog.String("type", fieldType),
		slog.String("scope", scope),
	)

	return nil
}
