package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// API endpoints, relative to the base URL.
const (
	endpointDetails          = "general/getdetails"
	endpointExport           = "inventorymanagement/export"
	endpointDeleted          = "inventorymanagement/getdeleted"
	endpointAddContainer     = "container/add"
	endpointListCustomFields = "customfields/list"
	endpointAddCustomField   = "customfields/add"
	endpointLinkedFiles      = "filestore/getlinkedfiles"
	endpointDownload         = "filestore/download"
	endpointFindSubstance    = "substance/search"
	endpointLocations        = "location/load"
)

// Details returns the inventory bound to the API key. It doubles as the
// authentication check run before any sync pass.
func (c *Client) Details(ctx context.Context) (*Details, error) {
	var data struct {
		User struct {
			Inventory     json.RawMessage `json:"inventory"`
			InventoryName string          `json:"inventoryname"`
		} `json:"user"`
	}

	if err := c.post(ctx, endpointDetails, nil, true, &data); err != nil {
		return nil, err
	}

	number, err := rawInt(data.User.Inventory)
	if err != nil {
		return nil, fmt.Errorf("inventory: inventory number: %w", err)
	}

	return &Details{InventoryNumber: number, InventoryName: data.User.InventoryName}, nil
}

// ListContainers returns every live container in the inventory export.
// Rows are decoded one at a time: a row that cannot be decoded lands in
// Rejected and the remaining rows are still returned.
func (c *Client) ListContainers(ctx context.Context) (*ContainerExport, error) {
	var data struct {
		Rows []json.RawMessage `json:"rows"`
	}

	if err := c.post(ctx, endpointExport, nil, true, &data); err != nil {
		return nil, err
	}

	export := &ContainerExport{Containers: make([]Container, 0, len(data.Rows))}

	for i, raw := range data.Rows {
		var ct Container
		if err := json.Unmarshal(raw, &ct); err != nil {
			export.Rejected = append(export.Rejected, RowError{ID: rowID(raw, i), Err: err})
			continue
		}

		export.Containers = append(export.Containers, ct)
	}

	c.logger.Debug("listed containers",
		slog.Int("count", len(export.Containers)),
		slog.Int("rejected", len(export.Rejected)),
	)

	return export, nil
}

// rowID returns the raw id of an export row for error reporting, or the
// row's position when no id can be read.
func rowID(raw json.RawMessage, index int) string {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(raw, &row); err == nil {
		if id := rawString(row["id"]); id != nil {
			return *id
		}
	}

	return fmt.Sprintf("row %d", index)
}

// ListDeletedContainers returns containers that were removed from the
// inventory.
func (c *Client) ListDeletedContainers(ctx context.Context) ([]DeletedContainer, error) {
	var rows []DeletedContainer

	if err := c.post(ctx, endpointDeleted, nil, true, &rows); err != nil {
		return nil, err
	}

	c.logger.Debug("listed deleted containers", slog.Int("count", len(rows)))

	return rows, nil
}

// CreateContainer adds a container and returns its new id.
func (c *Client) CreateContainer(ctx context.Context, nc *NewContainer) (int64, error) {
	body := map[string]any{
		"name":        nc.Name,
		"locationid":  nc.LocationID,
		"substanceid": nc.SubstanceID,
	}

	optional := map[string]string{
		"size":         nc.Size,
		"unit":         nc.Unit,
		"barcode":      nc.Barcode,
		"supplier":     nc.Supplier,
		"comments":     nc.Comments,
		"dateacquired": nc.DateAcquired,
	}

	for k, v := range optional {
		if v != "" {
			body[k] = v
		}
	}

	if len(nc.CustomFields) > 0 {
		body["customfields"] = nc.CustomFields
	}

	var data struct {
		ID json.RawMessage `json:"id"`
	}

	if err := c.post(ctx, endpointAddContainer, body, false, &data); err != nil {
		return 0, err
	}

	id, err := rawInt(data.ID)
	if err != nil {
		return 0, fmt.Errorf("inventory: new container id: %w", err)
	}

	c.logger.Info("created container",
		slog.Int64("container_id", id),
		slog.String("name", nc.Name),
	)

	return id, nil
}
