package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Info checks that the instance is reachable and the credentials are
// accepted. It is run once before any sync pass.
func (c *Client) Info(ctx context.Context) error {
	r := request{method: http.MethodGet, path: "/info", idempotent: true}
	if err := c.do(ctx, r, nil); err != nil {
		return err
	}

	// /info is public; listing starting materials proves the key works.
	r = request{method: http.MethodGet, path: "/starting-materials/", idempotent: true}

	return c.do(ctx, r, nil)
}

// ListItems returns every item of the given type.
func (c *Client) ListItems(ctx context.Context, itemType string) ([]Item, error) {
	path, key := "/samples/", "samples"
	if itemType == TypeStartingMaterials {
		path, key = "/starting-materials/", "items"
	}

	var body map[string]rawItems

	r := request{method: http.MethodGet, path: path, idempotent: true}
	if err := c.do(ctx, r, &body); err != nil {
		return nil, err
	}

	items := body[key]

	// The samples listing mixes types.
	out := items[:0]
	for _, it := range items {
		if it.Type == "" || it.Type == itemType {
			out = append(out, it)
		}
	}

	c.logger.Debug("listed registry items",
		slog.String("type", itemType),
		slog.Int("count", len(out)),
	)

	return out, nil
}

// rawItems decodes a listing member, ignoring non-array members such as
// "status" that share the response object.
type rawItems []Item

func (r *rawItems) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '[' {
		return nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	*r = items

	return nil
}

// GetItem fetches an item by its caller-assigned item id. A missing item
// is reported as ErrNotFound.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	return c.fetchItem(ctx, "/get-item-data/"+url.PathEscape(itemID))
}

// GetItemByRefcode fetches an item by its server-assigned refcode.
func (c *Client) GetItemByRefcode(ctx context.Context, refcode string) (*Item, error) {
	return c.fetchItem(ctx, "/items/"+url.PathEscape(refcode))
}

func (c *Client) fetchItem(ctx context.Context, path string) (*Item, error) {
	var body struct {
		ItemData *Item `json:"item_data"`
	}

	r := request{method: http.MethodGet, path: path, idempotent: true}
	if err := c.do(ctx, r, &body); err != nil {
		return nil, err
	}

	if body.ItemData == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Path: path, Message: "response has no item_data", Err: ErrMalformed}
	}

	return body.ItemData, nil
}

// CreateItem creates it under its own item id, optionally inside a
// collection. An existing item id yields ErrDuplicate.
func (c *Client) CreateItem(ctx context.Context, it *Item, collection string) error {
	doc := it.Document()
	if collection != "" {
		doc["collections"] = []map[string]string{{"collection_id": collection}}
	}

	r, err := jsonRequest(http.MethodPost, "/new-sample/", map[string]any{
		"new_sample_data":           doc,
		"generate_id_automatically": false,
	})
	if err != nil {
		return err
	}

	if err := c.do(ctx, r, nil); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("registry: creating %q: %w", it.ItemID, err)
		}

		return err
	}

	c.logger.Info("created registry item",
		slog.String("item_id", it.ItemID),
		slog.String("type", it.Type),
	)

	return nil
}

// UpdateItem writes fields onto an existing item. Keys not present in
// fields are left untouched.
func (c *Client) UpdateItem(ctx context.Context, itemID string, fields map[string]any) error {
	r, err := jsonRequest(http.MethodPost, "/save-item/", map[string]any{
		"item_id": itemID,
		"data":    fields,
	})
	if err != nil {
		return err
	}

	if err := c.do(ctx, r, nil); err != nil {
		return err
	}

	c.logger.Debug("updated registry item",
		slog.String("item_id", itemID),
		slog.Int("fields", len(fields)),
	)

	return nil
}
