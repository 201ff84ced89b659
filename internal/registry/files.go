package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
)

// BlockTypeMedia is the data block used to display an attached document.
const BlockTypeMedia = "media"

// UploadFile stores content under name against an item and returns the new
// file id. The content is buffered so the request can be replayed.
func (c *Client) UploadFile(ctx context.Context, itemID, name string, content io.Reader) (string, error) {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("item_id", itemID); err != nil {
		return "", fmt.Errorf("registry: building upload form: %w", err)
	}

	if err := mw.WriteField("replace_file", "null"); err != nil {
		return "", fmt.Errorf("registry: building upload form: %w", err)
	}

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("registry: building upload form: %w", err)
	}

	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("registry: reading %s for upload: %w", name, err)
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("registry: building upload form: %w", err)
	}

	var body struct {
		FileID string `json:"file_id"`
	}

	r := request{
		method:      http.MethodPost,
		path:        "/upload-file/",
		contentType: mw.FormDataContentType(),
		body:        buf.Bytes(),
	}

	if err := c.do(ctx, r, &body); err != nil {
		return "", err
	}

	if body.FileID == "" {
		return "", &APIError{StatusCode: http.StatusOK, Path: r.path, Message: "response has no file_id", Err: ErrMalformed}
	}

	c.logger.Info("uploaded file",
		slog.String("item_id", itemID),
		slog.String("name", name),
		slog.String("file_id", body.FileID),
	)

	return body.FileID, nil
}

// AttachFile adds a data block of blockType to an item and points it at an
// uploaded file. datalab needs two calls: one to create the block, one to
// bind the file to it.
func (c *Client) AttachFile(ctx context.Context, itemID, blockType, fileID string) error {
	r, err := jsonRequest(http.MethodPost, "/add-data-block/", map[string]any{
		"item_id":    itemID,
		"block_type": blockType,
		"index":      nil,
	})
	if err != nil {
		return err
	}

	var created struct {
		Block map[string]any `json:"new_block_obj"`
	}

	if err := c.do(ctx, r, &created); err != nil {
		return err
	}

	blockID, _ := created.Block["block_id"].(string)
	if blockID == "" {
		return &APIError{StatusCode: http.StatusOK, Path: r.path, Message: "response has no block_id", Err: ErrMalformed}
	}

	created.Block["file_id"] = fileID

	r, err = jsonRequest(http.MethodPost, "/update-block/", map[string]any{
		"item_id":    itemID,
		"block_id":   blockID,
		"block_data": created.Block,
	})
	if err != nil {
		return err
	}

	if err := c.do(ctx, r, nil); err != nil {
		return err
	}

	c.logger.Debug("attached file",
		slog.String("item_id", itemID),
		slog.String("block_id", blockID),
	)

	return nil
}
