package inventory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// ListLinkedFiles returns the documents stored against a substance whose
// MIME type is in mimeTypes. The filter is applied again locally because
// the server treats it as a hint.
func (c *Client) ListLinkedFiles(ctx context.Context, substanceID int64, mimeTypes []string) ([]LinkedFile, error) {
	body := map[string]any{
		"substanceid": substanceID,
		"mimetypes":   mimeTypes,
	}

	var files []LinkedFile
	if err := c.post(ctx, endpointLinkedFiles, body, true, &files); err != nil {
		return nil, err
	}

	if len(mimeTypes) == 0 {
		return files, nil
	}

	kept := files[:0]
	for _, f := range files {
		if slices.ContainsFunc(mimeTypes, func(m string) bool { return strings.EqualFold(m, f.MimeType) }) {
			kept = append(kept, f)
		}
	}

	return kept, nil
}

// DownloadFile streams a stored document to w and returns the filename the
// server reports for it. When no filename is reported, a name derived from
// the file id is returned.
func (c *Client) DownloadFile(ctx context.Context, fileID int64, w io.Writer) (string, int64, error) {
	resp, err := c.send(ctx, endpointDownload, map[string]any{"fileid": fileID}, true)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	// Errors come back as a JSON envelope with a 200 status.
	if isJSON(resp) {
		if err := decodeEnvelope(endpointDownload, resp, nil); err != nil {
			return "", 0, err
		}

		return "", 0, &APIError{StatusCode: resp.StatusCode, Endpoint: endpointDownload, Message: "expected file content, got JSON", Err: ErrMalformed}
	}

	name := filenameFrom(resp)
	if name == "" {
		name = "file-" + strconv.FormatInt(fileID, 10)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", n, fmt.Errorf("inventory: streaming file %d: %w", fileID, err)
	}

	c.logger.Debug("downloaded file",
		slog.Int64("file_id", fileID),
		slog.String("name", name),
		slog.Int64("bytes", n),
	)

	return name, n, nil
}

func isJSON(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// filenameFrom extracts the filename parameter of Content-Disposition.
func filenameFrom(resp *http.Response) string {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}

	return params["filename"]
}
