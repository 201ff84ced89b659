package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/chemsync/internal/transport"
)

// APIKeyTokenType marks tokens that carry a datalab API key rather than an
// OAuth bearer token. Such tokens go in the DATALAB-API-KEY header.
const APIKeyTokenType = "datalab-api-key"

const (
	apiKeyHeader  = "DATALAB-API-KEY"
	statusSuccess = "success"
	maxErrorBody  = 4096
)

// APIKeySource wraps a static datalab API key as a token source.
func APIKeySource(key string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: key, TokenType: APIKeyTokenType})
}

// Config holds the options for NewClient.
type Config struct {
	BaseURL     string
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
	MaxRetries  int
	UserAgent   string
	Logger      *slog.Logger
}

// Client talks to the datalab REST API.
type Client struct {
	baseURL    string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	retrier    *transport.Retrier
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a registry client. datalab has no public default
// instance, so the base URL is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingURL
	}

	if cfg.TokenSource == nil {
		return nil, ErrMissingAPIKey
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(transport.DefaultRequestTimeout, transport.DefaultReadTimeout)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     cfg.TokenSource,
		httpClient: httpClient,
		retrier:    transport.NewRetrier(cfg.MaxRetries, logger),
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}, nil
}

// Retrier exposes the retry loop so tests can disable backoff sleeps.
func (c *Client) Retrier() *transport.Retrier {
	return c.retrier
}

// request describes one API call.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
	idempotent  bool
}

// jsonRequest builds a request with a JSON-encoded body.
func jsonRequest(method, path string, payload any) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("registry: encoding %s request: %w", path, err)
	}

	return request{method: method, path: path, contentType: "application/json", body: body}, nil
}

// do sends r and decodes a successful response into out (which may be nil).
// A 2xx response whose "status" member is present but not "success" is
// reported as ErrRejected.
func (c *Client) do(ctx context.Context, r request, out any) error {
	url := c.baseURL + r.path

	resp, err := c.retrier.Do(ctx, c.httpClient, "registry "+r.method+" "+r.path, r.idempotent,
		func(ctx context.Context) (*http.Request, error) {
			var body io.Reader = http.NoBody
			if r.body != nil {
				body = bytes.NewReader(r.body)
			}

			req, reqErr := http.NewRequestWithContext(ctx, r.method, url, body)
			if reqErr != nil {
				return nil, reqErr
			}

			if err := c.authorize(req); err != nil {
				return nil, err
			}

			req.Header.Set("Accept", "application/json")

			if r.contentType != "" {
				req.Header.Set("Content-Type", r.contentType)
			}

			if c.userAgent != "" {
				req.Header.Set("User-Agent", c.userAgent)
			}

			return req, nil
		})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("registry: reading %s response: %w", r.path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{
			StatusCode: resp.StatusCode,
			Path:       r.path,
			Message:    errorMessage(raw),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var status struct {
		Status string `json:"status"`
	}

	if err := json.Unmarshal(raw, &status); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Path: r.path, Message: errorMessage(raw), Err: ErrMalformed}
	}

	if status.Status != "" && status.Status != statusSuccess {
		return &APIError{StatusCode: resp.StatusCode, Path: r.path, Message: errorMessage(raw), Err: ErrRejected}
	}

	c.logger.Debug("registry request succeeded",
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.Int("status", resp.StatusCode),
	)

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("registry: decoding %s response: %w", r.path, err)
	}

	return nil
}

// authorize sets the credential header for the current token.
func (c *Client) authorize(req *http.Request) error {
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("obtaining token: %w", err)
	}

	if tok.TokenType == APIKeyTokenType {
		req.Header.Set(apiKeyHeader, tok.AccessToken)
		return nil
	}

	tok.SetAuthHeader(req)

	return nil
}

// errorMessage pulls the message out of a datalab error body, falling back
// to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Title   string `json:"title"`
	}

	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}

		if body.Title != "" {
			return body.Title
		}
	}

	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}

	return string(raw)
}
