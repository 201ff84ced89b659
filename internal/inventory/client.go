package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tonimelisma/chemsync/internal/transport"
)

// DefaultBaseURL is the public ChemInventory API root.
const DefaultBaseURL = "https://app.cheminventory.net/api"

const statusSuccess = "success"

// maxErrorBody caps how much of an error response is kept in APIError.
const maxErrorBody = 4096

// Config holds the options for NewClient.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	MaxRetries int
	UserAgent  string
	Logger     *slog.Logger
}

// Client talks to the ChemInventory API. One Client is created per run and
// shared by every call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retrier    *transport.Retrier
	userAgent  string
	logger     *slog.Logger
}

// envelope is the response wrapper used by every JSON endpoint.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewClient creates a ChemInventory client. A missing API key is a setup
// error and is reported before any request is made.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
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

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
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

// send POSTs body (plus the auth token) to endpoint and returns the raw
// response after checking the HTTP status. The caller closes the body.
func (c *Client) send(ctx context.Context, endpoint string, body map[string]any, idempotent bool) (*http.Response, error) {
	payload := make(map[string]any, len(body)+1)
	for k, v := range body {
		payload[k] = v
	}

	payload["authtoken"] = c.apiKey

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("inventory: encoding %s request: %w", endpoint, err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	resp, err := c.retrier.Do(ctx, c.httpClient, "inventory "+endpoint, idempotent,
		func(ctx context.Context) (*http.Request, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
			if reqErr != nil {
				return nil, reqErr
			}

			req.Header.Set("Content-Type", "application/json")

			if c.userAgent != "" {
				req.Header.Set("User-Agent", c.userAgent)
			}

			return req, nil
		})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    string(msg),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	c.logger.Debug("inventory request succeeded",
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// post calls endpoint and decodes the envelope's data member into out.
// A nil out only checks the envelope status.
func (c *Client) post(ctx context.Context, endpoint string, body map[string]any, idempotent bool, out any) error {
	resp, err := c.send(ctx, endpoint, body, idempotent)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeEnvelope(endpoint, resp, out)
}

// decodeEnvelope unwraps {"status","data"} and fails on anything but success.
func decodeEnvelope(endpoint string, resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("inventory: reading %s response: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: truncate(raw), Err: ErrMalformed}
	}

	if env.Status != statusSuccess {
		msg := env.Message
		if msg == "" {
			msg = truncate(raw)
		}

		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: msg, Err: ErrRejected}
	}

	if out == nil {
		return nil
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: "response has no data member", Err: ErrMalformed}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("inventory: decoding %s data: %w", endpoint, err)
	}

	return nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}

	return string(b)
}
