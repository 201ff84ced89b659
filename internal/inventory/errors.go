// Package inventory provides an HTTP client for the ChemInventory API.
// Every call is a JSON POST carrying the auth token in the body; responses
// arrive in a {"status": ..., "data": ...} envelope that the client unwraps.
package inventory

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classification. Use errors.Is(err, inventory.ErrNotFound).
var (
	ErrMissingAPIKey = errors.New("inventory: API key not set")
	ErrBadRequest    = errors.New("inventory: bad request")
	ErrUnauthorized  = errors.New("inventory: unauthorized")
	ErrForbidden     = errors.New("inventory: forbidden")
	ErrNotFound      = errors.New("inventory: not found")
	ErrThrottled     = errors.New("inventory: throttled")
	ErrServerError   = errors.New("inventory: server error")
	ErrRejected      = errors.New("inventory: request rejected")
	ErrMalformed     = errors.New("inventory: malformed response")
)

// APIError wraps a sentinel with the HTTP status, the endpoint called and
// the message the server returned.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inventory: %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-200 HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrRejected
	}
}
