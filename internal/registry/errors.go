// Package registry provides an HTTP client for a datalab instance, the
// laboratory data-management service that holds sample and starting
// material records.
package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classification. Use errors.Is(err, registry.ErrNotFound).
var (
	ErrMissingURL    = errors.New("registry: API URL not set")
	ErrMissingAPIKey = errors.New("registry: API key not set")
	ErrBadRequest    = errors.New("registry: bad request")
	ErrUnauthorized  = errors.New("registry: unauthorized")
	ErrForbidden     = errors.New("registry: forbidden")
	ErrNotFound      = errors.New("registry: not found")
	ErrDuplicate     = errors.New("registry: item already exists")
	ErrThrottled     = errors.New("registry: throttled")
	ErrServerError   = errors.New("registry: server error")
	ErrRejected      = errors.New("registry: request rejected")
	ErrMalformed     = errors.New("registry: malformed response")
)

// APIError wraps a sentinel with the HTTP status, the request path and the
// message the server returned.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry: %s: HTTP %d: %s", e.Path, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx HTTP status code to a sentinel error.
// datalab answers a create with an existing item id with 409.
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
	case http.StatusConflict:
		return ErrDuplicate
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrRejected
	}
}
