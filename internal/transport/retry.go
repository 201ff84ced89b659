// Package transport holds the HTTP plumbing shared by the inventory and
// registry clients: bounded-timeout client construction and a retry loop
// with exponential backoff for responses the server did not process.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Retry and backoff constants.
const (
	DefaultMaxRetries = 3
	baseBackoff       = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffFactor     = 2.0
	jitterFraction    = 0.25
)

// Default timeouts. The read timeout bounds the wait for response headers;
// the request timeout bounds the whole exchange including the body.
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultReadTimeout    = 5 * time.Second
)

// NewHTTPClient returns an http.Client with a total request timeout and a
// shorter per-read (response header) timeout. One client is created per run
// and shared by every call to a service.
func NewHTTPClient(requestTimeout, readTimeout time.Duration) *http.Client {
	tr, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: requestTimeout}
	}

	tr = tr.Clone()
	tr.ResponseHeaderTimeout = readTimeout

	return &http.Client{Timeout: requestTimeout, Transport: tr}
}

// Retrier sends requests and retries the ones a server reports it did not
// handle. Mutating requests are never retried after a network error because
// the server may have applied them.
type Retrier struct {
	maxRetries int
	logger     *slog.Logger

	// sleepFunc waits between attempts. Tests replace it to avoid delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier. A negative maxRetries disables retry.
func NewRetrier(maxRetries int, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Retrier{
		maxRetries: maxRetries,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// SetSleepFunc overrides the wait between attempts.
func (r *Retrier) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// Do executes the request produced by build, rebuilding it for every
// attempt so request bodies can be replayed. Any response that is not
// retried is returned to the caller unread, error statuses included; the
// caller classifies and closes it.
func (r *Retrier) Do(
	ctx context.Context, client *http.Client, op string, idempotent bool,
	build func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	var attempt int

	for {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: creating request: %w", op, err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: request canceled: %w", op, ctx.Err())
			}

			if !idempotent || attempt >= r.maxRetries {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			backoff := calcBackoff(attempt)
			r.logger.Warn("retrying after network error",
				slog.String("op", op),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)

			if sleepErr := r.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("%s: request canceled: %w", op, sleepErr)
			}

			attempt++

			continue
		}

		if !shouldRetry(resp.StatusCode, idempotent) || attempt >= r.maxRetries {
			return resp, nil
		}

		backoff := retryBackoff(resp, attempt)
		resp.Body.Close()

		r.logger.Warn("retrying after HTTP error",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)

		if err := r.sleepFunc(ctx, backoff); err != nil {
			return nil, fmt.Errorf("%s: request canceled: %w", op, err)
		}

		attempt++
	}
}

// shouldRetry reports whether a status is safe to retry. 429 and 503 mean
// the request was refused before processing; gateway errors are ambiguous
// and only retried for idempotent requests.
func shouldRetry(code int, idempotent bool) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	case http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return idempotent
	default:
		return false
	}
}

// retryBackoff honors Retry-After (in seconds) when present.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			return min(time.Duration(seconds)*time.Second, maxBackoff)
		}
	}

	return calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
