// Metafuse - Cross-Provider Media Metadata Aggregation
// Copyright 2026 Kai Matsuda (kaimatsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaimatsu/metafuse

package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ErrTimeout marks an operation that exhausted its retries on timeouts. It is
// a distinct kind so callers can resolve timeouts to empty results instead of
// treating them as hard failures.
var ErrTimeout = errors.New("operation timed out")

// ErrRetriesExhausted marks an operation that failed on every attempt for a
// retryable, non-timeout reason.
var ErrRetriesExhausted = errors.New("retries exhausted")

// HTTPError carries an HTTP status from a provider response so the retry
// classifier can distinguish transient from permanent failures.
type HTTPError struct {
	StatusCode int
	Status     string
	// RetryAfter is the parsed Retry-After header, zero when absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("http %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// NewHTTPError builds an HTTPError from a response, reading the Retry-After
// header (RFC 6585, interpreted as seconds) when present.
func NewHTTPError(resp *http.Response) *HTTPError {
	e := &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			e.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return e
}

// IsRateLimited reports whether err is an HTTP 429 and returns the requested
// Retry-After window (zero when the header was absent).
func IsRateLimited(err error) (time.Duration, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return httpErr.RetryAfter, true
	}
	return 0, false
}

// IsTimeout reports whether err represents a timeout: a deadline-exceeded
// context, a net.Error timeout, or HTTP 408.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusRequestTimeout {
		return true
	}
	return false
}

// IsRetryable classifies err per the transient-failure taxonomy:
//   - timeouts (connection/send/receive) and connection errors: retry
//   - any 5xx, HTTP 408, HTTP 429: retry
//   - errors with no HTTP response at all (network failure): retry
//   - other 4xx and explicit cancellation: no retry
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsTimeout(err) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500:
			return true
		case httpErr.StatusCode == http.StatusRequestTimeout,
			httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}

	// No response at all: treat as network failure.
	return true
}
