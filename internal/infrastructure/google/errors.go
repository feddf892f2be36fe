package google

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Stable error codes surfaced to the orchestrator and mapped to HTTP there.
var (
	ErrNotConfigured = errors.New("GOOGLE_OAUTH_NOT_CONFIGURED")
	ErrNoTokens      = errors.New("NO_GOOGLE_TOKENS")
	ErrTimeout       = errors.New("GOOGLE_TIMEOUT")
)

// APIError wraps a calendar API failure with its retry classification.
type APIError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google %s failed (status=%d, retryable=%v): %v", e.Op, e.StatusCode, e.Retryable, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient calendar failure: network
// timeouts, connection resets, name-lookup failures, 5xx, and 429.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func classifyStatus(op string, status int, err error) *APIError {
	retryable := status >= 500 || status == 429
	return &APIError{Op: op, StatusCode: status, Retryable: retryable, Err: err}
}

func classifyTransport(op string, err error) *APIError {
	// Everything that never reached the API is transient by classification:
	// timeouts, resets, DNS.
	return &APIError{Op: op, Retryable: true, Err: err}
}
