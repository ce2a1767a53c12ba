package elasticsearch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a gateway failure.
type ErrorKind string

const (
	// KindTransport: the request never got a response (connection refused, timeout).
	KindTransport ErrorKind = "transport"
	// KindMalformed: Elasticsearch rejected the request body (HTTP 400).
	KindMalformed ErrorKind = "malformed"
	// KindRejected: any other 4xx, such as auth failures or version conflicts.
	KindRejected ErrorKind = "rejected"
	// KindBackend: 5xx, 429 or an undecodable response.
	KindBackend ErrorKind = "backend"
)

// GatewayError is returned by every Gateway operation that fails.
// Not-found conditions are not errors.
type GatewayError struct {
	Op     string // "get", "search", "index", ...
	Kind   ErrorKind
	Status int // HTTP status, 0 for transport failures
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("elasticsearch %s failed (%s, status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("elasticsearch %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request may succeed.
func (e *GatewayError) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindBackend
}

// IsRetryable reports whether err is a retryable GatewayError.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Retryable()
}

func transportError(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Kind: KindTransport, Err: err}
}

func statusError(op string, status int, body string) *GatewayError {
	kind := KindBackend
	switch {
	case status == http.StatusBadRequest:
		kind = KindMalformed
	case status == http.StatusTooManyRequests:
		kind = KindBackend
	case status >= 400 && status < 500:
		kind = KindRejected
	}
	return &GatewayError{Op: op, Kind: kind, Status: status, Err: errors.New(body)}
}

func decodeError(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Kind: KindBackend, Err: fmt.Errorf("failed to decode response: %w", err)}
}
