package fetchkit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error type constants used in Error.Type.
const (
	ErrorTypeValidation = "Validation"
	ErrorTypeNetwork    = "Network"
	ErrorTypeTimeout    = "Timeout"
	ErrorTypeServer     = "Server"
	ErrorTypeParse      = "Parse"
	ErrorTypeSocket     = "Socket"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCanceled is returned when an attempt was aborted by Cancel, by a
	// newer attempt, or by teardown. Cancellation is not a failure.
	ErrCanceled = errors.New("fetchkit: canceled")

	// ErrInactive is returned when an operation requires an activated
	// controller.
	ErrInactive = errors.New("fetchkit: controller not active")

	// ErrNoSocket is returned when a socket operation is invoked on a
	// controller configured for HTTP mode.
	ErrNoSocket = errors.New("fetchkit: no socket configured")

	// ErrReconnectExhausted is reported once the reconnect budget is spent.
	ErrReconnectExhausted = errors.New("fetchkit: reconnect budget exhausted")
)

// Error is the structured error published by a controller. Failures inside
// an attempt never escape the controller; they surface through Err() as an
// *Error for the owner to render.
type Error struct {
	Type          string
	Message       string
	Cause         error
	AttemptID     string
	Attempt       int
	MaxRetries    int
	StatusCode    int
	URL           string
	ServerMessage string
	Timestamp     time.Time
}

// Error implements error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.AttemptID != "" {
		msg = fmt.Sprintf("[%s] %s", e.AttemptID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*Error); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsCanceled reports whether err represents an aborted attempt rather than
// a failure. Deadline expiry is a timeout, not a cancellation.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	return errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// IsTransient determines if an error represents a transient failure that
// might succeed on retry. Returns true for network errors, timeouts and 5xx
// server responses; false for cancellations, parse errors and 4xx responses
// (except 429).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsCanceled(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var fkErr *Error
	if errors.As(err, &fkErr) {
		switch fkErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout:
			return true
		case ErrorTypeServer:
			return fkErr.StatusCode >= 500 || fkErr.StatusCode == 429
		default:
			return false
		}
	}

	// Unclassified errors from custom transports are assumed retryable.
	return true
}

// publishedMessage renders the human-readable message stored in request
// state: server-supplied message field first, then the transport error text,
// then a generic fallback.
func publishedMessage(err error) string {
	var fkErr *Error
	if errors.As(err, &fkErr) {
		if fkErr.ServerMessage != "" {
			return fkErr.ServerMessage
		}
		if fkErr.Message != "" {
			return fkErr.Message
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return "request failed"
}
