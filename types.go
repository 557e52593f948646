package fetchkit

import (
	"context"

	"github.com/google/uuid"
)

// Request is the transport-level description of one HTTP attempt. It is
// built fresh from the controller configuration every time an attempt fires,
// so a configuration update is always visible to the next attempt.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Body        []byte
	// BinaryBody suppresses the default JSON content type, e.g. for
	// file upload payloads.
	BinaryBody  bool
	Credentials bool
}

// Response is the transport-level outcome of a successful HTTP attempt.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs one HTTP-style call. Implementations must honor ctx
// cancellation and return an error satisfying IsCanceled when the call was
// aborted, so the controller can tell a superseded attempt from a failure.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Conn is a minimal persistent-connection handle: framed reads, framed
// writes, close. Read blocks until a frame or a terminal error arrives.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

// Dialer opens a Conn to a URL-like address. The handshake must respect ctx.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// SocketState is the connection controller state machine position.
type SocketState int

const (
	SocketConnecting SocketState = iota
	SocketOpen
	SocketClosed
	SocketError
)

// String returns the lower-case state name.
func (s SocketState) String() string {
	switch s {
	case SocketConnecting:
		return "connecting"
	case SocketOpen:
		return "open"
	case SocketClosed:
		return "closed"
	case SocketError:
		return "error"
	default:
		return "unknown"
	}
}

// Option represents a configuration option
type Option func(*Controller)

// DebugConfig controls which diagnostic events are emitted to the Logger.
type DebugConfig struct {
	Enabled      bool
	LogAttempts  bool
	LogRetries   bool
	LogSocket    bool
	LogQueue     bool
	RequestIDGen func() string
}

// DefaultDebugConfig enables all event classes with UUID attempt IDs.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogAttempts:  true,
		LogRetries:   true,
		LogSocket:    true,
		LogQueue:     true,
		RequestIDGen: uuid.NewString,
	}
}
