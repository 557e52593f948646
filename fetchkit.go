package fetchkit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/fetchkit/fetchkit/internal/backoff"
)

// Scheduling defaults and backoff bounds.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultDebounce = 300 * time.Millisecond

	retryBaseDelay     = 100 * time.Millisecond
	retryMaxDelay      = 5 * time.Second
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Controller owns one logical data source: either an HTTP request pipeline
// (debounce, cancellation of superseded attempts, retry with backoff,
// stale-response suppression) or a persistent socket feed (state machine,
// reconnect with backoff, pending outbound queue). Exactly one mode per
// instance, selected by WithSocketURL. It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	// Request descriptor and scheduling knobs. Deferred callbacks read
	// these at fire time, so Update is always visible to the next attempt.
	url           string
	method        string
	body          []byte
	binaryBody    bool
	bodyEncodeErr error
	headers       map[string]string
	queryParams   map[string]string
	baseURL       string
	credentials   bool
	timeout       time.Duration
	autoFetch     bool
	retry         int
	debounce      time.Duration
	autoRefresh   time.Duration
	socketURL     string

	transport Transport
	dialer    Dialer
	logger    Logger
	metrics   *MetricsCollector
	debug     *DebugConfig

	retryStrategy     backoff.Strategy
	reconnectStrategy backoff.Strategy

	validationError error

	// Lifecycle.
	active     bool
	firstFetch bool

	// Request controller state. latestID is the sole publication guard:
	// an attempt may mutate data/loading/err only while its identifier
	// still equals latestID.
	latestID       uint64
	attemptTimer   *time.Timer
	cancelInFlight context.CancelFunc
	refreshStop    chan struct{}
	data           []byte
	loading        bool
	lastErr        error

	// Connection controller state. connGen invalidates stale reader
	// goroutines after manual close, reconnect or teardown. sendMu
	// serializes frame writes; it is only ever acquired with c.mu either
	// held or fully released, never the other way around.
	sendMu         sync.Mutex
	conn           Conn
	dialing        bool
	connGen        uint64
	socketState    SocketState
	reconnects     int
	reconnectTimer *time.Timer
	pending        []interface{}
	lastMessage    json.RawMessage
}

// New constructs a Controller using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Controller {
	c := &Controller{
		method:            http.MethodGet,
		timeout:           DefaultTimeout,
		autoFetch:         true,
		retry:             0,
		debounce:          DefaultDebounce,
		autoRefresh:       0,
		credentials:       false,
		transport:         NewHTTPTransport(nil),
		dialer:            &WebSocketDialer{},
		debug:             DefaultDebugConfig(),
		retryStrategy:     backoff.ExponentialStrategy{Multiplier: 2},
		reconnectStrategy: backoff.LinearStrategy{},
		socketState:       SocketConnecting,
	}

	for _, option := range options {
		option(c)
	}

	if c.socketURL == "" {
		c.socketState = SocketClosed
	}

	if err := c.validateLocked(); err != nil {
		c.validationError = err
	}

	return c
}

// Activate opens the controller's lifecycle window. In socket mode it dials
// immediately; in HTTP mode it runs the auto-fetch and starts the
// auto-refresh ticker. Calling Activate on an active controller is a no-op,
// and activation is refused while the configuration is invalid.
// First-call-zero-delay tracking is reset on every activation.
func (c *Controller) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active || c.validationError != nil {
		return
	}
	c.active = true
	c.firstFetch = true
	// Each activation is a fresh window: the reconnect budget starts over
	// just like first-fetch tracking.
	c.reconnects = 0

	if c.socketMode() {
		c.connectLocked()
		return
	}

	if c.autoFetch {
		c.refetchLocked()
	}
	if c.autoRefresh > 0 {
		stop := make(chan struct{})
		c.refreshStop = stop
		go c.refreshLoop(c.autoRefresh, stop)
	}
}

// Deactivate tears the controller down: all timers are stopped, the
// in-flight call is aborted and the connection is force-closed regardless of
// remaining reconnect budget. Idempotent and safe even when none of those
// resources were ever created.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.active = false
	c.latestID++

	if c.attemptTimer != nil {
		c.attemptTimer.Stop()
		c.attemptTimer = nil
	}
	if c.cancelInFlight != nil {
		c.cancelInFlight()
		c.cancelInFlight = nil
	}
	if c.refreshStop != nil {
		close(c.refreshStop)
		c.refreshStop = nil
	}

	c.closeSocketLocked()
	c.pending = nil
}

// Update re-applies configuration options at runtime. Every deferred
// callback (debounce timer, refresh tick, retry) reads the configuration at
// fire time, so the next attempt always reflects the newest descriptor.
// Switching between HTTP and socket mode after construction is not
// supported.
func (c *Controller) Update(options ...Option) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, option := range options {
		option(c)
	}
	c.validationError = c.validateLocked()
}

// Data returns the last successfully published payload, or nil.
func (c *Controller) Data() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// Loading reports whether an attempt is currently published as in progress.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the published error state, or nil. The error is an *Error
// whose Message follows the server-message > transport-message > generic
// preference.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LatestMessage returns the most recent valid inbound socket payload.
func (c *Controller) LatestMessage() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessage
}

// SocketState returns the connection state machine position.
func (c *Controller) SocketState() SocketState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketState
}

// IsValid reports whether configuration validation passed.
func (c *Controller) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Controller) ValidationError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validationError
}

func (c *Controller) socketMode() bool {
	return c.socketURL != ""
}

func (c *Controller) debugEnabled() bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil
}
