package fetchkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WithURL sets the target address for HTTP mode.
func WithURL(u string) Option {
	return func(c *Controller) {
		c.url = u
	}
}

// WithBaseURL sets a base address the target is resolved against.
func WithBaseURL(u string) Option {
	return func(c *Controller) {
		c.baseURL = u
	}
}

// WithMethod sets the HTTP verb (GET, POST, PUT or DELETE; default GET).
func WithMethod(m string) Option {
	return func(c *Controller) {
		c.method = m
	}
}

// WithBody sets a raw request body. GET requests never attach it.
func WithBody(b []byte) Option {
	return func(c *Controller) {
		c.body = b
		c.binaryBody = false
	}
}

// WithJSONBody marshals v as the request body. A marshal failure is
// reported through ValidationError.
func WithJSONBody(v interface{}) Option {
	return func(c *Controller) {
		data, err := json.Marshal(v)
		if err != nil {
			c.bodyEncodeErr = err
			return
		}
		c.body = data
		c.binaryBody = false
		c.bodyEncodeErr = nil
	}
}

// WithBinaryBody sets an opaque binary body; no JSON content type default is
// injected for binary form payloads.
func WithBinaryBody(b []byte) Option {
	return func(c *Controller) {
		c.body = b
		c.binaryBody = true
	}
}

// WithHeaders replaces the header mapping.
func WithHeaders(h map[string]string) Option {
	return func(c *Controller) {
		c.headers = h
	}
}

// WithHeader sets one header.
func WithHeader(key, value string) Option {
	return func(c *Controller) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// WithQueryParams replaces the query mapping.
func WithQueryParams(q map[string]string) Option {
	return func(c *Controller) {
		c.queryParams = q
	}
}

// WithQueryParam sets one query parameter.
func WithQueryParam(key, value string) Option {
	return func(c *Controller) {
		if c.queryParams == nil {
			c.queryParams = make(map[string]string)
		}
		c.queryParams[key] = value
	}
}

// WithCredentials toggles credential inclusion (default false).
func WithCredentials(include bool) Option {
	return func(c *Controller) {
		c.credentials = include
	}
}

// WithTimeout sets the per-attempt timeout (default 15s).
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithAutoFetch toggles the initial fetch on activation (default true,
// HTTP mode only).
func WithAutoFetch(enabled bool) Option {
	return func(c *Controller) {
		c.autoFetch = enabled
	}
}

// WithRetry sets the retry budget for failed attempts (default 0). In
// socket mode the reconnect budget is twice this value.
func WithRetry(n int) Option {
	return func(c *Controller) {
		c.retry = n
	}
}

// WithDebounce sets the delay before a triggered fetch is issued (default
// 300ms). The first fetch of an activation always runs immediately.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithAutoRefresh sets the periodic refetch interval (default 0 = disabled,
// HTTP mode only).
func WithAutoRefresh(d time.Duration) Option {
	return func(c *Controller) {
		c.autoRefresh = d
	}
}

// WithSocketURL selects connection mode. Its presence disables auto-fetch
// and auto-refresh.
func WithSocketURL(u string) Option {
	return func(c *Controller) {
		c.socketURL = u
	}
}

// WithTransport sets a custom HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Controller) {
		c.transport = t
	}
}

// WithHTTPClient routes the default transport through a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Controller) {
		c.transport = NewHTTPTransport(client)
	}
}

// WithDialer sets a custom connection dialer.
func WithDialer(d Dialer) Option {
	return func(c *Controller) {
		c.dialer = d
	}
}

// WithLogger sets the diagnostic event observer.
func WithLogger(logger Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug diagnostics on a console logger.
func WithSimpleLogger() Option {
	return func(c *Controller) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug diagnostics with the default configuration.
func WithDebug() Option {
	return func(c *Controller) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Controller) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom attempt correlation ID generator.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Controller) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Controller) {
		c.metrics = collector
	}
}

// ValidateConfiguration re-runs configuration validation.
func (c *Controller) ValidateConfiguration() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

func (c *Controller) validateLocked() error {
	var errs []string

	errs = append(errs, c.validateSchedulingConfig()...)
	errs = append(errs, c.validateTransportConfig()...)
	errs = append(errs, c.validateSocketConfig()...)
	errs = append(errs, c.validateDebugConfig()...)
	errs = append(errs, c.validateExtremeValues()...)

	if len(errs) > 0 {
		return &Error{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errs),
		}
	}
	return nil
}

func (c *Controller) validateSchedulingConfig() []string {
	var errs []string

	if c.retry < 0 {
		errs = append(errs, "retry must be non-negative")
	}
	if c.debounce < 0 {
		errs = append(errs, "debounce must be non-negative")
	}
	if c.autoRefresh < 0 {
		errs = append(errs, "autoRefresh must be non-negative")
	}
	if c.timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	return errs
}

func (c *Controller) validateTransportConfig() []string {
	var errs []string

	if c.socketURL == "" && c.url == "" && c.baseURL == "" {
		errs = append(errs, "either url (HTTP mode) or socket url (connection mode) must be set")
	}

	switch c.method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		errs = append(errs, fmt.Sprintf("unsupported method %q", c.method))
	}

	if c.transport == nil {
		errs = append(errs, "transport cannot be nil")
	}
	if c.bodyEncodeErr != nil {
		errs = append(errs, fmt.Sprintf("body encoding failed: %v", c.bodyEncodeErr))
	}

	return errs
}

func (c *Controller) validateSocketConfig() []string {
	var errs []string

	if c.socketURL != "" && c.dialer == nil {
		errs = append(errs, "dialer cannot be nil in connection mode")
	}

	return errs
}

func (c *Controller) validateDebugConfig() []string {
	var errs []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errs = append(errs, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errs = append(errs, "logger must be set when debug is enabled")
		}
	}

	return errs
}

func (c *Controller) validateExtremeValues() []string {
	var errs []string

	if c.retry > 100 {
		errs = append(errs, "retry > 100 may cause excessive resource usage")
	}
	if c.timeout > 10*time.Minute {
		errs = append(errs, "timeout > 10m may cause requests to hang for too long")
	}
	if c.debounce > time.Minute {
		errs = append(errs, "debounce > 1m delays every fetch noticeably")
	}
	if c.autoRefresh > 0 && c.autoRefresh < 100*time.Millisecond {
		errs = append(errs, "autoRefresh < 100ms may flood the target")
	}

	return errs
}
