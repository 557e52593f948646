package fetchkit

import (
	"context"
	"errors"
	"time"
)

// Refetch schedules a debounced fetch attempt with attempt counter zero. The
// very first attempt of an activation runs with zero delay to avoid a
// perceptible startup lag; later invocations wait the configured debounce.
// A no-op when the controller is inactive or in socket mode.
func (c *Controller) Refetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refetchLocked()
}

func (c *Controller) refetchLocked() {
	if !c.active || c.socketMode() {
		return
	}
	delay := c.debounce
	if c.firstFetch {
		delay = 0
		c.firstFetch = false
	}
	c.scheduleAttemptLocked(0, delay)
}

// Cancel aborts the in-flight call without altering loading or error state.
// The aborted attempt's completion is silently discarded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelInFlight != nil {
		c.cancelInFlight()
	}
}

// scheduleAttemptLocked assigns a fresh attempt identifier, records it as
// latest before arming the timer, and stops any previously armed timer so a
// superseded attempt can never fire alongside its successor.
func (c *Controller) scheduleAttemptLocked(attempt int, delay time.Duration) {
	c.latestID++
	id := c.latestID

	if c.attemptTimer != nil {
		c.attemptTimer.Stop()
	}

	var attemptID string
	if c.debug != nil && c.debug.RequestIDGen != nil {
		attemptID = c.debug.RequestIDGen()
	}

	if c.debugEnabled() && c.debug.LogAttempts {
		c.logger.Debug("Scheduling attempt", "attemptID", attemptID, "attempt", attempt, "delay", delay)
	}

	c.attemptTimer = time.AfterFunc(delay, func() {
		c.runAttempt(id, attempt, attemptID)
	})
}

// runAttempt is the timer body: it fires the transport call and applies the
// outcome under the latest-identifier guard.
func (c *Controller) runAttempt(id uint64, attempt int, attemptID string) {
	c.mu.Lock()
	if !c.active || id != c.latestID {
		c.mu.Unlock()
		return
	}

	c.loading = true
	c.lastErr = nil

	// Cancel and replace the shared in-flight token. Any older call still
	// on the wire observes a cancellation and discards itself.
	if c.cancelInFlight != nil {
		c.cancelInFlight()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelInFlight = cancel

	req := c.buildRequestLocked()
	timeout := c.timeout
	retryBudget := c.retry
	transport := c.transport
	metrics := c.metrics
	logger := c.logger
	debug := c.debug
	c.mu.Unlock()

	if debug != nil && debug.Enabled && debug.LogAttempts && logger != nil {
		logger.Debug("Starting attempt", "attemptID", attemptID, "method", req.Method, "url", req.URL, "attempt", attempt)
	}

	metrics.RecordAttemptStart(req.Method)
	start := time.Now()

	callCtx, done := context.WithTimeout(ctx, timeout)
	resp, err := transport.RoundTrip(callCtx, req)
	done()

	duration := time.Since(start)
	metrics.RecordAttemptEnd(req.Method)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err == nil:
		metrics.RecordAttempt(req.Method, resp.StatusCode, duration)
		if !c.active || id != c.latestID {
			metrics.RecordStaleDrop(req.Method)
			if c.debugEnabled() && c.debug.LogAttempts {
				c.logger.Debug("Dropping stale success", "attemptID", attemptID)
			}
			return
		}
		c.data = resp.Body
		c.loading = false

	case IsCanceled(err):
		// Superseded, canceled or torn down. Not a failure; state untouched.
		if c.debugEnabled() && c.debug.LogAttempts {
			c.logger.Debug("Attempt canceled", "attemptID", attemptID)
		}

	default:
		metrics.RecordAttempt(req.Method, statusCodeOf(err), duration)
		metrics.RecordError(errorTypeOf(err))

		if attempt < retryBudget {
			if !c.active || id != c.latestID {
				return
			}
			delay := c.retryStrategy.Calculate(attempt, retryBaseDelay, retryMaxDelay)
			metrics.RecordRetry(req.Method, attempt+1)
			if c.debugEnabled() && c.debug.LogRetries {
				c.logger.Info("Scheduling retry", "attemptID", attemptID, "attempt", attempt+1, "maxRetries", retryBudget, "backoff", delay)
			}
			// Retries bypass the debounce wait; only the backoff applies.
			c.scheduleAttemptLocked(attempt+1, delay)
			return
		}

		if !c.active || id != c.latestID {
			metrics.RecordStaleDrop(req.Method)
			return
		}
		c.lastErr = classifyAttemptError(err, attemptID, attempt, retryBudget)
		c.loading = false
		if c.debugEnabled() && c.debug.LogAttempts {
			c.logger.Warn("Attempt failed", "attemptID", attemptID, "attempt", attempt, "error", c.lastErr.Error())
		}
	}
}

// buildRequestLocked snapshots the current descriptor into a transport
// request. GET never carries a body; non-binary bodies get the JSON content
// type default unless the caller already set one.
func (c *Controller) buildRequestLocked() *Request {
	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	if !c.binaryBody {
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	query := make(map[string]string, len(c.queryParams))
	for k, v := range c.queryParams {
		query[k] = v
	}

	var body []byte
	if c.method != "GET" && len(c.body) > 0 {
		body = c.body
	}

	return &Request{
		Method:      c.method,
		URL:         joinURL(c.baseURL, c.url),
		Headers:     headers,
		QueryParams: query,
		Body:        body,
		BinaryBody:  c.binaryBody,
		Credentials: c.credentials,
	}
}

func (c *Controller) refreshLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.refreshTick()
		case <-stop:
			return
		}
	}
}

// refreshTick fires a refresh attempt immediately. Ticks bypass the debounce
// wait entirely; routing them through it would re-arm the timer on every tick
// and starve refreshes whenever the interval is at or below the debounce.
// They still take part in latest-identifier supersession like any trigger.
func (c *Controller) refreshTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.socketMode() {
		return
	}
	c.firstFetch = false
	c.scheduleAttemptLocked(0, 0)
}

// classifyAttemptError shapes a transport failure into the published *Error,
// applying the message preference: server-supplied message, then transport
// error text, then a generic fallback.
func classifyAttemptError(err error, attemptID string, attempt, maxRetries int) *Error {
	var fkErr *Error
	if errors.As(err, &fkErr) {
		out := *fkErr
		out.AttemptID = attemptID
		out.Attempt = attempt
		out.MaxRetries = maxRetries
		out.Message = publishedMessage(fkErr)
		if out.Timestamp.IsZero() {
			out.Timestamp = time.Now()
		}
		return &out
	}

	typ := ErrorTypeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		typ = ErrorTypeTimeout
	}
	return &Error{
		Type:       typ,
		Message:    publishedMessage(err),
		Cause:      err,
		AttemptID:  attemptID,
		Attempt:    attempt,
		MaxRetries: maxRetries,
		Timestamp:  time.Now(),
	}
}

func statusCodeOf(err error) int {
	var fkErr *Error
	if errors.As(err, &fkErr) {
		return fkErr.StatusCode
	}
	return 0
}

func errorTypeOf(err error) string {
	var fkErr *Error
	if errors.As(err, &fkErr) {
		return fkErr.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeNetwork
}
