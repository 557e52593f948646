package fetchkit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// SendMessage serializes v and sends it over the open connection. While the
// connection is not open the message is appended to the pending outbound
// queue instead; queued messages are drained in FIFO order the instant the
// state becomes open. A write failure parks the message back at the head of
// the queue for the post-reconnect drain. Never drops a message, never
// blocks the caller on a closed connection, safe to call from any number of
// goroutines. Raw []byte and json.RawMessage payloads are sent as-is;
// everything else is JSON-encoded.
func (c *Controller) SendMessage(v interface{}) error {
	c.mu.Lock()

	if !c.socketMode() {
		c.mu.Unlock()
		return ErrNoSocket
	}

	if c.socketState != SocketOpen || c.conn == nil {
		c.pending = append(c.pending, v)
		depth := len(c.pending)
		c.metrics.RecordQueueDepth(c.socketURL, depth)
		if c.debugEnabled() && c.debug.LogQueue {
			c.logger.Debug("Queued outbound message", "url", c.socketURL, "depth", depth, "state", c.socketState.String())
		}
		c.mu.Unlock()
		return nil
	}

	conn := c.conn
	url := c.socketURL
	metrics := c.metrics
	c.mu.Unlock()

	data, err := encodeMessage(v)
	if err != nil {
		return &Error{Type: ErrorTypeParse, Message: "message serialization failed", Cause: err, URL: url, Timestamp: time.Now()}
	}

	c.sendMu.Lock()
	werr := conn.Write(data)
	c.sendMu.Unlock()

	if werr != nil {
		// The handle is dying; its reader will notice and reconnect. Park
		// the payload at the queue head so the drain keeps FIFO order.
		c.mu.Lock()
		if c.active {
			c.pending = append([]interface{}{v}, c.pending...)
			c.metrics.RecordQueueDepth(url, len(c.pending))
			if c.debugEnabled() && c.debug.LogQueue {
				c.logger.Warn("Send failed, message parked for redelivery", "url", url, "error", werr.Error())
			}
		}
		c.mu.Unlock()
		return nil
	}
	metrics.RecordMessageSent(url)
	return nil
}

// CloseSocket closes the connection handle if present, clears it and sets
// the state to closed. Idempotent; a manual close does not schedule a
// reconnect. Calling it when already closed is a no-op.
func (c *Controller) CloseSocket() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.socketMode() {
		return
	}
	c.closeSocketLocked()
}

func (c *Controller) closeSocketLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	// Invalidate any reader goroutine still draining the old handle.
	c.connGen++
	c.dialing = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.socketMode() {
		c.socketState = SocketClosed
		c.metrics.RecordSocketState(c.socketURL, SocketClosed)
	}
}

// connectLocked starts a dial unless a handle already exists or a handshake
// is in flight, so duplicate concurrent handshakes are impossible.
func (c *Controller) connectLocked() {
	if !c.active || c.conn != nil || c.dialing {
		return
	}
	c.dialing = true
	c.socketState = SocketConnecting
	c.metrics.RecordSocketState(c.socketURL, SocketConnecting)
	c.connGen++

	if c.debugEnabled() && c.debug.LogSocket {
		c.logger.Debug("Dialing", "url", c.socketURL, "reconnects", c.reconnects)
	}

	go c.dialAndServe(c.connGen, c.socketURL, c.dialer)
}

// dialAndServe performs the handshake and then pumps inbound frames until
// the connection dies or the generation is invalidated.
func (c *Controller) dialAndServe(gen uint64, url string, dialer Dialer) {
	conn, err := dialer.Dial(context.Background(), url)

	c.mu.Lock()
	if !c.active || gen != c.connGen {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		// A failed handshake surfaces as an error event followed by the
		// close handling, mirroring the transport's own event order.
		c.dialing = false
		c.socketState = SocketError
		c.metrics.RecordSocketState(url, SocketError)
		if c.debugEnabled() && c.debug.LogSocket {
			c.logger.Warn("Dial failed", "url", url, "error", err.Error())
		}
		c.handleSocketCloseLocked(url)
		c.mu.Unlock()
		return
	}

	c.dialing = false
	c.conn = conn
	c.reconnects = 0
	c.socketState = SocketOpen
	c.metrics.RecordSocketState(url, SocketOpen)
	if c.debugEnabled() && c.debug.LogSocket {
		c.logger.Info("Connection open", "url", url, "queued", len(c.pending))
	}
	c.flushPendingLocked(url)
	c.mu.Unlock()

	for {
		data, rerr := conn.Read()

		c.mu.Lock()
		if !c.active || gen != c.connGen {
			c.mu.Unlock()
			return
		}
		if rerr != nil {
			if !isNormalClose(rerr) {
				// Transport error event; close handling is independent.
				c.socketState = SocketError
				c.metrics.RecordSocketState(url, SocketError)
				if c.debugEnabled() && c.debug.LogSocket {
					c.logger.Warn("Connection error", "url", url, "error", rerr.Error())
				}
			}
			c.handleSocketCloseLocked(url)
			c.mu.Unlock()
			return
		}
		c.consumeMessageLocked(url, data)
		c.mu.Unlock()
	}
}

// handleSocketCloseLocked clears the handle, transitions to closed and, when
// the owner is alive and the budget allows, schedules a reconnect after
// 1s * min(counter, 30). The budget is 2x the configured retry count; it is
// reset on every successful open.
func (c *Controller) handleSocketCloseLocked(url string) {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.dialing = false
	c.connGen++
	c.socketState = SocketClosed
	c.metrics.RecordSocketState(url, SocketClosed)

	if !c.active {
		return
	}

	budget := c.retry * 2
	if c.reconnects >= budget {
		if c.debugEnabled() && c.debug.LogSocket {
			c.logger.Warn("Reconnect budget exhausted", "url", url, "reconnects", c.reconnects, "budget", budget)
		}
		return
	}

	c.reconnects++
	delay := c.reconnectStrategy.Calculate(c.reconnects, reconnectBaseDelay, reconnectMaxDelay)
	c.metrics.RecordReconnect(url)
	if c.debugEnabled() && c.debug.LogSocket {
		c.logger.Info("Scheduling reconnect", "url", url, "attempt", c.reconnects, "budget", budget, "backoff", delay)
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.active {
			return
		}
		c.connectLocked()
	})
}

// consumeMessageLocked validates an inbound frame and publishes it. A
// malformed payload surfaces a parse error without disturbing the connection
// state.
func (c *Controller) consumeMessageLocked(url string, data []byte) {
	if !gjson.ValidBytes(data) {
		c.lastErr = &Error{
			Type:      ErrorTypeParse,
			Message:   "invalid inbound message payload",
			URL:       url,
			Timestamp: time.Now(),
		}
		c.metrics.RecordError(ErrorTypeParse)
		if c.debugEnabled() && c.debug.LogSocket {
			c.logger.Warn("Dropping malformed inbound message", "url", url, "bytes", len(data))
		}
		return
	}
	c.lastMessage = json.RawMessage(append([]byte(nil), data...))
	c.metrics.RecordMessageReceived(url)
}

// flushPendingLocked drains the queue in FIFO order, serializing each entry
// at drain time. On a write failure the unsent tail stays queued; the dying
// connection's close handling will retry it after the reconnect.
func (c *Controller) flushPendingLocked(url string) {
	if len(c.pending) == 0 {
		return
	}
	queued := c.pending
	c.pending = nil

	for i, v := range queued {
		data, err := encodeMessage(v)
		if err != nil {
			if c.debugEnabled() && c.debug.LogQueue {
				c.logger.Warn("Dropping unserializable queued message", "url", url, "error", err.Error())
			}
			continue
		}
		c.sendMu.Lock()
		werr := c.conn.Write(data)
		c.sendMu.Unlock()
		if werr != nil {
			c.pending = append([]interface{}{}, queued[i:]...)
			if c.debugEnabled() && c.debug.LogQueue {
				c.logger.Warn("Queue drain interrupted", "url", url, "remaining", len(c.pending), "error", werr.Error())
			}
			break
		}
		c.metrics.RecordMessageSent(url)
	}
	c.metrics.RecordQueueDepth(url, len(c.pending))
}

func encodeMessage(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case json.RawMessage:
		return m, nil
	case []byte:
		return m, nil
	default:
		return json.Marshal(v)
	}
}
