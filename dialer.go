package fetchkit

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer is the default Dialer built on gorilla/websocket. The zero
// value uses websocket.DefaultDialer.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
}

// Dial performs the handshake. The handshake honors ctx; the returned Conn
// does not carry per-frame deadlines.
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	wd := d.Dialer
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	conn, resp, err := wd.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &Error{Type: ErrorTypeSocket, Message: "handshake failed", Cause: err, URL: rawURL, Timestamp: time.Now()}
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Write(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// isNormalClose reports whether a read error represents an orderly shutdown
// rather than a transport error event.
func isNormalClose(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
