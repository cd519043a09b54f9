package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// maxFrameSize bounds a single inbound frame.
const maxFrameSize = 1 << 20 // 1MB

// Conn is one live real-time connection.
type Conn interface {
	// Read blocks until the next inbound frame arrives.
	// A remote close is reported as *CloseError.
	Read(ctx context.Context) (string, error)

	// Write sends text as a single frame.
	Write(ctx context.Context, text string) error

	// Close performs the closing handshake.
	Close(reason string) error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// CloseError reports that the peer closed the connection with a close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed by peer: status=%d reason=%q", e.Code, e.Reason)
}

// IsRemoteClose reports whether err came from a peer close frame.
func IsRemoteClose(err error) bool {
	var ce *CloseError
	return errors.As(err, &ce)
}

// WebSocketDialer dials with github.com/coder/websocket.
type WebSocketDialer struct {
	HTTPClient *http.Client
	Header     http.Header
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redactToken(url), err)
	}
	c.SetReadLimit(maxFrameSize)
	return &wsConn{conn: c}, nil
}

// wsConn adapts websocket.Conn to Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) (string, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return "", &CloseError{Code: int(ce.Code), Reason: ce.Reason}
		}
		return "", err
	}
	return string(data), nil
}

func (w *wsConn) Write(ctx context.Context, text string) error {
	return w.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (w *wsConn) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, reason)
}
