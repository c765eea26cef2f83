package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketDialer connects to a gateway that frames the byte stream into
// binary WebSocket messages.
type WebSocketDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	Logger           *zap.Logger
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Transport, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("unable to dial %s: %w", d.URL, err)
	}

	logger.Debug("websocket connected", zap.String("url", d.URL))
	return newWebSocketConn(conn, d.ReadTimeout, logger), nil
}

type webSocketConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	logger      *zap.Logger
	// current is the unread remainder of the message being consumed.
	current io.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWebSocketConn(conn *websocket.Conn, readTimeout time.Duration, logger *zap.Logger) *webSocketConn {
	return &webSocketConn{conn: conn, readTimeout: readTimeout, logger: logger}
}

func (c *webSocketConn) Read(p []byte) (int, error) {
	for {
		if c.current == nil {
			if c.readTimeout > 0 {
				_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
			}
			kind, r, err := c.conn.NextReader()
			if err != nil {
				return 0, c.readErr(err)
			}
			if kind != websocket.BinaryMessage {
				c.logger.Debug("skipping non-binary message", zap.Int("type", kind))
				continue
			}
			c.current = r
		}

		n, err := c.current.Read(p)
		if errors.Is(err, io.EOF) {
			c.current = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

func (c *webSocketConn) readErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Debug("websocket closed", zap.Error(err))
		return io.EOF
	}
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

func (c *webSocketConn) ReadExact(p []byte) error {
	_, err := io.ReadFull(c, p)
	return err
}

func (c *webSocketConn) WriteAll(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (c *webSocketConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
