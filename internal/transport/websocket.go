package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skobkin/rovlink/internal/config"
)

const wsCloseGrace = time.Second

// WebSocketDialer connects to the vehicle at ws://host:port/ and exchanges
// one message per text frame.
type WebSocketDialer struct {
	logger *slog.Logger
	dialer *websocket.Dialer
}

func NewWebSocketDialer(logger *slog.Logger) *WebSocketDialer {
	return &WebSocketDialer{
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            nil,
			HandshakeTimeout: config.DefaultConnectTimeout,
		},
	}
}

func (d *WebSocketDialer) Name() string {
	return string(config.ConnectorWebSocket)
}

func (d *WebSocketDialer) Dial(ctx context.Context, endpoint config.ConnectionConfig) (Conn, error) {
	u, err := WebSocketURL(endpoint)
	if err != nil {
		return nil, err
	}
	logger := transportLogger(d.logger, d.Name(), "target", u)

	logger.Info("connecting")
	conn, resp, err := d.dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		logger.Warn("connect failed", "error", err)
		return nil, fmt.Errorf("dial websocket %s: %w", u, err)
	}
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return &wsConn{conn: conn, remote: conn.RemoteAddr().String(), logger: logger}, nil
}

// WebSocketURL builds the vehicle URL for endpoint.
func WebSocketURL(endpoint config.ConnectionConfig) (string, error) {
	host := strings.TrimSpace(endpoint.Host)
	if host == "" {
		return "", errors.New("websocket host is empty")
	}
	if endpoint.Port <= 0 || endpoint.Port > 65535 {
		return "", fmt.Errorf("invalid websocket port: %d", endpoint.Port)
	}

	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(endpoint.Port)), Path: "/"}

	return u.String(), nil
}

type wsConn struct {
	conn   *websocket.Conn
	remote string
	logger *slog.Logger

	// gorilla allows one concurrent writer.
	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetReadDeadline(deadline)

	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: %v", ErrPeerClosed, err)
			}
			return nil, err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		c.logger.Debug("read message", "len", len(payload))

		return payload, nil
	}
}

func (c *wsConn) WriteMessage(ctx context.Context, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrNotConnected
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Warn("write message failed", "payload_len", len(payload), "error", err)
		return fmt.Errorf("write message: %w", err)
	}
	c.logger.Debug("write message", "payload_len", len(payload))

	return nil
}

// Close sends a close frame when possible, then drops the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(wsCloseGrace),
		)
		c.closeErr = c.conn.Close()
		c.logger.Info("closed")
	})

	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
