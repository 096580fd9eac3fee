package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/skobkin/rovlink/internal/config"
)

// TCPDialer opens framed connections over plain TCP, for bench tethers that
// have no HTTP stack.
type TCPDialer struct {
	logger *slog.Logger
}

func NewTCPDialer(logger *slog.Logger) *TCPDialer {
	return &TCPDialer{logger: logger}
}

func (d *TCPDialer) Name() string {
	return string(config.ConnectorTCP)
}

func (d *TCPDialer) Dial(ctx context.Context, endpoint config.ConnectionConfig) (Conn, error) {
	host := strings.TrimSpace(endpoint.Host)
	if host == "" {
		return nil, errors.New("tcp host is empty")
	}
	target := net.JoinHostPort(host, strconv.Itoa(endpoint.Port))
	logger := transportLogger(d.logger, d.Name(), "target", target)

	var dialer net.Dialer
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		logger.Warn("connect failed", "error", err)
		return nil, fmt.Errorf("dial tcp %s: %w", target, err)
	}
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return newStreamConn(conn, conn.RemoteAddr().String(), logger), nil
}

// streamConn frames messages over any net.Conn.
type streamConn struct {
	conn   net.Conn
	remote string
	logger *slog.Logger

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStreamConn(conn net.Conn, remote string, logger *slog.Logger) *streamConn {
	return &streamConn{conn: conn, remote: remote, logger: logger}
}

func (c *streamConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}
	// A zero deadline clears the previous one.
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetReadDeadline(deadline)

	payload, err := decodeFrame(readerFill(c.conn))
	if err != nil {
		if c.closed.Load() {
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrPeerClosed, err)
		}
		return nil, err
	}
	c.logger.Debug("read frame", "len", len(payload))

	return payload, nil
}

func (c *streamConn) WriteMessage(ctx context.Context, payload []byte) error {
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrNotConnected
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	if _, err := c.conn.Write(frame); err != nil {
		c.logger.Warn("write frame failed", "payload_len", len(payload), "error", err)
		return fmt.Errorf("write frame: %w", err)
	}
	c.logger.Debug("write frame", "payload_len", len(payload))

	return nil
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
		c.logger.Info("closed")
	})

	return c.closeErr
}

func (c *streamConn) RemoteAddr() string {
	return c.remote
}
