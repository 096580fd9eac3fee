package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/skobkin/rovlink/internal/config"
)

// The port is polled with a short read timeout so ReadMessage notices
// context cancellation between reads.
const serialReadTimeout = 300 * time.Millisecond

type serialOpenFunc func(portName string, mode *serial.Mode) (serial.Port, error)

// SerialDialer opens framed connections over a serial tether. The endpoint
// Host is the device path and SerialBaud the baud rate.
type SerialDialer struct {
	logger *slog.Logger
	open   serialOpenFunc
}

func NewSerialDialer(logger *slog.Logger) *SerialDialer {
	return &SerialDialer{logger: logger, open: serial.Open}
}

func (d *SerialDialer) Name() string {
	return string(config.ConnectorSerial)
}

func (d *SerialDialer) Dial(ctx context.Context, endpoint config.ConnectionConfig) (Conn, error) {
	portName := strings.TrimSpace(endpoint.Host)
	logger := transportLogger(d.logger, d.Name(), "port", portName, "baud", endpoint.SerialBaud)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if portName == "" {
		return nil, errors.New("serial port is empty")
	}
	if endpoint.SerialBaud <= 0 {
		return nil, fmt.Errorf("invalid serial baud rate: %d", endpoint.SerialBaud)
	}

	port, err := d.open(portName, &serial.Mode{BaudRate: endpoint.SerialBaud})
	if err != nil {
		logger.Warn("open failed", "error", err)
		return nil, fmt.Errorf("open serial port %q: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	logger.Info("connected")

	return &serialConn{port: port, name: portName, logger: logger}, nil
}

type serialConn struct {
	port   serial.Port
	name   string
	logger *slog.Logger

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *serialConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}
	payload, err := decodeFrame(func(buf []byte) error {
		return readFullContext(ctx, c.port, buf)
	})
	if err != nil {
		if c.closed.Load() {
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return nil, err
	}
	c.logger.Debug("read frame", "len", len(payload))

	return payload, nil
}

func (c *serialConn) WriteMessage(ctx context.Context, payload []byte) error {
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrNotConnected
	}
	if err := writeFullContext(ctx, c.port, frame); err != nil {
		c.logger.Warn("write frame failed", "payload_len", len(payload), "error", err)
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

func (c *serialConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.port.Close()
		c.logger.Info("closed")
	})

	return c.closeErr
}

func (c *serialConn) RemoteAddr() string {
	return c.name
}

// readFullContext treats zero-byte reads as a poll timeout and retries until
// buf is full or ctx is done.
func readFullContext(ctx context.Context, r io.Reader, buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return err
		}
	}

	return nil
}

func writeFullContext(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			return err
		}
	}

	return nil
}
