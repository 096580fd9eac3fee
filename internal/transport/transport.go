// Package transport carries opaque message frames between the operator station
// and the vehicle. The link layer above it never sees bytes on the wire, only
// whole messages.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skobkin/rovlink/internal/config"
)

var (
	// ErrNotConnected is returned by reads and writes on a closed Conn.
	ErrNotConnected = errors.New("transport is not connected")
	// ErrPeerClosed means the remote side ended the connection in an orderly way.
	ErrPeerClosed = errors.New("peer closed the connection")
)

// Conn is one established connection. ReadMessage and WriteMessage may be
// called concurrently with each other, and Close unblocks both.
type Conn interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, payload []byte) error
	Close() error
	RemoteAddr() string
}

type Dialer interface {
	Name() string
	Dial(ctx context.Context, endpoint config.ConnectionConfig) (Conn, error)
}

// NewDialer returns the dialer for the configured connector.
func NewDialer(connector config.ConnectorType, logger *slog.Logger) (Dialer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch config.ConnectorType(strings.ToLower(strings.TrimSpace(string(connector)))) {
	case config.ConnectorWebSocket, "":
		return NewWebSocketDialer(logger), nil
	case config.ConnectorTCP:
		return NewTCPDialer(logger), nil
	case config.ConnectorSerial:
		return NewSerialDialer(logger), nil
	default:
		return nil, fmt.Errorf("unsupported connector: %q", connector)
	}
}

// DialerFunc adapts a function to Dialer; handy for tests and custom links.
type DialerFunc func(ctx context.Context, endpoint config.ConnectionConfig) (Conn, error)

func (f DialerFunc) Name() string { return "func" }

func (f DialerFunc) Dial(ctx context.Context, endpoint config.ConnectionConfig) (Conn, error) {
	return f(ctx, endpoint)
}
