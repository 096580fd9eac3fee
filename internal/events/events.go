// Package events defines what the link layer reports outward: connection
// status, decoded vehicle messages and user-facing notifications.
package events

import (
	"time"

	"github.com/skobkin/rovlink/internal/protocol"
)

// ConnectionState describes the link lifecycle state shown to the operator.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a snapshot of the link. Latency is only meaningful when
// LatencyKnown is set, i.e. after the first pong of the current session.
type ConnectionStatus struct {
	State         ConnectionState
	Connected     bool
	Latency       time.Duration
	LatencyKnown  bool
	Target        string
	TransportName string
	SessionID     string
	Err           string
	Timestamp     time.Time
}

// VehicleMessage is a decoded inbound message forwarded to consumers.
type VehicleMessage struct {
	Type     protocol.Type
	Payload  any
	Received time.Time
}

// Notification is a toast requested by the vehicle.
type Notification struct {
	Toast    protocol.Toast
	Received time.Time
}

// Sink receives link events. Implementations must not block: the link calls
// them from its own goroutines.
type Sink interface {
	ConnectionStatus(status ConnectionStatus)
	Message(msg VehicleMessage)
	Notification(n Notification)
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) ConnectionStatus(ConnectionStatus) {}
func (NopSink) Message(VehicleMessage)            {}
func (NopSink) Notification(Notification)         {}
