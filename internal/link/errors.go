// Package link keeps one resilient control connection to the vehicle: it dials,
// runs a heartbeat-monitored session, and reconnects on any fault or endpoint
// change until shut down.
package link

import (
	"errors"

	"github.com/skobkin/rovlink/internal/transport"
)

var (
	// ErrLivenessTimeout ends a session whose peer stopped answering even
	// though the socket reported no error.
	ErrLivenessTimeout = errors.New("liveness timeout: no heartbeat or pong from vehicle")
	// ErrRestartRequested ends a session deliberately after the endpoint changed.
	ErrRestartRequested = errors.New("endpoint changed: session restart requested")
	ErrPeerClosed       = transport.ErrPeerClosed
)
