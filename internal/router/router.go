// Package router turns inbound frames into typed messages and hands each one
// to exactly one handler.
package router

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/skobkin/rovlink/internal/events"
	"github.com/skobkin/rovlink/internal/protocol"
)

// Handler consumes one decoded message. It must return quickly; slow work is
// handed off (e.g. published onto the bus).
type Handler func(protocol.Message)

type Router struct {
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[protocol.Type]Handler
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default().With("component", "router")
	}

	return &Router{
		logger:   logger,
		now:      time.Now,
		handlers: make(map[protocol.Type]Handler),
	}
}

// Register installs h for t, replacing any previous handler.
func (r *Router) Register(t protocol.Type, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, t)
		return
	}
	r.handlers[t] = h
}

// RegisterSink routes every inbound vehicle message type to sink.
func (r *Router) RegisterSink(sink events.Sink) {
	forward := func(msg protocol.Message) {
		sink.Message(events.VehicleMessage{Type: msg.Type, Payload: msg.Payload, Received: r.now()})
	}
	for _, t := range []protocol.Type{
		protocol.TypeTelemetry,
		protocol.TypeStatusUpdate,
		protocol.TypeConfig,
		protocol.TypeRegulatorSuggestions,
		protocol.TypeFirmwareVersion,
		protocol.TypeLogMessage,
	} {
		r.Register(t, forward)
	}

	r.Register(protocol.TypeShowToast, func(msg protocol.Message) {
		toast, ok := msg.Payload.(protocol.Toast)
		if !ok {
			return
		}
		sink.Notification(events.Notification{Toast: toast, Received: r.now()})
	})
}

func (r *Router) Decode(raw []byte) (protocol.Message, error) {
	return protocol.Decode(raw)
}

func (r *Router) Encode(msg protocol.Message) ([]byte, error) {
	return protocol.Encode(msg)
}

// Dispatch reports whether a handler accepted msg. A panicking handler is
// logged and counts as not handled.
func (r *Router) Dispatch(msg protocol.Message) (handled bool) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("no handler for message", "type", msg.Type)
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("message handler panicked",
				"type", msg.Type,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			handled = false
		}
	}()
	h(msg)

	return true
}
