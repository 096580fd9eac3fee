package link

import (
	"errors"
	"sync"
	"time"

	"github.com/skobkin/rovlink/internal/events"
)

// StatusTracker owns the connection status and forwards every transition to
// the sink. The sink is called outside the lock.
type StatusTracker struct {
	sink events.Sink
	now  func() time.Time

	mu     sync.Mutex
	status events.ConnectionStatus
}

func NewStatusTracker(sink events.Sink, now func() time.Time) *StatusTracker {
	if sink == nil {
		sink = events.NopSink{}
	}
	if now == nil {
		now = time.Now
	}

	return &StatusTracker{
		sink: sink,
		now:  now,
		status: events.ConnectionStatus{
			State:     events.ConnectionStateDisconnected,
			Timestamp: now(),
		},
	}
}

func (t *StatusTracker) Current() events.ConnectionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status
}

func (t *StatusTracker) Connecting(target, transportName string) {
	t.update(func(s *events.ConnectionStatus) bool {
		// Leaving connected goes through Disconnected only.
		if s.State == events.ConnectionStateConnected {
			return false
		}
		*s = events.ConnectionStatus{
			State:         events.ConnectionStateConnecting,
			Target:        target,
			TransportName: transportName,
		}
		return true
	})
}

func (t *StatusTracker) Connected(target, transportName, sessionID string) {
	t.update(func(s *events.ConnectionStatus) bool {
		*s = events.ConnectionStatus{
			State:         events.ConnectionStateConnected,
			Connected:     true,
			Target:        target,
			TransportName: transportName,
			SessionID:     sessionID,
		}
		return true
	})
}

// Latency records a round-trip sample; ignored unless connected.
func (t *StatusTracker) Latency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.update(func(s *events.ConnectionStatus) bool {
		if s.State != events.ConnectionStateConnected {
			return false
		}
		s.Latency = d
		s.LatencyKnown = true
		return true
	})
}

// Disconnected records the end of an attempt or session. Deliberate endings
// (restart, shutdown) carry no error text.
func (t *StatusTracker) Disconnected(target, transportName string, cause error) {
	t.update(func(s *events.ConnectionStatus) bool {
		*s = events.ConnectionStatus{
			State:         events.ConnectionStateDisconnected,
			Target:        target,
			TransportName: transportName,
		}
		if cause != nil && !errors.Is(cause, ErrRestartRequested) && !isShutdown(cause) {
			s.Err = cause.Error()
		}
		return true
	})
}

func (t *StatusTracker) update(apply func(*events.ConnectionStatus) bool) {
	t.mu.Lock()
	next := t.status
	if !apply(&next) {
		t.mu.Unlock()
		return
	}
	next.Timestamp = t.now()
	t.status = next
	t.mu.Unlock()

	t.sink.ConnectionStatus(next)
}
