package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/events"
	"github.com/skobkin/rovlink/internal/protocol"
	"github.com/skobkin/rovlink/internal/router"
)

var errFakeClosed = errors.New("fake connection closed")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn is an in-memory transport.Conn. Frames pushed to inbound are read
// by the session; written frames are collected.
type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-c.inbound:
		return raw, nil
	case <-c.closed:
		return nil, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(_ context.Context, payload []byte) error {
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), payload...))

	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string {
	return "fake"
}

func (c *fakeConn) push(t *testing.T, msg protocol.Message) {
	t.Helper()
	raw, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	c.inbound <- raw
}

func (c *fakeConn) writtenMessages(t *testing.T) []protocol.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]protocol.Message, 0, len(c.written))
	for _, raw := range c.written {
		msg, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("decode written frame %s: %v", raw, err)
		}
		out = append(out, msg)
	}

	return out
}

func (c *fakeConn) waitForWritten(t *testing.T, want protocol.Type, count int) []protocol.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var matched []protocol.Message
		for _, msg := range c.writtenMessages(t) {
			if msg.Type == want {
				matched = append(matched, msg)
			}
		}
		if len(matched) >= count {
			return matched
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %s frames, got %d", count, want, len(matched))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type recordingSink struct {
	mu            sync.Mutex
	statuses      []events.ConnectionStatus
	messages      []events.VehicleMessage
	notifications []events.Notification
}

func (s *recordingSink) ConnectionStatus(status events.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) Message(msg events.VehicleMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) Notification(n events.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

func (s *recordingSink) statusSnapshot() []events.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]events.ConnectionStatus(nil), s.statuses...)
}

// waitForStatus returns the first status at or after index from that matches.
func (s *recordingSink) waitForStatus(t *testing.T, from int, match func(events.ConnectionStatus) bool) (events.ConnectionStatus, int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		statuses := s.statusSnapshot()
		for i := from; i < len(statuses); i++ {
			if match(statuses[i]) {
				return statuses[i], i
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for status, got %+v", statuses)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type sessionHarness struct {
	session   *Session
	conn      *fakeConn
	sink      *recordingSink
	outbox    *Outbox
	endpoints *EndpointStore
	status    *StatusTracker
}

func newSessionHarness(cfg SessionConfig, now func() time.Time) *sessionHarness {
	if now == nil {
		now = time.Now
	}
	sink := &recordingSink{}
	conn := newFakeConn()
	outbox := NewOutbox(4)
	endpoints := NewEndpointStore(config.Default().Connection)
	status := NewStatusTracker(sink, now)
	r := router.New(discardLogger())
	r.RegisterSink(sink)
	_, generation := endpoints.Current()

	return &sessionHarness{
		session: &Session{
			id:            "test-session",
			conn:          conn,
			cfg:           cfg,
			router:        r,
			outbox:        outbox,
			status:        status,
			endpoints:     endpoints,
			generation:    generation,
			target:        "fake",
			transportName: "fake",
			clock:         NewLivenessClock(now),
			now:           now,
			logger:        discardLogger(),
		},
		conn:      conn,
		sink:      sink,
		outbox:    outbox,
		endpoints: endpoints,
		status:    status,
	}
}

// start runs the session in the background; the returned channel yields its result.
func (h *sessionHarness) start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- h.session.Run(ctx)
	}()

	return done
}

func waitResult(t *testing.T, done <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(within):
		t.Fatalf("session did not end within %v", within)
	}

	return nil
}

func quietSessionConfig() SessionConfig {
	return SessionConfig{
		HeartbeatInterval: time.Hour,
		LivenessTimeout:   time.Hour,
		LivenessCheck:     10 * time.Millisecond,
		WriteTimeout:      time.Second,
		ClientName:        "rovlink-test",
		ClientVersion:     "test",
	}
}
