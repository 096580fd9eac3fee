package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/rovlink/internal/protocol"
	"github.com/skobkin/rovlink/internal/router"
	"github.com/skobkin/rovlink/internal/transport"
)

// SessionConfig carries the timing for one session.
type SessionConfig struct {
	HeartbeatInterval time.Duration
	LivenessTimeout   time.Duration
	LivenessCheck     time.Duration
	WriteTimeout      time.Duration
	ClientName        string
	ClientVersion     string
}

// Session runs one established connection until it fails, goes silent, the
// endpoint changes or ctx is cancelled.
type Session struct {
	id            string
	conn          transport.Conn
	cfg           SessionConfig
	router        *router.Router
	outbox        *Outbox
	status        *StatusTracker
	endpoints     *EndpointStore
	generation    uint64
	target        string
	transportName string
	clock         *LivenessClock
	now           func() time.Time
	logger        *slog.Logger

	lastPing int64
}

func (s *Session) ID() string {
	return s.id
}

// Run returns why the session ended: ErrLivenessTimeout, ErrRestartRequested,
// a wrapped transport error, or the cause of ctx.
func (s *Session) Run(parent context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(parent)
	var workers sync.WaitGroup
	defer func() {
		cancel(err)
		_ = s.conn.Close()
		workers.Wait()
		s.outbox.deactivate()
	}()

	s.outbox.activate()
	s.clock.Touch()
	if err := s.send(ctx, protocol.NewHello(s.cfg.ClientName, s.cfg.ClientVersion, s.id)); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	s.status.Connected(s.target, s.transportName, s.id)
	s.logger.Info("session established", "remote", s.conn.RemoteAddr())

	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	workers.Add(2)
	go func() {
		defer workers.Done()
		s.runReader(ctx, inbound, readErr)
	}()
	go func() {
		defer workers.Done()
		s.runLivenessChecker(ctx, cancel)
	}()

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-readErr:
			// A cancelled ctx also fails the read; report why it was cancelled.
			if cause := context.Cause(ctx); cause != nil {
				return cause
			}
			return fmt.Errorf("read: %w", err)
		case raw := <-inbound:
			if err := s.handleInbound(ctx, raw); err != nil {
				return err
			}
		case msg := <-s.outbox.receive():
			if err := s.send(ctx, msg); err != nil {
				return err
			}
		case <-heartbeat.C:
			if err := s.sendPing(ctx); err != nil {
				return err
			}
		case <-s.endpoints.Changed():
			if s.endpoints.Generation() != s.generation {
				return ErrRestartRequested
			}
			s.logger.Debug("ignoring endpoint signal for current generation", "generation", s.generation)
		}
	}
}

func (s *Session) runReader(ctx context.Context, inbound chan<- []byte, readErr chan<- error) {
	for {
		raw, err := s.conn.ReadMessage(ctx)
		if err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- raw:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) runLivenessChecker(ctx context.Context, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(s.cfg.LivenessCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.clock.Expired(s.cfg.LivenessTimeout) {
				s.logger.Warn("vehicle went silent", "silence", s.clock.Since(), "timeout", s.cfg.LivenessTimeout)
				cancel(ErrLivenessTimeout)
				return
			}
		}
	}
}

// handleInbound answers link-level messages itself and routes the rest.
// Decode failures never end the session.
func (s *Session) handleInbound(ctx context.Context, raw []byte) error {
	msg, err := s.router.Decode(raw)
	if err != nil {
		s.logger.Warn("dropping undecodable frame", "error", err, "len", len(raw))
		return nil
	}

	switch msg.Type {
	case protocol.TypeHeartbeat:
		s.clock.Touch()
		return s.send(ctx, msg)
	case protocol.TypePong:
		s.clock.Touch()
		ts := msg.Payload.(protocol.Timestamp)
		latency := s.now().Sub(time.UnixMilli(ts.Timestamp))
		if latency < 0 {
			latency = 0
		}
		s.status.Latency(latency)
		return nil
	case protocol.TypePing:
		ts := msg.Payload.(protocol.Timestamp)
		return s.send(ctx, protocol.NewPong(ts.Timestamp))
	default:
		s.router.Dispatch(msg)
		return nil
	}
}

// sendPing stamps pings with strictly increasing unix milliseconds.
func (s *Session) sendPing(ctx context.Context) error {
	ts := s.now().UnixMilli()
	if ts <= s.lastPing {
		ts = s.lastPing + 1
	}
	s.lastPing = ts

	return s.send(ctx, protocol.NewPing(ts))
}

// send drops messages that fail to encode; only write failures end the session.
func (s *Session) send(ctx context.Context, msg protocol.Message) error {
	raw, err := s.router.Encode(msg)
	if err != nil {
		s.logger.Warn("dropping unencodable message", "type", msg.Type, "error", err)
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.conn.WriteMessage(writeCtx, raw); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}

	return nil
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
