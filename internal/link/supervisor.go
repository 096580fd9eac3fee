package link

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/router"
	"github.com/skobkin/rovlink/internal/transport"
)

const DefaultClientName = "rovlink"

// DialerFactory picks the transport for a connector.
type DialerFactory func(connector config.ConnectorType) (transport.Dialer, error)

type SupervisorOptions struct {
	Endpoints *EndpointStore
	Outbox    *Outbox
	Status    *StatusTracker
	Router    *router.Router
	Dialers   DialerFactory
	// Settings is read before every attempt so timing edits apply on reconnect.
	Settings      func() config.LinkConfig
	ClientName    string
	ClientVersion string
	Now           func() time.Time
	Logger        *slog.Logger
}

// Supervisor keeps at most one session alive and retries after every failure
// until its context is cancelled.
type Supervisor struct {
	opts          SupervisorOptions
	logger        *slog.Logger
	sessionLogger *slog.Logger
}

func NewSupervisor(opts SupervisorOptions) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Settings == nil {
		defaults := config.Default().Link
		opts.Settings = func() config.LinkConfig { return defaults }
	}
	if opts.Dialers == nil {
		logger := opts.Logger
		opts.Dialers = func(connector config.ConnectorType) (transport.Dialer, error) {
			return transport.NewDialer(connector, logger)
		}
	}
	if opts.ClientName == "" {
		opts.ClientName = DefaultClientName
	}
	if opts.Status == nil {
		opts.Status = NewStatusTracker(nil, opts.Now)
	}
	if opts.Outbox == nil {
		opts.Outbox = NewOutbox(config.DefaultOutboxCapacity)
	}
	if opts.Router == nil {
		opts.Router = router.New(opts.Logger.With("component", "router"))
	}

	return &Supervisor{
		opts:          opts,
		logger:        opts.Logger.With("component", "link.supervisor"),
		sessionLogger: opts.Logger.With("component", "link.session"),
	}
}

func (s *Supervisor) Outbox() *Outbox {
	return s.opts.Outbox
}

func (s *Supervisor) Status() *StatusTracker {
	return s.opts.Status
}

// Run blocks until ctx is cancelled. Link errors are logged and retried, never
// returned.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		endpoint, generation := s.opts.Endpoints.Current()
		settings := s.opts.Settings()
		settings = withLinkDefaults(settings)

		err := s.attempt(ctx, endpoint, generation, settings)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrRestartRequested) {
			s.logger.Info("endpoint changed, reconnecting now")
			continue
		}
		if !s.waitBackoff(ctx, settings.ReconnectBackoff()) {
			return nil
		}
	}
}

func (s *Supervisor) attempt(ctx context.Context, endpoint config.ConnectionConfig, generation uint64, settings config.LinkConfig) error {
	target := endpoint.Target()
	logger := s.logger.With("target", target, "connector", endpoint.Connector)

	dialer, err := s.opts.Dialers(endpoint.Connector)
	if err != nil {
		logger.Error("no transport for connector", "error", err)
		s.opts.Status.Disconnected(target, string(endpoint.Connector), err)
		return err
	}

	s.opts.Status.Connecting(target, dialer.Name())
	dialCtx, cancel := context.WithTimeout(ctx, settings.ConnectTimeout())
	conn, err := dialer.Dial(dialCtx, endpoint)
	cancel()
	if err != nil {
		logger.Warn("connect failed", "error", err)
		s.opts.Status.Disconnected(target, dialer.Name(), err)
		return err
	}

	session := s.newSession(conn, endpoint, generation, dialer.Name(), settings)
	err = session.Run(ctx)
	s.opts.Status.Disconnected(target, dialer.Name(), err)

	switch {
	case errors.Is(err, ErrRestartRequested), isShutdown(err):
		logger.Info("session closed", "session_id", session.ID(), "reason", err)
	case errors.Is(err, ErrPeerClosed):
		logger.Warn("vehicle closed the session", "session_id", session.ID(), "error", err)
	default:
		logger.Warn("session failed", "session_id", session.ID(), "error", err)
	}

	return err
}

func (s *Supervisor) newSession(conn transport.Conn, endpoint config.ConnectionConfig, generation uint64, transportName string, settings config.LinkConfig) *Session {
	id := uuid.NewString()

	return &Session{
		id:   id,
		conn: conn,
		cfg: SessionConfig{
			HeartbeatInterval: settings.HeartbeatInterval(),
			LivenessTimeout:   settings.LivenessTimeout(),
			LivenessCheck:     settings.LivenessCheck(),
			WriteTimeout:      settings.WriteTimeout(),
			ClientName:        s.opts.ClientName,
			ClientVersion:     s.opts.ClientVersion,
		},
		router:        s.opts.Router,
		outbox:        s.opts.Outbox,
		status:        s.opts.Status,
		endpoints:     s.opts.Endpoints,
		generation:    generation,
		target:        endpoint.Target(),
		transportName: transportName,
		clock:         NewLivenessClock(s.opts.Now),
		now:           s.opts.Now,
		logger:        s.sessionLogger.With("session_id", id, "target", endpoint.Target()),
	}
}

// waitBackoff returns false on shutdown. An endpoint change cuts the wait short.
func (s *Supervisor) waitBackoff(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-s.opts.Endpoints.Changed():
		s.logger.Info("endpoint changed during backoff, retrying now")
		return true
	}
}

func withLinkDefaults(l config.LinkConfig) config.LinkConfig {
	def := config.Default().Link
	fill := func(v *int, fallback int) {
		if *v <= 0 {
			*v = fallback
		}
	}
	fill(&l.HeartbeatIntervalMS, def.HeartbeatIntervalMS)
	fill(&l.LivenessTimeoutMS, def.LivenessTimeoutMS)
	fill(&l.LivenessCheckMS, def.LivenessCheckMS)
	fill(&l.ReconnectBackoffMS, def.ReconnectBackoffMS)
	fill(&l.ConnectTimeoutMS, def.ConnectTimeoutMS)
	fill(&l.WriteTimeoutMS, def.WriteTimeoutMS)
	fill(&l.OutboxCapacity, def.OutboxCapacity)

	return l
}
