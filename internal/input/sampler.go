package input

import (
	"context"
	"log/slog"
	"time"

	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/protocol"
)

// Offerer accepts outbound messages without blocking. link.Outbox satisfies it.
type Offerer interface {
	Offer(msg protocol.Message) bool
}

type SamplerOptions struct {
	Keyboard Source
	Gamepad  Source
	// Focus reports whether the operator surface has input focus. Nil means
	// never focused.
	Focus func() bool
	// Config is read on every tick so binding edits apply immediately.
	Config func() config.InputConfig
	Outbox Offerer
	Logger *slog.Logger
}

// Sampler emits one movementCommand per tick whether or not a session is up.
type Sampler struct {
	opts     SamplerOptions
	keyboard *guardedSource
	gamepad  *guardedSource
	logger   *slog.Logger
}

func NewSampler(opts SamplerOptions) *Sampler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Focus == nil {
		opts.Focus = func() bool { return false }
	}
	if opts.Config == nil {
		defaults := config.Default().Input
		opts.Config = func() config.InputConfig { return defaults }
	}
	logger := opts.Logger.With("component", "input.sampler")

	return &Sampler{
		opts:     opts,
		keyboard: newGuardedSource("keyboard", opts.Keyboard, logger),
		gamepad:  newGuardedSource("gamepad", opts.Gamepad, logger),
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled. The interval is fixed at start.
func (s *Sampler) Run(ctx context.Context) error {
	interval := s.opts.Config().SampleInterval()
	if interval <= 0 {
		interval = config.DefaultSampleInterval
	}
	s.logger.Info("input sampler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("input sampler stopped")
			return nil
		case <-ticker.C:
			v := s.Sample(ctx)
			if s.opts.Outbox != nil {
				// Refused while disconnected; the next tick sends a fresh vector anyway.
				_ = s.opts.Outbox.Offer(protocol.NewMovementCommand(v))
			}
		}
	}
}

// Sample computes one command vector.
func (s *Sampler) Sample(ctx context.Context) Vector {
	if !s.opts.Focus() {
		return Vector{}
	}

	cfg := s.opts.Config()
	timeout := cfg.PollTimeout()
	if timeout <= 0 {
		timeout = config.DefaultPollTimeout
	}

	kb := ApplyDeadZone(s.keyboard.poll(ctx, cfg, timeout), cfg.DeadZone)
	gp := ApplyDeadZone(s.gamepad.poll(ctx, cfg, timeout), cfg.DeadZone)

	return Merge(kb, gp)
}
