package input

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/skobkin/rovlink/internal/config"
)

type pollResult struct {
	vector Vector
	err    error
}

// guardedSource polls one device. A poll that panics, fails or overruns its
// timeout yields the zero vector, and a poll that never returns blocks only
// later polls of the same device.
type guardedSource struct {
	name   string
	src    Source
	logger *slog.Logger

	inFlight atomic.Bool
	// failing is touched by the sampler goroutine only.
	failing bool
}

func newGuardedSource(name string, src Source, logger *slog.Logger) *guardedSource {
	return &guardedSource{
		name:   name,
		src:    src,
		logger: logger.With("device", name),
	}
}

func (g *guardedSource) poll(ctx context.Context, cfg config.InputConfig, timeout time.Duration) Vector {
	if g.src == nil {
		return Vector{}
	}
	if !g.inFlight.CompareAndSwap(false, true) {
		g.fail("previous poll still running", nil)
		return Vector{}
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	result := make(chan pollResult, 1)
	go func() {
		res := g.safePoll(pollCtx, cfg)
		cancel()
		// Cleared before the send so the next tick never sees a finished poll as busy.
		g.inFlight.Store(false)
		result <- res
	}()

	select {
	case res := <-result:
		if res.err != nil {
			g.fail("device poll failed", res.err)
			return Vector{}
		}
		g.recovered()

		return res.vector
	case <-pollCtx.Done():
		if ctx.Err() != nil {
			return Vector{}
		}
		g.fail("device poll timed out", pollCtx.Err())
		return Vector{}
	}
}

func (g *guardedSource) safePoll(ctx context.Context, cfg config.InputConfig) (res pollResult) {
	defer func() {
		if r := recover(); r != nil {
			res = pollResult{err: fmt.Errorf("device poll panic: %v", r)}
			g.logger.Debug("device poll panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	v, err := g.src.Poll(ctx, cfg)

	return pollResult{vector: v, err: err}
}

// fail logs once per failure streak; the sampler runs at 60Hz.
func (g *guardedSource) fail(msg string, err error) {
	if g.failing {
		return
	}
	g.failing = true
	g.logger.Warn(msg+", sending neutral input", "error", err)
}

func (g *guardedSource) recovered() {
	if !g.failing {
		return
	}
	g.failing = false
	g.logger.Info("device input recovered")
}
