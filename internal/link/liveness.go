package link

import (
	"sync/atomic"
	"time"
)

// LivenessClock records when the vehicle was last heard from. It is written by
// the session loop and read by the liveness checker.
//
// Deltas use wall-clock time, so a clock jump can shorten or stretch one
// liveness window.
type LivenessClock struct {
	last atomic.Int64
	now  func() time.Time
}

func NewLivenessClock(now func() time.Time) *LivenessClock {
	if now == nil {
		now = time.Now
	}
	c := &LivenessClock{now: now}
	c.Touch()

	return c
}

func (c *LivenessClock) Touch() {
	c.last.Store(c.now().UnixNano())
}

func (c *LivenessClock) Last() time.Time {
	return time.Unix(0, c.last.Load())
}

func (c *LivenessClock) Since() time.Duration {
	return c.now().Sub(c.Last())
}

func (c *LivenessClock) Expired(timeout time.Duration) bool {
	return c.Since() > timeout
}
