package link

import (
	"sync"
	"sync/atomic"

	"github.com/skobkin/rovlink/internal/config"
	"github.com/skobkin/rovlink/internal/protocol"
)

// Outbox is the bounded queue from command producers to the active session.
// Delivery is best-effort: offers are refused while no session is active, and
// a full queue evicts its oldest entry so the newest command always wins.
type Outbox struct {
	ch      chan protocol.Message
	active  atomic.Bool
	dropped atomic.Uint64

	// serializes evict-then-insert so concurrent producers can't starve each other.
	offerMu sync.Mutex
}

func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = config.DefaultOutboxCapacity
	}

	return &Outbox{ch: make(chan protocol.Message, capacity)}
}

// Offer queues msg without blocking and reports whether it was accepted.
func (o *Outbox) Offer(msg protocol.Message) bool {
	if !o.active.Load() {
		o.dropped.Add(1)
		return false
	}

	o.offerMu.Lock()
	defer o.offerMu.Unlock()

	select {
	case o.ch <- msg:
		return true
	default:
	}

	select {
	case <-o.ch:
		o.dropped.Add(1)
	default:
	}

	select {
	case o.ch <- msg:
		return true
	default:
		o.dropped.Add(1)
		return false
	}
}

func (o *Outbox) Active() bool {
	return o.active.Load()
}

func (o *Outbox) Dropped() uint64 {
	return o.dropped.Load()
}

func (o *Outbox) Len() int {
	return len(o.ch)
}

func (o *Outbox) receive() <-chan protocol.Message {
	return o.ch
}

// activate discards anything left over from an earlier session.
func (o *Outbox) activate() {
	o.drain()
	o.active.Store(true)
}

func (o *Outbox) deactivate() {
	o.active.Store(false)
	o.drain()
}

func (o *Outbox) drain() {
	for {
		select {
		case <-o.ch:
			o.dropped.Add(1)
		default:
			return
		}
	}
}
