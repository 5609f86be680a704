package control

import (
	"sync/atomic"

	"github.com/sophialabs/lsvstats/internal/domain/match"
)

// State is the flush/reset controller state.
type State int32

const (
	Idle State = iota
	FlushRequested
	ShutdownRequested
)

func (s State) String() string {
	switch s {
	case FlushRequested:
		return "flush_requested"
	case ShutdownRequested:
		return "shutdown_requested"
	default:
		return "idle"
	}
}

// Flush reasons.
const (
	ReasonSignal   = "signal"
	ReasonInterval = "interval"
	ReasonOverflow = "overflow"
	ReasonReload   = "reload"
	ReasonShutdown = "shutdown"
)

// Decision is what the event loop must do at a checkpoint.
type Decision struct {
	Flush    bool
	Shutdown bool
	Reason   string
	// Reload, when non-nil, replaces the active rules after the flush.
	Reload *match.RuleStore
}

// Controller collects asynchronous flush, shutdown and reload requests. All
// Request methods are safe for concurrent use; Check must only be called from
// the event loop.
type Controller struct {
	status atomic.Pointer[status]
	reload atomic.Pointer[match.RuleStore]
	wake   chan struct{}
}

// status pairs a state with the reason that entered it, so both change in
// one atomic step. Values are never mutated after publication.
type status struct {
	state  State
	reason string
}

var idle = &status{state: Idle}

// New creates an idle controller.
func New() *Controller {
	c := &Controller{wake: make(chan struct{}, 1)}
	c.status.Store(idle)
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	return c.status.Load().state
}

// Wake is signalled after every request so an idle loop can reach its
// checkpoint without waiting for the next event.
func (c *Controller) Wake() <-chan struct{} {
	return c.wake
}

// RequestFlush moves Idle to FlushRequested. It is a no-op in any other state.
func (c *Controller) RequestFlush(reason string) {
	next := &status{state: FlushRequested, reason: reason}
	for {
		cur := c.status.Load()
		if cur.state != Idle || c.status.CompareAndSwap(cur, next) {
			break
		}
	}
	c.notify()
}

// RequestShutdown moves any state to ShutdownRequested.
func (c *Controller) RequestShutdown() {
	c.status.Store(&status{state: ShutdownRequested, reason: ReasonShutdown})
	c.notify()
}

// RequestReload parks a rule store to be swapped in at the next checkpoint,
// after a flush of the samples gathered under the current rules. A later
// request replaces an earlier one that was not yet applied.
func (c *Controller) RequestReload(rules *match.RuleStore) {
	c.reload.Store(rules)
	c.notify()
}

// Check consumes pending requests. Shutdown is terminal and wins over flush
// and reload.
func (c *Controller) Check() Decision {
	var d Decision
	for {
		cur := c.status.Load()
		if cur.state == ShutdownRequested {
			return Decision{Flush: true, Shutdown: true, Reason: ReasonShutdown}
		}
		if cur.state != FlushRequested {
			break
		}
		if c.status.CompareAndSwap(cur, idle) {
			d.Flush = true
			d.Reason = cur.reason
			break
		}
	}
	if rules := c.reload.Swap(nil); rules != nil {
		d.Reload = rules
		if !d.Flush {
			d.Flush = true
			d.Reason = ReasonReload
		}
	}
	return d
}

func (c *Controller) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
