package ldlm

import (
	"context"
	"sync"
	"time"
)

// waitSlot is the wake-up primitive a lock parks on while waiting for a
// grant. It is woken both by the RPC reply path
// (synchronous enqueue) and by inbound completion notifications
// (asynchronous AST), so it must support broadcast-style wake from
// either caller without the waiter missing a signal that arrives just
// before it starts waiting.
type waitSlot struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWaitSlot() *waitSlot {
	return &waitSlot{ch: make(chan struct{})}
}

// wake releases every current waiter and arms a fresh generation so a
// subsequent wait call doesn't observe a stale closed channel.
func (w *waitSlot) wake() {
	w.mu.Lock()
	close(w.ch)
	w.ch = make(chan struct{})
	w.mu.Unlock()
}

func (w *waitSlot) current() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}

// waitUntil blocks until done reports true, a wake arrives after which
// done is re-checked, timeout elapses (if > 0), or ctx is cancelled. It
// returns the final value of done(). Re-checking done() after every wake
// (rather than trusting the wake to mean "the condition now holds")
// avoids races against concurrent paths that wake the slot for an
// unrelated reason.
func (w *waitSlot) waitUntil(ctx context.Context, timeout time.Duration, done func() bool) bool {
	for {
		ch := w.current()
		if done() {
			return true
		}

		var timer *time.Timer
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer = time.NewTimer(timeout)
			timeoutCh = timer.C
		}

		select {
		case <-ch:
			if timer != nil {
				timer.Stop()
			}
			continue
		case <-timeoutCh:
			return done()
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return done()
		}
	}
}
