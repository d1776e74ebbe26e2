package futex

import (
	"context"
	"sync/atomic"

	"github.com/brickingsoft/ringo"
)

// Cond
// is a condition variable over a sequence word. Every signal bumps the sequence,
// so a waiter that unlocked before the signal never sleeps through it.
type Cond struct {
	seq *uint32
}

func NewCond() *Cond {
	return &Cond{seq: new(uint32)}
}

// Wait
// unlocks m, waits for a signal and locks m again before returning, even when ctx
// ends first. Wakeups may be spurious, callers loop on their condition.
func (c *Cond) Wait(ctx context.Context, r *ringo.Reactor, m *Mutex) error {
	seq := atomic.LoadUint32(c.seq)
	if err := m.Unlock(ctx, r); err != nil {
		return err
	}
	err := wait(ctx, r, c.seq, seq)
	if lockErr := m.Lock(context.WithoutCancel(ctx), r); lockErr != nil {
		return lockErr
	}
	return err
}

func (c *Cond) Signal(ctx context.Context, r *ringo.Reactor) error {
	atomic.AddUint32(c.seq, 1)
	return wake(ctx, r, c.seq, 1)
}

func (c *Cond) Broadcast(ctx context.Context, r *ringo.Reactor) error {
	atomic.AddUint32(c.seq, 1)
	return wake(ctx, r, c.seq, wakeAll)
}
