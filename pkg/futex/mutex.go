package futex

import (
	"context"
	"sync/atomic"

	"github.com/brickingsoft/ringo"
)

const (
	unlocked uint32 = iota
	locked
	contended
)

// Mutex
// is a three state futex lock, Unlock only enters the kernel when a waiter may exist.
type Mutex struct {
	state *uint32
}

func NewMutex() *Mutex {
	return &Mutex{state: new(uint32)}
}

func (m *Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(m.state, unlocked, locked)
}

// Lock
// acquires the mutex, waiting on r while another holder has it. On error the mutex is not held.
func (m *Mutex) Lock(ctx context.Context, r *ringo.Reactor) error {
	if m.TryLock() {
		return nil
	}
	for atomic.SwapUint32(m.state, contended) != unlocked {
		if err := wait(ctx, r, m.state, contended); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mutex) Unlock(ctx context.Context, r *ringo.Reactor) error {
	switch atomic.SwapUint32(m.state, unlocked) {
	case unlocked:
		panic("futex: unlock of unlocked mutex")
	case contended:
		return wake(ctx, r, m.state, 1)
	}
	return nil
}
