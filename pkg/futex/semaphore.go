package futex

import (
	"context"
	"sync/atomic"

	"github.com/brickingsoft/ringo"
)

// Semaphore
// is a counting semaphore whose count is the futex word.
type Semaphore struct {
	count   *uint32
	waiters atomic.Int32
}

func NewSemaphore(value uint32) *Semaphore {
	count := new(uint32)
	*count = value
	return &Semaphore{count: count}
}

func (s *Semaphore) Value() uint32 {
	return atomic.LoadUint32(s.count)
}

// TryAcquire
// takes one unit without waiting.
func (s *Semaphore) TryAcquire() bool {
	for {
		count := atomic.LoadUint32(s.count)
		if count == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(s.count, count, count-1) {
			return true
		}
	}
}

// Acquire
// takes one unit, waiting on r while the count is zero.
func (s *Semaphore) Acquire(ctx context.Context, r *ringo.Reactor) error {
	if s.TryAcquire() {
		return nil
	}
	s.waiters.Add(1)
	defer s.waiters.Add(-1)
	for !s.TryAcquire() {
		if err := wait(ctx, r, s.count, 0); err != nil {
			return err
		}
	}
	return nil
}

// Release
// returns one unit and wakes a waiter if there is one.
func (s *Semaphore) Release(ctx context.Context, r *ringo.Reactor) error {
	atomic.AddUint32(s.count, 1)
	if s.waiters.Load() == 0 {
		return nil
	}
	return wake(ctx, r, s.count, 1)
}
