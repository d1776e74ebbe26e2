package futex_test

import (
	"context"
	"io"
	"syscall"
	"testing"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/ringo"
	"github.com/brickingsoft/ringo/pkg/futex"
	"github.com/brickingsoft/ringo/pkg/liburing"
	"github.com/brickingsoft/ringo/pkg/ringtest"
	"github.com/sirupsen/logrus"
)

func newReactor(t *testing.T) (*ringo.Reactor, *ringtest.Transport) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	transport := ringtest.New(8)
	r, err := ringo.New(transport, ringo.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	return r, transport
}

func opcodes(transport *ringtest.Transport) (ops []uint8) {
	for _, entry := range transport.Submitted() {
		ops = append(ops, entry.OpCode)
	}
	return
}

func TestMutex_Uncontended(t *testing.T) {
	r, transport := newReactor(t)
	m := futex.NewMutex()
	ctx := context.Background()
	if err := m.Lock(ctx, r); err != nil {
		t.Fatal(err)
	}
	if m.TryLock() {
		t.Fatal("mutex must be held")
	}
	if err := m.Unlock(ctx, r); err != nil {
		t.Fatal(err)
	}
	if len(transport.Submitted()) != 0 {
		t.Error("uncontended mutex must stay out of the kernel", opcodes(transport))
	}
}

func TestMutex_UnlockUnlocked(t *testing.T) {
	r, _ := newReactor(t)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	_ = futex.NewMutex().Unlock(context.Background(), r)
}

func TestSemaphore_CrossReactor(t *testing.T) {
	waiter, waiterTransport := newReactor(t)
	releaser, releaserTransport := newReactor(t)
	s := futex.NewSemaphore(0)
	ctx := context.Background()

	releaserTransport.Respond(func(entry liburing.SubmissionQueueEntry) (int32, uint32, bool) {
		return 1, 0, entry.OpCode == liburing.IORING_OP_FUTEX_WAKE
	})
	waiterTransport.Respond(func(entry liburing.SubmissionQueueEntry) (int32, uint32, bool) {
		if entry.OpCode != liburing.IORING_OP_FUTEX_WAIT {
			return 0, 0, false
		}
		if err := s.Release(ctx, releaser); err != nil {
			t.Error(err)
		}
		return 0, 0, true
	})

	if err := s.Acquire(ctx, waiter); err != nil {
		t.Fatal(err)
	}
	if s.Value() != 0 {
		t.Error("released unit must be taken", s.Value())
	}
	if ops := opcodes(releaserTransport); len(ops) != 1 || ops[0] != liburing.IORING_OP_FUTEX_WAKE {
		t.Error("release must wake the parked waiter", ops)
	}
}

func TestSemaphore_ReleaseWithoutWaiters(t *testing.T) {
	r, transport := newReactor(t)
	s := futex.NewSemaphore(1)
	if !s.TryAcquire() || s.TryAcquire() {
		t.Fatal("expected exactly one unit")
	}
	if err := s.Release(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if s.Value() != 1 || len(transport.Submitted()) != 0 {
		t.Error("release without waiters must not wake", s.Value(), opcodes(transport))
	}
}

func TestCond_WaitRelocks(t *testing.T) {
	r, transport := newReactor(t)
	transport.Respond(func(entry liburing.SubmissionQueueEntry) (int32, uint32, bool) {
		return -int32(syscall.EAGAIN), 0, entry.OpCode == liburing.IORING_OP_FUTEX_WAIT
	})
	ctx := context.Background()
	m := futex.NewMutex()
	c := futex.NewCond()
	if err := m.Lock(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(ctx, r, m); err != nil {
		t.Fatal(err)
	}
	if m.TryLock() {
		t.Fatal("wait must return with the mutex held")
	}
	if ops := opcodes(transport); len(ops) != 1 || ops[0] != liburing.IORING_OP_FUTEX_WAIT {
		t.Error("unexpected operations", ops)
	}
}

func TestCond_Signal(t *testing.T) {
	r, transport := newReactor(t)
	transport.Respond(func(entry liburing.SubmissionQueueEntry) (int32, uint32, bool) {
		return 0, 0, entry.OpCode == liburing.IORING_OP_FUTEX_WAKE
	})
	c := futex.NewCond()
	if err := c.Signal(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if err := c.Broadcast(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	submitted := transport.Submitted()
	if len(submitted) != 2 || submitted[0].Off != 1 || submitted[1].Off <= 1 {
		t.Error("signal wakes one, broadcast wakes all", submitted)
	}
}

func TestUnsupported(t *testing.T) {
	r, transport := newReactor(t)
	transport.Respond(func(entry liburing.SubmissionQueueEntry) (int32, uint32, bool) {
		return -int32(syscall.EINVAL), 0, true
	})
	err := futex.NewCond().Signal(context.Background(), r)
	if !errors.Is(err, futex.ErrUnsupported) {
		t.Fatal("expected unsupported, got", err)
	}
	if futex.Supported(r) {
		t.Error("in-memory ring has no probe")
	}
}
