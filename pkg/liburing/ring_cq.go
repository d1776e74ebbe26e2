//go:build linux

package liburing

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// internal timeout entries carry this user data and never surface to callers.
const timeoutUserData uint64 = math.MaxUint64

func (ring *Ring) CQReady() uint32 {
	return atomic.LoadUint32(ring.cqRing.tail) - atomic.LoadUint32(ring.cqRing.head)
}

func (ring *Ring) CQAdvance(n uint32) {
	atomic.AddUint32(ring.cqRing.head, n)
}

func (ring *Ring) cqe(index uint32) *CompletionQueueEvent {
	cq := ring.cqRing
	return (*CompletionQueueEvent)(unsafe.Add(unsafe.Pointer(cq.cqes), uintptr(index&*cq.ringMask)*unsafe.Sizeof(CompletionQueueEvent{})))
}

// ReapBatchCQE
// copies available completions into events and advances the ring head past them.
// When the kernel holds back overflowed or deferred completions it is entered once
// to flush them.
func (ring *Ring) ReapBatchCQE(events []CompletionQueueEvent) uint32 {
	n := ring.reapCQE(events)
	if n == 0 && ring.cqNeedsFlush() {
		if _, err := ring.Enter(0, 0, IORING_ENTER_GETEVENTS); err == nil {
			n = ring.reapCQE(events)
		}
	}
	return n
}

func (ring *Ring) reapCQE(events []CompletionQueueEvent) uint32 {
	cq := ring.cqRing
	head := atomic.LoadUint32(cq.head)
	tail := atomic.LoadUint32(cq.tail)
	n := uint32(0)
	for ; head != tail && int(n) < len(events); head++ {
		cqe := ring.cqe(head)
		if cqe.UserData == timeoutUserData {
			continue
		}
		events[n] = *cqe
		n++
	}
	atomic.StoreUint32(cq.head, head)
	return n
}

// SubmitAndWaitTimeout
// submits prepared entries and waits for waitNr completions.
// A negative timeout waits without limit, expiry is reported as unix.ETIME.
func (ring *Ring) SubmitAndWaitTimeout(waitNr uint32, timeout time.Duration) (uint, error) {
	if timeout < 0 {
		return ring.SubmitAndWait(waitNr)
	}
	if ring.CQReady() >= waitNr && waitNr > 0 {
		return ring.Submit()
	}
	if timeout == 0 {
		submitted := ring.flushSQ()
		return ring.Enter(submitted, 0, IORING_ENTER_GETEVENTS)
	}
	// the kernel reads ts by address, a stack copy could move with a stack growth
	ts := new(unix.Timespec)
	*ts = unix.NsecToTimespec(int64(timeout))
	if ring.features&IORING_FEAT_EXT_ARG != 0 {
		arg := GetEventsArg{
			sigMaskSz: nSig / 8,
			ts:        uint64(uintptr(unsafe.Pointer(ts))),
		}
		submitted := ring.flushSQ()
		n, err := ring.Enter2(submitted, waitNr, IORING_ENTER_GETEVENTS|IORING_ENTER_EXT_ARG, unsafe.Pointer(&arg), int(unsafe.Sizeof(arg)))
		runtime.KeepAlive(ts)
		return n, err
	}

	sqe := ring.GetSQE()
	if sqe == nil {
		if _, err := ring.Submit(); err != nil {
			return 0, err
		}
		if sqe = ring.GetSQE(); sqe == nil {
			return 0, unix.EBUSY
		}
	}
	sqe.PrepareTimeout(ts, waitNr, 0)
	sqe.UserData = timeoutUserData
	n, err := ring.SubmitAndWait(1)
	runtime.KeepAlive(ts)
	return n, err
}
