//go:build linux

package liburing

import (
	"sync/atomic"
	"unsafe"
)

// GetSQE
// returns the next free submission entry, nil when the ring is full.
func (ring *Ring) GetSQE() *SubmissionQueueEntry {
	sq := ring.sqRing
	head := atomic.LoadUint32(sq.head)
	next := sq.sqeTail + 1
	if next-head > *sq.ringEntries {
		return nil
	}
	sqe := (*SubmissionQueueEntry)(unsafe.Add(unsafe.Pointer(sq.sqes), uintptr(sq.sqeTail&*sq.ringMask)*unsafe.Sizeof(SubmissionQueueEntry{})))
	sq.sqeTail = next
	return sqe
}

func (ring *Ring) SQReady() uint32 {
	return ring.sqRing.sqeTail - atomic.LoadUint32(ring.sqRing.head)
}

func (ring *Ring) SQSpaceLeft() uint32 {
	return *ring.sqRing.ringEntries - ring.SQReady()
}

func (ring *Ring) flushSQ() uint32 {
	sq := ring.sqRing
	tail := sq.sqeTail
	if sq.sqeHead != tail {
		sq.sqeHead = tail
		atomic.StoreUint32(sq.tail, tail)
	}
	return tail - atomic.LoadUint32(sq.head)
}

func (ring *Ring) sqRingNeedsEnter(submit uint32, flags *uint32) bool {
	if submit == 0 {
		return false
	}
	if ring.flags&IORING_SETUP_SQPOLL == 0 {
		return true
	}
	if atomic.LoadUint32(ring.sqRing.flags)&IORING_SQ_NEED_WAKEUP != 0 {
		*flags |= IORING_ENTER_SQ_WAKEUP
		return true
	}
	return false
}

func (ring *Ring) cqNeedsFlush() bool {
	return atomic.LoadUint32(ring.sqRing.flags)&(IORING_SQ_CQ_OVERFLOW|IORING_SQ_TASKRUN) != 0
}

// Submit
// publishes every prepared entry to the kernel and returns how many it consumed.
func (ring *Ring) Submit() (uint, error) {
	return ring.SubmitAndWait(0)
}

func (ring *Ring) SubmitAndWait(waitNr uint32) (uint, error) {
	submitted := ring.flushSQ()
	var flags uint32
	needEnter := ring.sqRingNeedsEnter(submitted, &flags)
	if waitNr > 0 || ring.cqNeedsFlush() {
		flags |= IORING_ENTER_GETEVENTS
		needEnter = true
	}
	if !needEnter {
		return uint(submitted), nil
	}
	return ring.Enter(submitted, waitNr, flags)
}
