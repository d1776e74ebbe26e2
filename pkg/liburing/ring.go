//go:build linux

package liburing

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

type SubmissionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	flags       *uint32
	dropped     *uint32
	array       *uint32
	sqes        *SubmissionQueueEntry
	sqeHead     uint32
	sqeTail     uint32
	ring        []byte
	sqesMem     []byte
}

type CompletionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	flags       *uint32
	overflow    *uint32
	cqes        *CompletionQueueEvent
	ring        []byte
}

type Ring struct {
	sqRing   *SubmissionQueue
	cqRing   *CompletionQueue
	flags    uint32
	features uint32
	ringFd   int
}

func New(options ...Option) (ring *Ring, err error) {
	opts := Options{
		Entries: DefaultEntries,
	}
	for _, o := range options {
		if err = o(&opts); err != nil {
			return
		}
	}

	params := &Params{
		flags:        opts.Flags,
		sqThreadCPU:  opts.SQThreadCPU,
		sqThreadIdle: uint32(opts.SQThreadIdle.Milliseconds()),
	}
	if err = params.Validate(); err != nil {
		return
	}

	ring = &Ring{
		sqRing: &SubmissionQueue{},
		cqRing: &CompletionQueue{},
		ringFd: -1,
	}
	if err = ring.setup(opts.Entries, params); err != nil {
		ring = nil
		return
	}
	return
}

func (ring *Ring) Fd() int {
	return ring.ringFd
}

func (ring *Ring) Flags() uint32 {
	return ring.flags
}

func (ring *Ring) Features() uint32 {
	return ring.features
}

func (ring *Ring) SQEntries() uint32 {
	return *ring.sqRing.ringEntries
}

func (ring *Ring) CQEntries() uint32 {
	return *ring.cqRing.ringEntries
}

func (ring *Ring) Close() (err error) {
	if ring.ringFd == -1 {
		return
	}
	ring.unmap()
	err = unix.Close(ring.ringFd)
	ring.ringFd = -1
	return
}

func (ring *Ring) unmap() {
	sq, cq := ring.sqRing, ring.cqRing
	if sq.sqesMem != nil {
		_ = unix.Munmap(sq.sqesMem)
		sq.sqesMem = nil
	}
	if cq.ring != nil && unsafe.SliceData(cq.ring) != unsafe.SliceData(sq.ring) {
		_ = unix.Munmap(cq.ring)
	}
	cq.ring = nil
	if sq.ring != nil {
		_ = unix.Munmap(sq.ring)
		sq.ring = nil
	}
}
