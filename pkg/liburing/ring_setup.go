//go:build linux

package liburing

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	IORING_OFF_SQ_RING int64 = 0
	IORING_OFF_CQ_RING int64 = 0x8000000
	IORING_OFF_SQES    int64 = 0x10000000
)

func (ring *Ring) setup(entries uint32, params *Params) error {
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(params)), 0)
	if errno != 0 {
		return os.NewSyscallError("io_uring_setup", errno)
	}
	ring.ringFd = int(fd)
	if err := ring.mmap(params); err != nil {
		_ = unix.Close(ring.ringFd)
		ring.ringFd = -1
		return err
	}

	// identity mapping, the submission array never gets reordered
	sq := ring.sqRing
	for index := uint32(0); index < *sq.ringEntries; index++ {
		*(*uint32)(unsafe.Add(unsafe.Pointer(sq.array), uintptr(index)*unsafe.Sizeof(uint32(0)))) = index
	}

	ring.flags = params.flags
	ring.features = params.features
	unix.CloseOnExec(ring.ringFd)
	return nil
}

func (ring *Ring) mmap(params *Params) (err error) {
	sq, cq := ring.sqRing, ring.cqRing

	sqSize := uintptr(params.sqOff.array) + uintptr(params.sqEntries)*unsafe.Sizeof(uint32(0))
	cqSize := uintptr(params.cqOff.cqes) + uintptr(params.cqEntries)*unsafe.Sizeof(CompletionQueueEvent{})
	if params.features&IORING_FEAT_SINGLE_MMAP != 0 {
		sqSize = max(sqSize, cqSize)
		cqSize = sqSize
	}

	sq.ring, err = mmapRegion(ring.ringFd, IORING_OFF_SQ_RING, sqSize)
	if err != nil {
		return
	}
	if params.features&IORING_FEAT_SINGLE_MMAP != 0 {
		cq.ring = sq.ring
	} else if cq.ring, err = mmapRegion(ring.ringFd, IORING_OFF_CQ_RING, cqSize); err != nil {
		ring.unmap()
		return
	}
	sq.sqesMem, err = mmapRegion(ring.ringFd, IORING_OFF_SQES, uintptr(params.sqEntries)*unsafe.Sizeof(SubmissionQueueEntry{}))
	if err != nil {
		ring.unmap()
		return
	}

	sqBase := unsafe.Pointer(unsafe.SliceData(sq.ring))
	sq.head = (*uint32)(unsafe.Add(sqBase, params.sqOff.head))
	sq.tail = (*uint32)(unsafe.Add(sqBase, params.sqOff.tail))
	sq.ringMask = (*uint32)(unsafe.Add(sqBase, params.sqOff.ringMask))
	sq.ringEntries = (*uint32)(unsafe.Add(sqBase, params.sqOff.ringEntries))
	sq.flags = (*uint32)(unsafe.Add(sqBase, params.sqOff.flags))
	sq.dropped = (*uint32)(unsafe.Add(sqBase, params.sqOff.dropped))
	sq.array = (*uint32)(unsafe.Add(sqBase, params.sqOff.array))
	sq.sqes = (*SubmissionQueueEntry)(unsafe.Pointer(unsafe.SliceData(sq.sqesMem)))

	cqBase := unsafe.Pointer(unsafe.SliceData(cq.ring))
	cq.head = (*uint32)(unsafe.Add(cqBase, params.cqOff.head))
	cq.tail = (*uint32)(unsafe.Add(cqBase, params.cqOff.tail))
	cq.ringMask = (*uint32)(unsafe.Add(cqBase, params.cqOff.ringMask))
	cq.ringEntries = (*uint32)(unsafe.Add(cqBase, params.cqOff.ringEntries))
	cq.overflow = (*uint32)(unsafe.Add(cqBase, params.cqOff.overflow))
	cq.cqes = (*CompletionQueueEvent)(unsafe.Add(cqBase, params.cqOff.cqes))
	if params.cqOff.flags != 0 {
		cq.flags = (*uint32)(unsafe.Add(cqBase, params.cqOff.flags))
	}
	return
}

func mmapRegion(fd int, offset int64, size uintptr) ([]byte, error) {
	b, err := unix.Mmap(fd, offset, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	return b, nil
}
