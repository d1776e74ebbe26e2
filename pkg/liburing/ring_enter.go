//go:build linux

package liburing

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const nSig = 65

// GetEventsArg
// is io_uring_getevents_arg, passed with IORING_ENTER_EXT_ARG.
type GetEventsArg struct {
	sigMask   uint64
	sigMaskSz uint32
	pad       uint32
	ts        uint64
}

func (ring *Ring) Enter(submitted uint32, waitNr uint32, flags uint32) (uint, error) {
	return ring.Enter2(submitted, waitNr, flags, nil, nSig/8)
}

func (ring *Ring) Enter2(submitted uint32, waitNr uint32, flags uint32, arg unsafe.Pointer, size int) (uint, error) {
	consumed, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_ENTER,
		uintptr(ring.ringFd),
		uintptr(submitted),
		uintptr(waitNr),
		uintptr(flags),
		uintptr(arg),
		uintptr(size),
	)
	if errno != 0 {
		return 0, errno
	}
	return uint(consumed), nil
}
