package ringo

import (
	"time"

	"github.com/brickingsoft/ringo/pkg/liburing"
	"golang.org/x/sys/unix"
)

func Nop() (desc Descriptor) {
	desc.Entry.PrepareNop()
	return
}

// Read
// reads into buf at offset. The buffer is owned by the reactor until the result is consumed.
func Read(fd int, buf []byte, offset uint64) (desc Descriptor) {
	addr, pins := bufferOf(buf)
	desc.Entry.PrepareRead(fd, addr, uint32(len(buf)), offset)
	desc.Resource = buf
	desc.Pins = pins
	return
}

func Write(fd int, buf []byte, offset uint64) (desc Descriptor) {
	addr, pins := bufferOf(buf)
	desc.Entry.PrepareWrite(fd, addr, uint32(len(buf)), offset)
	desc.Resource = buf
	desc.Pins = pins
	return
}

func Recv(fd int, buf []byte, flags int) (desc Descriptor) {
	addr, pins := bufferOf(buf)
	desc.Entry.PrepareRecv(fd, addr, uint32(len(buf)), flags)
	desc.Resource = buf
	desc.Pins = pins
	return
}

func Send(fd int, buf []byte, flags int) (desc Descriptor) {
	addr, pins := bufferOf(buf)
	desc.Entry.PrepareSend(fd, addr, uint32(len(buf)), flags)
	desc.Resource = buf
	desc.Pins = pins
	return
}

// Accept
// accepts one connection, the result is the new fd.
func Accept(fd int, flags int) (desc Descriptor) {
	desc.Entry.PrepareAccept(fd, nil, nil, flags)
	return
}

// AcceptMultishot
// keeps accepting until canceled, every result carries one new fd.
func AcceptMultishot(fd int, flags int) (desc Descriptor) {
	desc.Entry.PrepareAcceptMultishot(fd, nil, nil, flags)
	desc.Multishot = true
	return
}

func Connect(fd int, sa unix.Sockaddr) (desc Descriptor, err error) {
	raw, length, err := rawSockaddr(sa)
	if err != nil {
		return
	}
	desc.Entry.PrepareConnect(fd, raw, length)
	desc.Resource = raw
	desc.Pins = []any{raw}
	return
}

// PollAdd
// completes once fd reports any of events, the result is the ready mask.
func PollAdd(fd int, events uint32) (desc Descriptor) {
	desc.Entry.PreparePollAdd(fd, events)
	return
}

func PollMultishot(fd int, events uint32) (desc Descriptor) {
	desc.Entry.PreparePollMultishot(fd, events)
	desc.Multishot = true
	return
}

func PollRemove(target Tag) (desc Descriptor) {
	desc.Entry.PreparePollRemove(target.UserData())
	return
}

// Timeout
// completes after d, its expiry is a successful result.
func Timeout(d time.Duration) (desc Descriptor) {
	ts := timespec(d)
	desc.Entry.PrepareTimeout(ts, 0, 0)
	desc.Resource = ts
	desc.Pins = []any{ts}
	return
}

// LinkTimeout
// bounds the operation linked before it. When it fires the linked operation
// completes with ECANCELED and the timeout with ETIME.
func LinkTimeout(d time.Duration) (desc Descriptor) {
	ts := timespec(d)
	desc.Entry.PrepareLinkTimeout(ts, 0)
	desc.Resource = ts
	desc.Pins = []any{ts}
	return
}

// Cancel
// asks the kernel to cancel the operation identified by target.
func Cancel(target Tag) (desc Descriptor) {
	desc.Entry.PrepareCancel64(target.UserData(), 0)
	return
}

func CancelFd(fd int) (desc Descriptor) {
	desc.Entry.PrepareCancelFd(fd, liburing.IORING_ASYNC_CANCEL_ALL)
	return
}

func Shutdown(fd int, how int) (desc Descriptor) {
	desc.Entry.PrepareShutdown(fd, how)
	return
}

func Close(fd int) (desc Descriptor) {
	desc.Entry.PrepareClose(fd)
	return
}

func Fsync(fd int, datasync bool) (desc Descriptor) {
	var flags uint32
	if datasync {
		flags = liburing.IORING_FSYNC_DATASYNC
	}
	desc.Entry.PrepareFsync(fd, flags)
	return
}

// FutexWait
// completes when word is woken, or at once with EAGAIN when it no longer holds expected.
func FutexWait(word *uint32, expected uint32) (desc Descriptor) {
	desc.Entry.PrepareFutexWait(word, uint64(expected), liburing.FUTEX_BITSET_MATCH_ANY, liburing.FUTEX2_SIZE_U32)
	desc.Resource = word
	desc.Pins = []any{word}
	return
}

// FutexWake
// wakes at most n waiters of word, the result is the number woken.
func FutexWake(word *uint32, n uint32) (desc Descriptor) {
	desc.Entry.PrepareFutexWake(word, uint64(n), liburing.FUTEX_BITSET_MATCH_ANY, liburing.FUTEX2_SIZE_U32)
	desc.Resource = word
	desc.Pins = []any{word}
	return
}

func timespec(d time.Duration) *unix.Timespec {
	ts := unix.NsecToTimespec(int64(d))
	return &ts
}
