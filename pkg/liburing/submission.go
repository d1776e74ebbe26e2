package liburing

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	IORING_OP_NOP uint8 = iota
	IORING_OP_READV
	IORING_OP_WRITEV
	IORING_OP_FSYNC
	IORING_OP_READ_FIXED
	IORING_OP_WRITE_FIXED
	IORING_OP_POLL_ADD
	IORING_OP_POLL_REMOVE
	IORING_OP_SYNC_FILE_RANGE
	IORING_OP_SENDMSG
	IORING_OP_RECVMSG
	IORING_OP_TIMEOUT
	IORING_OP_TIMEOUT_REMOVE
	IORING_OP_ACCEPT
	IORING_OP_ASYNC_CANCEL
	IORING_OP_LINK_TIMEOUT
	IORING_OP_CONNECT
	IORING_OP_FALLOCATE
	IORING_OP_OPENAT
	IORING_OP_CLOSE
	IORING_OP_FILES_UPDATE
	IORING_OP_STATX
	IORING_OP_READ
	IORING_OP_WRITE
	IORING_OP_FADVISE
	IORING_OP_MADVISE
	IORING_OP_SEND
	IORING_OP_RECV
	IORING_OP_OPENAT2
	IORING_OP_EPOLL_CTL
	IORING_OP_SPLICE
	IORING_OP_PROVIDE_BUFFERS
	IORING_OP_REMOVE_BUFFERS
	IORING_OP_TEE
	IORING_OP_SHUTDOWN
	IORING_OP_RENAMEAT
	IORING_OP_UNLINKAT
	IORING_OP_MKDIRAT
	IORING_OP_SYMLINKAT
	IORING_OP_LINKAT
	IORING_OP_MSG_RING
	IORING_OP_FSETXATTR
	IORING_OP_SETXATTR
	IORING_OP_FGETXATTR
	IORING_OP_GETXATTR
	IORING_OP_SOCKET
	IORING_OP_URING_CMD
	IORING_OP_SEND_ZC
	IORING_OP_SENDMSG_ZC
	IORING_OP_READ_MULTISHOT
	IORING_OP_WAITID
	IORING_OP_FUTEX_WAIT
	IORING_OP_FUTEX_WAKE
	IORING_OP_FUTEX_WAITV

	IORING_OP_LAST
)

// sqe flags
const (
	IOSQE_FIXED_FILE uint8 = 1 << iota
	IOSQE_IO_DRAIN
	IOSQE_IO_LINK
	IOSQE_IO_HARDLINK
	IOSQE_ASYNC
	IOSQE_BUFFER_SELECT
	IOSQE_CQE_SKIP_SUCCESS
)

const IORING_FSYNC_DATASYNC uint32 = 1 << 0

const (
	IORING_TIMEOUT_ABS uint32 = 1 << iota
	IORING_TIMEOUT_UPDATE
	IORING_TIMEOUT_BOOTTIME
	IORING_TIMEOUT_REALTIME
	IORING_LINK_TIMEOUT_UPDATE
	IORING_TIMEOUT_ETIME_SUCCESS
	IORING_TIMEOUT_MULTISHOT
)

const (
	IORING_POLL_ADD_MULTI uint32 = 1 << iota
	IORING_POLL_UPDATE_EVENTS
	IORING_POLL_UPDATE_USER_DATA
	IORING_POLL_ADD_LEVEL
)

const (
	IORING_ASYNC_CANCEL_ALL uint32 = 1 << iota
	IORING_ASYNC_CANCEL_FD
	IORING_ASYNC_CANCEL_ANY
	IORING_ASYNC_CANCEL_FD_FIXED
	IORING_ASYNC_CANCEL_USERDATA
	IORING_ASYNC_CANCEL_OP
)

const (
	IORING_ACCEPT_MULTISHOT uint16 = 1 << iota
	IORING_ACCEPT_DONTWAIT
	IORING_ACCEPT_POLL_FIRST
)

// futex2 flags and the mask that matches any waiter.
const (
	FUTEX2_SIZE_U32        uint32 = 0x02
	FUTEX2_PRIVATE         uint32 = 128
	FUTEX_BITSET_MATCH_ANY uint64 = 0xffffffff
)

// SubmissionQueueEntry
// is the 64 byte io_uring_sqe.
type SubmissionQueueEntry struct {
	OpCode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64
	BufIG       uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_pad2       [1]uint64
}

func (entry *SubmissionQueueEntry) SetData64(data uint64) {
	entry.UserData = data
}

func (entry *SubmissionQueueEntry) SetFlags(flags uint8) {
	entry.Flags |= flags
}

func (entry *SubmissionQueueEntry) ClearFlags(flags uint8) {
	entry.Flags &^= flags
}

func (entry *SubmissionQueueEntry) Linked() bool {
	return entry.Flags&(IOSQE_IO_LINK|IOSQE_IO_HARDLINK) != 0
}

// ChainBoundary
// returns the largest m <= n such that entries[:m] ends with a whole link chain.
// The kernel ends a chain at the submit boundary, so a batch must never be cut inside one.
func ChainBoundary(entries []SubmissionQueueEntry, n int) int {
	n = min(n, len(entries))
	for n > 0 && entries[n-1].Linked() {
		n--
	}
	return n
}

func (entry *SubmissionQueueEntry) prepareRW(opcode uint8, fd int, addr uintptr, length uint32, offset uint64) {
	*entry = SubmissionQueueEntry{
		OpCode: opcode,
		Fd:     int32(fd),
		Off:    offset,
		Addr:   uint64(addr),
		Len:    length,
	}
}

func (entry *SubmissionQueueEntry) PrepareNop() {
	entry.prepareRW(IORING_OP_NOP, -1, 0, 0, 0)
}

func (entry *SubmissionQueueEntry) PrepareRead(fd int, buf uintptr, nbytes uint32, offset uint64) {
	entry.prepareRW(IORING_OP_READ, fd, buf, nbytes, offset)
}

func (entry *SubmissionQueueEntry) PrepareWrite(fd int, buf uintptr, nbytes uint32, offset uint64) {
	entry.prepareRW(IORING_OP_WRITE, fd, buf, nbytes, offset)
}

func (entry *SubmissionQueueEntry) PrepareRecv(fd int, buf uintptr, length uint32, flags int) {
	entry.prepareRW(IORING_OP_RECV, fd, buf, length, 0)
	entry.OpcodeFlags = uint32(flags)
}

func (entry *SubmissionQueueEntry) PrepareSend(fd int, buf uintptr, length uint32, flags int) {
	entry.prepareRW(IORING_OP_SEND, fd, buf, length, 0)
	entry.OpcodeFlags = uint32(flags)
}

func (entry *SubmissionQueueEntry) PrepareFsync(fd int, flags uint32) {
	entry.prepareRW(IORING_OP_FSYNC, fd, 0, 0, 0)
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareAccept(fd int, addr *unix.RawSockaddrAny, addrLen *uint32, flags int) {
	entry.prepareRW(IORING_OP_ACCEPT, fd, uintptr(unsafe.Pointer(addr)), 0, uint64(uintptr(unsafe.Pointer(addrLen))))
	entry.OpcodeFlags = uint32(flags)
}

func (entry *SubmissionQueueEntry) PrepareAcceptMultishot(fd int, addr *unix.RawSockaddrAny, addrLen *uint32, flags int) {
	entry.PrepareAccept(fd, addr, addrLen, flags)
	entry.IoPrio |= IORING_ACCEPT_MULTISHOT
}

func (entry *SubmissionQueueEntry) PrepareConnect(fd int, addr *unix.RawSockaddrAny, addrLen uint32) {
	entry.prepareRW(IORING_OP_CONNECT, fd, uintptr(unsafe.Pointer(addr)), 0, uint64(addrLen))
}

func (entry *SubmissionQueueEntry) PrepareShutdown(fd, how int) {
	entry.prepareRW(IORING_OP_SHUTDOWN, fd, 0, uint32(how), 0)
}

func (entry *SubmissionQueueEntry) PrepareClose(fd int) {
	entry.prepareRW(IORING_OP_CLOSE, fd, 0, 0, 0)
}

func (entry *SubmissionQueueEntry) PreparePollAdd(fd int, pollMask uint32) {
	entry.prepareRW(IORING_OP_POLL_ADD, fd, 0, 0, 0)
	entry.OpcodeFlags = pollMask
}

func (entry *SubmissionQueueEntry) PreparePollMultishot(fd int, pollMask uint32) {
	entry.PreparePollAdd(fd, pollMask)
	entry.Len = IORING_POLL_ADD_MULTI
}

func (entry *SubmissionQueueEntry) PreparePollRemove(userData uint64) {
	entry.prepareRW(IORING_OP_POLL_REMOVE, -1, 0, 0, 0)
	entry.Addr = userData
}

func (entry *SubmissionQueueEntry) PrepareCancel64(userData uint64, flags uint32) {
	entry.prepareRW(IORING_OP_ASYNC_CANCEL, -1, 0, 0, 0)
	entry.Addr = userData
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareCancelFd(fd int, flags uint32) {
	entry.prepareRW(IORING_OP_ASYNC_CANCEL, fd, 0, 0, 0)
	entry.OpcodeFlags = flags | IORING_ASYNC_CANCEL_FD
}

func (entry *SubmissionQueueEntry) PrepareTimeout(spec *unix.Timespec, count, flags uint32) {
	entry.prepareRW(IORING_OP_TIMEOUT, -1, uintptr(unsafe.Pointer(spec)), 1, uint64(count))
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareLinkTimeout(spec *unix.Timespec, flags uint32) {
	entry.prepareRW(IORING_OP_LINK_TIMEOUT, -1, uintptr(unsafe.Pointer(spec)), 1, 0)
	entry.OpcodeFlags = flags
}

func (entry *SubmissionQueueEntry) PrepareTimeoutRemove(userData uint64, flags uint32) {
	entry.prepareRW(IORING_OP_TIMEOUT_REMOVE, -1, 0, 0, 0)
	entry.Addr = userData
	entry.OpcodeFlags = flags
}

// PrepareFutexWait
// waits on a 32 bit futex word while it still holds val.
func (entry *SubmissionQueueEntry) PrepareFutexWait(futex *uint32, val uint64, mask uint64, futexFlags uint32) {
	entry.prepareRW(IORING_OP_FUTEX_WAIT, int(futexFlags), uintptr(unsafe.Pointer(futex)), 0, val)
	entry.Addr3 = mask
}

// PrepareFutexWake
// wakes at most nr waiters of the futex word.
func (entry *SubmissionQueueEntry) PrepareFutexWake(futex *uint32, nr uint64, mask uint64, futexFlags uint32) {
	entry.prepareRW(IORING_OP_FUTEX_WAKE, int(futexFlags), uintptr(unsafe.Pointer(futex)), 0, nr)
	entry.Addr3 = mask
}
