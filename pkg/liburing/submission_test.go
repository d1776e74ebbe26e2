package liburing_test

import (
	"testing"
	"unsafe"

	"github.com/brickingsoft/ringo/pkg/liburing"
	"golang.org/x/sys/unix"
)

func TestSubmissionQueueEntry_Layout(t *testing.T) {
	if size := unsafe.Sizeof(liburing.SubmissionQueueEntry{}); size != 64 {
		t.Error("sqe must be 64 bytes, got", size)
	}
	if size := unsafe.Sizeof(liburing.CompletionQueueEvent{}); size != 16 {
		t.Error("cqe must be 16 bytes, got", size)
	}
}

func TestSubmissionQueueEntry_PrepareRead(t *testing.T) {
	buf := make([]byte, 16)
	sqe := liburing.SubmissionQueueEntry{UserData: 7, Flags: liburing.IOSQE_IO_LINK}
	sqe.PrepareRead(3, uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), 8)
	if sqe.OpCode != liburing.IORING_OP_READ || sqe.Fd != 3 || sqe.Len != 16 || sqe.Off != 8 {
		t.Error("unexpected read entry", sqe)
	}
	if sqe.UserData != 0 || sqe.Flags != 0 {
		t.Error("prepare must reset the entry", sqe)
	}
}

func TestSubmissionQueueEntry_Flags(t *testing.T) {
	sqe := liburing.SubmissionQueueEntry{}
	sqe.PrepareNop()
	sqe.SetFlags(liburing.IOSQE_IO_LINK)
	if !sqe.Linked() {
		t.Error("entry must be linked")
	}
	sqe.ClearFlags(liburing.IOSQE_IO_LINK)
	if sqe.Linked() {
		t.Error("entry must not be linked")
	}
}

func TestChainBoundary(t *testing.T) {
	entries := make([]liburing.SubmissionQueueEntry, 5)
	// nop, link -> link -> tail, nop
	entries[1].SetFlags(liburing.IOSQE_IO_LINK)
	entries[2].SetFlags(liburing.IOSQE_IO_HARDLINK)
	for n, want := range []int{0, 1, 1, 1, 4, 5, 5} {
		if got := liburing.ChainBoundary(entries, n); got != want {
			t.Error("boundary of", n, "expected", want, "got", got)
		}
	}
}

func TestSubmissionQueueEntry_PrepareTimeout(t *testing.T) {
	ts := unix.NsecToTimespec(5e9)
	sqe := liburing.SubmissionQueueEntry{}
	sqe.PrepareLinkTimeout(&ts, 0)
	if sqe.OpCode != liburing.IORING_OP_LINK_TIMEOUT || sqe.Len != 1 {
		t.Error("unexpected link timeout entry", sqe)
	}
	if sqe.Addr != uint64(uintptr(unsafe.Pointer(&ts))) {
		t.Error("timespec address not carried")
	}
}

func TestSubmissionQueueEntry_PrepareFutex(t *testing.T) {
	var word uint32
	sqe := liburing.SubmissionQueueEntry{}
	sqe.PrepareFutexWait(&word, 0, liburing.FUTEX_BITSET_MATCH_ANY, liburing.FUTEX2_SIZE_U32)
	if sqe.OpCode != liburing.IORING_OP_FUTEX_WAIT || sqe.Fd != int32(liburing.FUTEX2_SIZE_U32) || sqe.Addr3 != liburing.FUTEX_BITSET_MATCH_ANY {
		t.Error("unexpected futex entry", sqe)
	}
}

func TestRoundupPow2(t *testing.T) {
	cases := map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		if got := liburing.RoundupPow2(in); got != want {
			t.Errorf("RoundupPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
