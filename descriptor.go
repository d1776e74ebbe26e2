package ringo

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/brickingsoft/ringo/pkg/liburing"
	"github.com/brickingsoft/ringo/pkg/registry"
)

type (
	Tag  = registry.Tag
	Kind = registry.Kind
)

// Descriptor
// is an operation ready to submit. Resource moves into the reactor on submission and
// comes back through Result once the operation is consumed. Pins must point into
// memory whose address the entry carries.
type Descriptor struct {
	Entry     liburing.SubmissionQueueEntry
	Resource  any
	Pins      []any
	Multishot bool
}

func (desc Descriptor) Kind() Kind {
	return Kind(desc.Entry.OpCode)
}

// WithFlags
// returns desc with IOSQE_* flags added, such as IOSQE_ASYNC.
func (desc Descriptor) WithFlags(flags uint8) Descriptor {
	desc.Entry.SetFlags(flags)
	return desc
}

// Result
// is one completion of an operation.
type Result struct {
	Kind     Kind
	Res      int32
	Flags    uint32
	Resource any
}

// N
// returns the non-negative result, zero on failure.
func (r Result) N() int {
	if r.Res < 0 {
		return 0
	}
	return int(r.Res)
}

// Err
// returns the kernel error carried by the result. The expiry of a plain
// timeout is its success, so it reports nil.
func (r Result) Err() error {
	if r.Res >= 0 {
		return nil
	}
	errno := syscall.Errno(-r.Res)
	if errno == syscall.ETIME && uint8(r.Kind) == liburing.IORING_OP_TIMEOUT {
		return nil
	}
	return os.NewSyscallError(r.Kind.String(), errno)
}

// More
// reports whether a multishot operation keeps producing results.
func (r Result) More() bool {
	return r.Flags&liburing.IORING_CQE_F_MORE != 0
}

// Bytes
// returns the filled part of a buffer resource.
func (r Result) Bytes() []byte {
	b, ok := r.Resource.([]byte)
	if !ok {
		return nil
	}
	return b[:min(r.N(), len(b))]
}

func bufferOf(b []byte) (uintptr, []any) {
	if len(b) == 0 {
		return 0, nil
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))), []any{unsafe.SliceData(b)}
}
