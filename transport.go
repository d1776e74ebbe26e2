package ringo

import (
	"time"

	"github.com/brickingsoft/ringo/pkg/liburing"
)

// Transport
// is the kernel side of a ring pair.
type Transport interface {
	// SubmitBatch copies entries into the submission ring and hands them to the kernel
	// in one transition, returning how many entries were accepted. The accepted prefix
	// never ends inside a link chain.
	SubmitBatch(entries []liburing.SubmissionQueueEntry) (int, error)
	// ReapAvailable copies available completions into events without blocking and
	// consumes them from the ring.
	ReapAvailable(events []liburing.CompletionQueueEvent) int
	// EnterAndWait blocks until minComplete completions are available or timeout elapses.
	// A negative timeout blocks without limit, zero only polls. Expiry is not an error.
	EnterAndWait(minComplete uint32, timeout time.Duration) error
	// Entries is the submission ring capacity.
	Entries() uint32
	Close() error
}

// Prober
// is implemented by transports that can tell which opcodes the kernel supports.
type Prober interface {
	Supports(opcode uint8) bool
}
