//go:build linux

package ringo

import (
	"errors"
	"os"
	"time"

	"github.com/brickingsoft/ringo/pkg/liburing"
	"golang.org/x/sys/unix"
)

type ringTransport struct {
	ring  *liburing.Ring
	probe *liburing.Probe
}

func newRingTransport(options Options) (*ringTransport, error) {
	ring, err := liburing.New(
		liburing.WithEntries(options.Entries),
		liburing.WithFlags(options.Flags),
		liburing.WithSQThreadIdle(options.SQThreadIdle),
	)
	if err != nil {
		return nil, err
	}
	t := &ringTransport{ring: ring}
	if probe, probeErr := ring.Probe(); probeErr == nil {
		t.probe = probe
	}
	return t, nil
}

// SubmitBatch
// copies as many whole link chains as the submission ring has room for.
func (t *ringTransport) SubmitBatch(entries []liburing.SubmissionQueueEntry) (int, error) {
	room := liburing.ChainBoundary(entries, int(t.ring.SQSpaceLeft()))
	copied := 0
	for _, entry := range entries[:room] {
		sqe := t.ring.GetSQE()
		if sqe == nil {
			break
		}
		*sqe = entry
		copied++
	}
	for {
		_, err := t.ring.Submit()
		if err == nil {
			return copied, nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EBUSY) {
			// entries stay in the ring and go out with the next enter
			return copied, nil
		}
		return copied, os.NewSyscallError("io_uring_enter", err)
	}
}

func (t *ringTransport) ReapAvailable(events []liburing.CompletionQueueEvent) int {
	return int(t.ring.ReapBatchCQE(events))
}

func (t *ringTransport) EnterAndWait(minComplete uint32, timeout time.Duration) error {
	_, err := t.ring.SubmitAndWaitTimeout(minComplete, timeout)
	if err == nil || errors.Is(err, unix.ETIME) || errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EBUSY) {
		return nil
	}
	return os.NewSyscallError("io_uring_enter", err)
}

func (t *ringTransport) Entries() uint32 {
	return t.ring.SQEntries()
}

func (t *ringTransport) Supports(opcode uint8) bool {
	return t.probe != nil && t.probe.IsSupported(opcode)
}

func (t *ringTransport) Close() error {
	return t.ring.Close()
}
