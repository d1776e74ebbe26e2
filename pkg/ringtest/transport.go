// Package ringtest provides an in-memory ring pair for exercising a reactor
// without a kernel. Completions are posted by the test in any order it likes.
package ringtest

import (
	"errors"
	"sync"
	"syscall"
	"time"

	"github.com/brickingsoft/ringo/pkg/liburing"
)

// Responder
// completes an entry as soon as it is submitted when it returns true.
type Responder func(entry liburing.SubmissionQueueEntry) (res int32, flags uint32, ok bool)

// ErrWouldBlock is returned by an unbounded wait that nothing could ever satisfy.
var ErrWouldBlock = errors.New("ringtest: wait would block forever")

type Transport struct {
	mu          sync.Mutex
	entries     uint32
	accept      int
	submitted   []liburing.SubmissionQueueEntry
	inflight    []liburing.SubmissionQueueEntry
	completions []liburing.CompletionQueueEvent
	responder   Responder
	submitErr   error
	enterErr    error
	batches     int
	enters      int
	closed      bool
}

func New(entries uint32) *Transport {
	return &Transport{entries: entries, accept: -1}
}

// Respond
// installs a responder consulted for every submitted entry.
func (t *Transport) Respond(responder Responder) {
	t.mu.Lock()
	t.responder = responder
	t.mu.Unlock()
}

// AcceptAtMost
// limits how many entries a single SubmitBatch accepts, negative means no limit.
// Like the kernel ring, a link chain that does not fit whole is not accepted at all.
func (t *Transport) AcceptAtMost(n int) {
	t.mu.Lock()
	t.accept = n
	t.mu.Unlock()
}

// FailSubmit
// makes every following SubmitBatch fail with err.
func (t *Transport) FailSubmit(err error) {
	t.mu.Lock()
	t.submitErr = err
	t.mu.Unlock()
}

// FailEnter
// makes every following EnterAndWait fail with err.
func (t *Transport) FailEnter(err error) {
	t.mu.Lock()
	t.enterErr = err
	t.mu.Unlock()
}

func (t *Transport) SubmitBatch(entries []liburing.SubmissionQueueEntry) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.submitErr != nil {
		return 0, t.submitErr
	}
	n := len(entries)
	if t.accept >= 0 && n > t.accept {
		n = liburing.ChainBoundary(entries, t.accept)
	}
	t.batches++
	for _, entry := range entries[:n] {
		t.submitted = append(t.submitted, entry)
		t.admit(entry)
	}
	return n, nil
}

func (t *Transport) admit(entry liburing.SubmissionQueueEntry) {
	if t.responder != nil {
		if res, flags, ok := t.responder(entry); ok {
			t.completions = append(t.completions, liburing.CompletionQueueEvent{UserData: entry.UserData, Res: res, Flags: flags})
			if flags&liburing.IORING_CQE_F_MORE != 0 {
				t.inflight = append(t.inflight, entry)
			}
			return
		}
	}
	if entry.OpCode == liburing.IORING_OP_ASYNC_CANCEL {
		t.cancel(entry)
		return
	}
	t.inflight = append(t.inflight, entry)
}

// cancel
// behaves like the kernel: targets complete with ECANCELED, the request with the count or ENOENT.
func (t *Transport) cancel(request liburing.SubmissionQueueEntry) {
	all := request.OpcodeFlags&liburing.IORING_ASYNC_CANCEL_ALL != 0
	matchAny := request.OpcodeFlags&liburing.IORING_ASYNC_CANCEL_ANY != 0
	canceled := 0
	kept := t.inflight[:0]
	for _, entry := range t.inflight {
		if (matchAny || entry.UserData == request.Addr) && (all || canceled == 0) {
			t.completions = append(t.completions, liburing.CompletionQueueEvent{UserData: entry.UserData, Res: -int32(syscall.ECANCELED)})
			canceled++
			continue
		}
		kept = append(kept, entry)
	}
	t.inflight = kept
	res := int32(canceled)
	if canceled == 0 {
		res = -int32(syscall.ENOENT)
	} else if !all {
		res = 0
	}
	t.completions = append(t.completions, liburing.CompletionQueueEvent{UserData: request.UserData, Res: res})
}

func (t *Transport) ReapAvailable(events []liburing.CompletionQueueEvent) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := copy(events, t.completions)
	t.completions = append(t.completions[:0], t.completions[n:]...)
	return n
}

func (t *Transport) EnterAndWait(minComplete uint32, timeout time.Duration) error {
	t.mu.Lock()
	t.enters++
	err := t.enterErr
	ready := len(t.completions)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if ready >= int(minComplete) || timeout == 0 {
		return nil
	}
	if timeout < 0 {
		return ErrWouldBlock
	}
	time.Sleep(timeout)
	return nil
}

func (t *Transport) Entries() uint32 {
	return t.entries
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Complete
// posts a completion for the in-flight entry carrying userData. Unless flags carry
// IORING_CQE_F_MORE the entry leaves the in-flight set.
func (t *Transport) Complete(userData uint64, res int32, flags uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completions = append(t.completions, liburing.CompletionQueueEvent{UserData: userData, Res: res, Flags: flags})
	if flags&liburing.IORING_CQE_F_MORE != 0 {
		return
	}
	for i, entry := range t.inflight {
		if entry.UserData == userData {
			t.inflight = append(t.inflight[:i], t.inflight[i+1:]...)
			break
		}
	}
}

// CompleteAll
// completes every in-flight entry with res, in submission order.
func (t *Transport) CompleteAll(res int32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range t.inflight {
		t.completions = append(t.completions, liburing.CompletionQueueEvent{UserData: entry.UserData, Res: res})
	}
	n := len(t.inflight)
	t.inflight = t.inflight[:0]
	return n
}

// Inflight
// returns the submitted entries that have not received a final completion.
func (t *Transport) Inflight() []liburing.SubmissionQueueEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]liburing.SubmissionQueueEntry(nil), t.inflight...)
}

// Submitted
// returns every entry accepted so far, in order.
func (t *Transport) Submitted() []liburing.SubmissionQueueEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]liburing.SubmissionQueueEntry(nil), t.submitted...)
}

// Batches
// counts SubmitBatch calls, one per kernel transition.
func (t *Transport) Batches() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batches
}

func (t *Transport) Enters() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enters
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
