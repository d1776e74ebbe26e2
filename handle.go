package ringo

import (
	"context"
	"runtime"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/ringo/pkg/registry"
)

type HandleState uint8

const (
	Created HandleState = iota
	Suspended
	ReadyToConsume
	Consumed
	CancelRequested
)

func (s HandleState) String() string {
	switch s {
	case Created:
		return "created"
	case Suspended:
		return "suspended"
	case ReadyToConsume:
		return "ready"
	case Consumed:
		return "consumed"
	case CancelRequested:
		return "cancel requested"
	default:
		return "unknown"
	}
}

// waitSlice bounds a single kernel wait while a cancelable context is watched.
const waitSlice = 20 * time.Millisecond

// Handle
// awaits one submitted operation. It refers to its slot only by tag and belongs to
// the goroutine driving its reactor. A handle that becomes unreachable before it is
// consumed is abandoned at the next Submit or Drive.
type Handle struct {
	reactor   *Reactor
	tag       registry.Tag
	kind      Kind
	multishot bool
	state     HandleState
}

func newHandle(r *Reactor, tag registry.Tag, desc Descriptor) *Handle {
	h := &Handle{
		reactor:   r,
		tag:       tag,
		kind:      desc.Kind(),
		multishot: desc.Multishot,
	}
	runtime.SetFinalizer(h, (*Handle).finalize)
	return h
}

func (h *Handle) finalize() {
	if h.state < Consumed {
		h.reactor.dropped.push(h.tag, h.multishot)
	}
}

func (h *Handle) Tag() Tag {
	return h.tag
}

func (h *Handle) Kind() Kind {
	return h.kind
}

func (h *Handle) Multishot() bool {
	return h.multishot
}

func (h *Handle) State() HandleState {
	if h.state == Created || h.state == Suspended {
		if ready, err := h.reactor.registry.Ready(h.tag); err == nil && ready {
			h.state = ReadyToConsume
		}
	}
	return h.state
}

func (h *Handle) Ready() bool {
	return h.State() == ReadyToConsume
}

// ready also stops a wait on a tag that is no longer live, take reports why.
func (h *Handle) ready() bool {
	ready, err := h.reactor.registry.Ready(h.tag)
	return err != nil || ready
}

// Suspend
// parks the handle until its completion arrives, a non-nil waker runs once from the
// dispatcher and replaces any earlier one. It reports ready without parking when the
// completion is already there.
func (h *Handle) Suspend(waker func()) (bool, error) {
	switch h.State() {
	case ReadyToConsume:
		return true, nil
	case Consumed:
		return false, ErrHandleConsumed
	case CancelRequested:
		return false, ErrHandleCanceled
	}
	var ready bool
	var err error
	if waker != nil {
		ready, err = h.reactor.registry.SetWaker(h.tag, waker)
	} else {
		ready, err = h.reactor.registry.Ready(h.tag)
	}
	if err != nil {
		return false, err
	}
	if ready {
		h.state = ReadyToConsume
		return true, nil
	}
	h.state = Suspended
	return false, nil
}

// Poll
// consumes the result if it is ready, without driving the reactor.
func (h *Handle) Poll() (Result, bool, error) {
	switch h.State() {
	case ReadyToConsume:
		result, err := h.take()
		return result, err == nil, err
	case Consumed:
		return Result{}, false, ErrHandleConsumed
	case CancelRequested:
		return Result{}, false, ErrHandleCanceled
	default:
		return Result{}, false, nil
	}
}

// Wait
// drives the reactor until the operation completes and consumes its result.
// When ctx ends first the operation is abandoned and ErrUncompleted is returned.
// A multishot handle returns one result per call until a result without More.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	if _, err := h.Suspend(nil); err != nil {
		return Result{}, err
	}
	done := ctx.Done()
	for {
		if h.Ready() {
			return h.take()
		}
		timeout := time.Duration(-1)
		if done != nil {
			select {
			case <-done:
				_ = h.Cancel()
				return Result{}, newOpError(errMetaOpWait, errors.From(ErrUncompleted, errors.WithWrap(ctx.Err())))
			default:
			}
			timeout = waitSlice
			if deadline, ok := ctx.Deadline(); ok {
				timeout = max(min(timeout, time.Until(deadline)), 0)
			}
		}
		if err := h.reactor.DriveUntil(h.ready, timeout); err != nil && !IsTimeout(err) {
			return Result{}, err
		}
	}
}

// Cancel
// abandons the operation. Its resource stays with the reactor until the kernel
// reports the operation finished, the handle can no longer produce a result.
func (h *Handle) Cancel() error {
	switch h.State() {
	case Consumed:
		return ErrHandleConsumed
	case CancelRequested:
		return nil
	}
	h.state = CancelRequested
	runtime.SetFinalizer(h, nil)
	if err := h.reactor.abandon(h.tag, h.multishot); err != nil {
		return newOpError(errMetaOpCancel, err)
	}
	return nil
}

func (h *Handle) take() (Result, error) {
	outcome, err := h.reactor.registry.Take(h.tag)
	if err != nil {
		return Result{}, err
	}
	if outcome.Final {
		h.state = Consumed
		runtime.SetFinalizer(h, nil)
	} else {
		h.state = Created
	}
	return Result{
		Kind:     h.kind,
		Res:      outcome.Res,
		Flags:    outcome.Flags,
		Resource: outcome.Resource,
	}, nil
}
