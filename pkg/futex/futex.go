// Package futex provides synchronization between goroutines that each drive their
// own reactor. Waiting parks an asynchronous futex wait on the caller's reactor, so
// a goroutine blocked on a lock keeps dispatching its other completions.
//
// The kernel must implement IORING_OP_FUTEX_WAIT and IORING_OP_FUTEX_WAKE (6.7+).
package futex

import (
	"context"
	"math"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/ringo"
	"github.com/brickingsoft/ringo/pkg/liburing"
	"golang.org/x/sys/unix"
)

var ErrUnsupported = errors.Define("futex: io_uring futex operations are not supported")

const wakeAll = math.MaxInt32

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "futex"
	errMetaOpKey  = "op"
)

// Supported
// reports whether r can submit futex operations.
func Supported(r *ringo.Reactor) bool {
	return r.Supports(ringo.Kind(liburing.IORING_OP_FUTEX_WAIT)) && r.Supports(ringo.Kind(liburing.IORING_OP_FUTEX_WAKE))
}

// wait
// sleeps while *word holds expected. A changed word is reported as success,
// callers re-check their condition anyway.
func wait(ctx context.Context, r *ringo.Reactor, word *uint32, expected uint32) error {
	result, err := await(ctx, r, ringo.FutexWait(word, expected))
	if err != nil {
		return wrap("wait", err)
	}
	if err = result.Err(); err != nil && !errors.Is(err, unix.EAGAIN) {
		return wrap("wait", err)
	}
	return nil
}

// wake
// wakes at most n waiters of word.
func wake(ctx context.Context, r *ringo.Reactor, word *uint32, n uint32) error {
	result, err := await(ctx, r, ringo.FutexWake(word, n))
	if err != nil {
		return wrap("wake", err)
	}
	if err = result.Err(); err != nil {
		return wrap("wake", err)
	}
	return nil
}

func await(ctx context.Context, r *ringo.Reactor, desc ringo.Descriptor) (ringo.Result, error) {
	h, err := r.Submit(desc)
	if err != nil {
		return ringo.Result{}, err
	}
	return h.Wait(ctx)
}

func wrap(op string, err error) error {
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP) {
		err = errors.From(ErrUnsupported, errors.WithWrap(err))
	}
	return errors.New(
		op+" failed",
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(err),
	)
}
