package ringo

import (
	"syscall"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/ringo/pkg/registry"
)

var (
	ErrRingFull           = errors.Define("ringo: submission ring full")
	ErrRegistryFull       = registry.ErrRegistryFull
	ErrStaleTag           = registry.ErrStaleTag
	ErrStillPending       = registry.ErrStillPending
	ErrProtocolViolation  = registry.ErrProtocolViolation
	ErrShutdownInProgress = errors.Define("ringo: shutdown in progress")
	ErrShutdownIncomplete = errors.Define("ringo: shutdown left operations in flight")
	ErrClosed             = errors.Define("ringo: closed")
	ErrKernel             = errors.Define("ringo: kernel transition failed")
	ErrReentrantDrive     = errors.Define("ringo: drive called from within a completion callback")
	ErrTimeout            = errors.Define("ringo: timeout")
	ErrStalled            = errors.Define("ringo: nothing in flight can satisfy the wait")
	ErrUncompleted        = errors.Define("ringo: uncompleted")
	ErrHandleConsumed     = errors.Define("ringo: handle already consumed")
	ErrHandleCanceled     = errors.Define("ringo: handle canceled")
	ErrUnsupported        = errors.Define("ringo: unsupported")
)

func IsRingFull(err error) bool {
	return errors.Is(err, ErrRingFull)
}

func IsRegistryFull(err error) bool {
	return errors.Is(err, ErrRegistryFull)
}

// IsBusy
// reports a recoverable capacity error, the caller may retry after driving completions.
func IsBusy(err error) bool {
	return IsRingFull(err) || IsRegistryFull(err)
}

func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

func IsShutdown(err error) bool {
	return errors.Is(err, ErrShutdownInProgress) || errors.Is(err, ErrClosed)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsUncompleted(err error) bool {
	return errors.Is(err, ErrUncompleted)
}

// IsCanceled
// reports a kernel result of ECANCELED, as produced by async cancel or a fired link timeout.
func IsCanceled(err error) bool {
	return errors.Is(err, syscall.ECANCELED)
}

// IsTimedOut
// reports a kernel result of ETIME.
func IsTimedOut(err error) bool {
	return errors.Is(err, syscall.ETIME)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "ringo"
)

const (
	errMetaOpKey      = "op"
	errMetaOpSubmit   = "submit"
	errMetaOpLink     = "link"
	errMetaOpFlush    = "flush"
	errMetaOpDrive    = "drive"
	errMetaOpWait     = "wait"
	errMetaOpCancel   = "cancel"
	errMetaOpClose    = "close"
	errMetaOpDispatch = "dispatch"
	errMetaOpOpen     = "open"
)

func newOpError(op string, err error) error {
	return errors.New(
		op+" failed",
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(err),
	)
}
