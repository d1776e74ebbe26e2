package ringo

import (
	"errors"
	"time"

	"github.com/brickingsoft/ringo/pkg/liburing"
	"github.com/sirupsen/logrus"
)

const (
	DefaultEntries         = liburing.DefaultEntries
	DefaultShutdownTimeout = 5 * time.Second
)

type Options struct {
	Entries      uint32
	Flags        uint32
	SQThreadIdle time.Duration
	Logger       logrus.FieldLogger
	// ShutdownTimeout bounds how long Close drains in-flight operations.
	ShutdownTimeout time.Duration
	// AsyncCancel asks the kernel to cancel abandoned one-shot operations.
	// Multishot operations are always canceled, they would never end otherwise.
	AsyncCancel bool
	// CancelOnClose cancels everything still in flight when Close starts draining.
	CancelOnClose bool
}

type Option func(options *Options) (err error)

// WithEntries
// setup ring entries, also the maximum number of live operations.
func WithEntries(entries uint32) Option {
	return func(options *Options) (err error) {
		if entries == 0 {
			err = errors.New("ringo: entries must be greater than zero")
			return
		}
		if entries > liburing.MaxEntries {
			entries = liburing.MaxEntries
		}
		options.Entries = liburing.RoundupPow2(entries)
		return
	}
}

// WithFlags
// setup IORING_SETUP_* flags, unsupported ones are dropped for the running kernel.
func WithFlags(flags uint32) Option {
	return func(options *Options) (err error) {
		options.Flags |= flags
		return
	}
}

// WithSQPoll
// let a kernel thread poll the submission ring.
func WithSQPoll(idle time.Duration) Option {
	return func(options *Options) (err error) {
		options.Flags |= liburing.IORING_SETUP_SQPOLL
		options.SQThreadIdle = idle
		return
	}
}

// WithLogger
// setup the logger, defaults to the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(options *Options) (err error) {
		if logger == nil {
			err = errors.New("ringo: logger is nil")
			return
		}
		options.Logger = logger
		return
	}
}

// WithShutdownTimeout
// setup how long Close waits for in-flight operations, a negative value waits forever.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(options *Options) (err error) {
		options.ShutdownTimeout = timeout
		return
	}
}

// WithAsyncCancel
// submit IORING_OP_ASYNC_CANCEL for abandoned one-shot operations.
func WithAsyncCancel(enable bool) Option {
	return func(options *Options) (err error) {
		options.AsyncCancel = enable
		return
	}
}

// WithCancelOnClose
// cancel all in-flight operations when closing.
func WithCancelOnClose(enable bool) Option {
	return func(options *Options) (err error) {
		options.CancelOnClose = enable
		return
	}
}

func defaultOptions() Options {
	return Options{
		Entries:         DefaultEntries,
		ShutdownTimeout: DefaultShutdownTimeout,
		CancelOnClose:   true,
	}
}
