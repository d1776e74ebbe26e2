package liburing

import (
	"errors"
	"time"
)

const (
	MaxEntries     = 32768
	DefaultEntries = 256
)

type Options struct {
	Entries      uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle time.Duration
}

type Option func(*Options) error

// WithEntries
// setup submission ring entries, rounded up to a power of two.
func WithEntries(entries uint32) Option {
	return func(o *Options) error {
		if entries == 0 {
			return errors.New("entries must be greater than zero")
		}
		if entries > MaxEntries {
			entries = MaxEntries
		}
		o.Entries = RoundupPow2(entries)
		return nil
	}
}

// WithFlags
// setup IORING_SETUP_* flags.
func WithFlags(flags uint32) Option {
	return func(o *Options) error {
		o.Flags |= flags
		return nil
	}
}

// WithSQThreadCPU
// pins the sq poll thread, only meaningful with IORING_SETUP_SQPOLL.
func WithSQThreadCPU(cpu uint32) Option {
	return func(o *Options) error {
		o.SQThreadCPU = cpu
		o.Flags |= IORING_SETUP_SQ_AFF
		return nil
	}
}

// WithSQThreadIdle
// setup idle time before the sq poll thread sleeps.
func WithSQThreadIdle(idle time.Duration) Option {
	return func(o *Options) error {
		if idle < 0 {
			return errors.New("sq thread idle must not be negative")
		}
		o.SQThreadIdle = idle
		return nil
	}
}
