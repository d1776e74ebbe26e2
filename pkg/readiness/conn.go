// Package readiness adapts a plain file descriptor to a reactor. Instead of handing
// buffers to the kernel it waits for readiness with IORING_OP_POLL_ADD and then does
// the I/O itself, so libraries that expect ordinary read and write semantics work
// unchanged.
package readiness

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/ringo"
	"golang.org/x/sys/unix"
)

var ErrClosed = errors.Define("readiness: use of closed conn")

const (
	errMetaPkgKey  = "pkg"
	errMetaPkgVal  = "readiness"
	errMetaOpKey   = "op"
	errMetaFdKey   = "fd"
	errMetaOpRead  = "read"
	errMetaOpWrite = "write"
	errMetaOpPoll  = "poll"
	errMetaOpShut  = "shutdown"
	errMetaOpClose = "close"
)

// Conn
// drives a nonblocking descriptor through the reactor that owns the calling goroutine.
type Conn struct {
	reactor *ringo.Reactor
	fd      int
	closed  bool
}

// New
// switches fd to nonblocking mode and binds it to r.
func New(r *ringo.Reactor, fd int) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, newError(errMetaOpPoll, fd, os.NewSyscallError("setnonblock", err))
	}
	return &Conn{reactor: r, fd: fd}, nil
}

func (c *Conn) Fd() int {
	return c.fd
}

// Read
// reads into p, waiting for POLLIN while nothing is buffered. It returns io.EOF
// once the peer has shut down its writing side.
func (c *Conn) Read(ctx context.Context, p []byte) (int, error) {
	if c.closed {
		return 0, newError(errMetaOpRead, c.fd, ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == nil && n == 0:
			return 0, io.EOF
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case !errors.Is(err, unix.EAGAIN):
			return 0, newError(errMetaOpRead, c.fd, os.NewSyscallError("read", err))
		}
		if err = c.await(ctx, unix.POLLIN); err != nil {
			return 0, err
		}
	}
}

// Write
// writes all of p, waiting for POLLOUT whenever the descriptor is full.
func (c *Conn) Write(ctx context.Context, p []byte) (int, error) {
	if c.closed {
		return 0, newError(errMetaOpWrite, c.fd, ErrClosed)
	}
	written := 0
	for written < len(p) {
		n, err := unix.Write(c.fd, p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, unix.EINTR):
			continue
		case !errors.Is(err, unix.EAGAIN):
			return written, newError(errMetaOpWrite, c.fd, os.NewSyscallError("write", err))
		}
		if err = c.await(ctx, unix.POLLOUT); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (c *Conn) await(ctx context.Context, events uint32) error {
	h, err := c.reactor.Submit(ringo.PollAdd(c.fd, events))
	if err != nil {
		return newError(errMetaOpPoll, c.fd, err)
	}
	result, err := h.Wait(ctx)
	if err != nil {
		return newError(errMetaOpPoll, c.fd, err)
	}
	if err = result.Err(); err != nil {
		return newError(errMetaOpPoll, c.fd, err)
	}
	return nil
}

// Shutdown
// shuts down both directions of a socket through the ring.
func (c *Conn) Shutdown(ctx context.Context) error {
	if c.closed {
		return newError(errMetaOpShut, c.fd, ErrClosed)
	}
	return c.exec(ctx, errMetaOpShut, ringo.Shutdown(c.fd, unix.SHUT_RDWR))
}

// Close
// closes the descriptor through the ring, the conn is unusable afterwards.
func (c *Conn) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.exec(ctx, errMetaOpClose, ringo.Close(c.fd))
}

func (c *Conn) exec(ctx context.Context, op string, desc ringo.Descriptor) error {
	h, err := c.reactor.Submit(desc)
	if err != nil {
		return newError(op, c.fd, err)
	}
	result, err := h.Wait(ctx)
	if err != nil {
		return newError(op, c.fd, err)
	}
	if err = result.Err(); err != nil {
		return newError(op, c.fd, err)
	}
	return nil
}

func newError(op string, fd int, err error) error {
	return errors.New(
		op+" failed",
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithMeta(errMetaFdKey, strconv.Itoa(fd)),
		errors.WithWrap(err),
	)
}
