//go:build linux

package readiness_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/brickingsoft/ringo"
	"github.com/brickingsoft/ringo/pkg/readiness"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func TestConn_Kernel(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r, err := ringo.Open(ringo.WithEntries(8), ringo.WithLogger(logger))
	if err != nil {
		t.Skip("io_uring unavailable:", err)
	}
	defer r.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fds[1])
	conn, err := readiness.New(r, fds[0])
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = unix.Write(fds[1], []byte("late"))
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b := make([]byte, 8)
	n, err := conn.Read(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if string(b[:n]) != "late" {
		t.Fatal("unexpected data", string(b[:n]))
	}
	if err = conn.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
