//go:build linux

package futex_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/brickingsoft/ringo"
	"github.com/brickingsoft/ringo/pkg/futex"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func open(t *testing.T) *ringo.Reactor {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r, err := ringo.Open(ringo.WithEntries(8), ringo.WithLogger(logger))
	if err != nil {
		t.Skip("io_uring unavailable:", err)
	}
	if !futex.Supported(r) {
		_ = r.Close()
		t.Skip("kernel lacks io_uring futex operations")
	}
	return r
}

func TestSemaphore_Kernel(t *testing.T) {
	releaser := open(t)
	defer releaser.Close()
	s := futex.NewSemaphore(0)

	acquired := make(chan error, 1)
	go func() {
		r, err := ringo.Open(ringo.WithEntries(8))
		if err != nil {
			acquired <- err
			return
		}
		defer r.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		acquired <- s.Acquire(ctx, r)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.Release(context.Background(), releaser); err != nil {
		t.Fatal(err)
	}
	if err := <-acquired; err != nil {
		t.Fatal(err)
	}
}

func TestMutex_Kernel(t *testing.T) {
	probe := open(t)
	_ = probe.Close()

	const workers, rounds = 4, 200
	m := futex.NewMutex()
	counter := 0
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			r, err := ringo.Open(ringo.WithEntries(8))
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := context.Background()
			for j := 0; j < rounds; j++ {
				if err = m.Lock(ctx, r); err != nil {
					return err
				}
				counter++
				if err = m.Unlock(ctx, r); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if counter != workers*rounds {
		t.Error("lost updates", counter)
	}
}
