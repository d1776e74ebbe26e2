// Command ringo runs small demonstrations of the reactor against the running kernel.
//
// Usage:
//
//	ringo [--demo=link|timeout] [--entries=64] [--timeout=5s] [--cpu=N] [--priority=normal|high|idle] [--verbose]
//
// The link demo submits two linked no-ops. The timeout demo reads stdin bounded by a
// linked timeout and reports whether the read or the timeout won. With --cpu the
// driving thread is bound to one CPU before the ring is set up.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/brickingsoft/ringo"
	"github.com/brickingsoft/ringo/pkg/process"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	demo     string
	entries  uint32
	timeout  time.Duration
	cpu      int
	priority process.Priority
	verbose  bool
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	flagSet := flag.NewFlagSet("ringo", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	var opts options
	flagSet.StringVar(&opts.demo, "demo", "link", "Demo to run: link or timeout")
	flagSet.Uint32Var(&opts.entries, "entries", 64, "Ring entries")
	flagSet.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Linked timeout of the stdin read")
	flagSet.IntVar(&opts.cpu, "cpu", -1, "Bind the driving thread to this CPU")
	priority := flagSet.String("priority", "normal", "Driving thread priority: normal, high or idle")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "Log reactor internals")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if flagSet.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	var ok bool
	if opts.priority, ok = process.ParsePriority(*priority); !ok {
		return opts, fmt.Errorf("unknown priority %q", *priority)
	}
	return opts, nil
}

func run(args []string, out io.Writer, errOut io.Writer) error {
	opts, err := parseFlags(args, errOut)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(errOut)
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if opts.cpu >= 0 {
		release, pinErr := process.PinThread(opts.cpu)
		if pinErr != nil {
			return pinErr
		}
		defer release()
	}
	if opts.priority != process.Normal {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err = process.SetThreadPriority(opts.priority); err != nil {
			logger.WithError(err).Warn("priority unchanged")
		}
	}

	r, err := ringo.Open(
		ringo.WithEntries(opts.entries),
		ringo.WithLogger(logger.WithField("pkg", "ringo")),
	)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("close failed")
		}
	}()

	ctx := context.Background()
	switch opts.demo {
	case "link":
		return linkDemo(ctx, r, out)
	case "timeout":
		return timeoutDemo(ctx, r, out, opts.timeout)
	default:
		return fmt.Errorf("unknown demo %q", opts.demo)
	}
}

func linkDemo(ctx context.Context, r *ringo.Reactor, out io.Writer) error {
	handles, err := r.Link(ringo.Nop(), ringo.Nop())
	if err != nil {
		return err
	}
	for i, h := range handles {
		result, waitErr := h.Wait(ctx)
		if waitErr != nil {
			return waitErr
		}
		fmt.Fprintf(out, "nop %d (%s) completed: res=%d\n", i+1, h.Tag(), result.Res)
	}
	return nil
}

func timeoutDemo(ctx context.Context, r *ringo.Reactor, out io.Writer, timeout time.Duration) error {
	op, expiry, err := r.LinkTimeout(ringo.Read(int(os.Stdin.Fd()), make([]byte, 512), 0), timeout)
	if err != nil {
		return err
	}
	read, err := op.Wait(ctx)
	if err != nil {
		return err
	}
	fired, err := expiry.Wait(ctx)
	if err != nil {
		return err
	}

	switch readErr := read.Err(); {
	case readErr == nil:
		fmt.Fprintf(out, "managed to read %d bytes before timeout\n", read.N())
	case ringo.IsCanceled(readErr) && ringo.IsTimedOut(fired.Err()):
		fmt.Fprintln(out, "read operation timed out")
	default:
		return errors.Join(readErr, fired.Err())
	}
	return nil
}
