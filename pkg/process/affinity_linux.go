//go:build linux

package process

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinThread
// locks the calling goroutine to its OS thread and restricts that thread to cpu,
// wrapped around the online CPUs. The returned func restores the previous mask and
// unlocks the thread.
func PinThread(cpu int) (func(), error) {
	runtime.LockOSThread()
	var previous unix.CPUSet
	if err := unix.SchedGetaffinity(0, &previous); err != nil {
		runtime.UnlockOSThread()
		return nil, os.NewSyscallError("sched_getaffinity", err)
	}
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		runtime.UnlockOSThread()
		return nil, os.NewSyscallError("sched_setaffinity", err)
	}
	return func() {
		_ = unix.SchedSetaffinity(0, &previous)
		runtime.UnlockOSThread()
	}, nil
}

// SetThreadPriority
// sets the nice value of the calling OS thread. Raising priority needs CAP_SYS_NICE.
func SetThreadPriority(priority Priority) error {
	nice := 0
	switch priority {
	case High:
		nice = -10
	case Idle:
		nice = 15
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice); err != nil {
		return os.NewSyscallError("setpriority", err)
	}
	return nil
}
