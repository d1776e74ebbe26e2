//go:build linux

package liburing

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const IORING_REGISTER_PROBE = 8

const probeOpsSize = 256

const IO_URING_OP_SUPPORTED uint16 = 1 << 0

type ProbeOp struct {
	Op    uint8
	Res   uint8
	Flags uint16
	Res2  uint32
}

type Probe struct {
	LastOp uint8
	OpsLen uint8
	Res    uint16
	Res2   [3]uint32
	Ops    [probeOpsSize]ProbeOp
}

func (p *Probe) IsSupported(op uint8) bool {
	if op > p.LastOp {
		return false
	}
	for i := uint8(0); i < p.OpsLen; i++ {
		if p.Ops[i].Op == op {
			return p.Ops[i].Flags&IO_URING_OP_SUPPORTED != 0
		}
	}
	return false
}

func (ring *Ring) Probe() (*Probe, error) {
	probe := &Probe{}
	_, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_REGISTER,
		uintptr(ring.ringFd),
		IORING_REGISTER_PROBE,
		uintptr(unsafe.Pointer(probe)),
		probeOpsSize,
		0, 0,
	)
	if errno != 0 {
		return nil, os.NewSyscallError("io_uring_register", errno)
	}
	return probe, nil
}

// GetProbe
// probes opcode support through a short-lived ring.
func GetProbe() (*Probe, error) {
	ring, err := New(WithEntries(2))
	if err != nil {
		return nil, err
	}
	defer ring.Close()
	return ring.Probe()
}
