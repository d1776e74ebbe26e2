//go:build linux

package liburing

import (
	"errors"
)

type SQRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

type CQRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

// Params
// is io_uring_params.
type Params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        SQRingOffsets
	cqOff        CQRingOffsets
}

// Validate
// drops setup flags the running kernel does not understand.
func (params *Params) Validate() error {
	version := GetVersion()
	if !version.Valid() {
		return errors.New("get kernel version failed")
	}
	if !version.GTE(5, 1, 0) {
		return errors.New("kernel version must be at least 5.1")
	}

	flags := params.flags & (IORING_SETUP_IOPOLL | IORING_SETUP_CLAMP)
	if params.flags&IORING_SETUP_SQPOLL != 0 && version.GTE(5, 13, 0) {
		flags |= IORING_SETUP_SQPOLL
		if params.flags&IORING_SETUP_SQ_AFF != 0 {
			flags |= IORING_SETUP_SQ_AFF
		}
		if params.sqThreadIdle == 0 {
			params.sqThreadIdle = 15000
		}
	}
	if params.flags&IORING_SETUP_CQSIZE != 0 && params.cqEntries > 0 {
		flags |= IORING_SETUP_CQSIZE
	}
	if params.flags&IORING_SETUP_SUBMIT_ALL != 0 && version.GTE(5, 18, 0) {
		flags |= IORING_SETUP_SUBMIT_ALL
	}
	if flags&IORING_SETUP_SQPOLL == 0 {
		if params.flags&IORING_SETUP_COOP_TASKRUN != 0 && version.GTE(5, 19, 0) {
			flags |= IORING_SETUP_COOP_TASKRUN
			if params.flags&IORING_SETUP_TASKRUN_FLAG != 0 {
				flags |= IORING_SETUP_TASKRUN_FLAG
			}
		}
		if params.flags&IORING_SETUP_SINGLE_ISSUER != 0 && version.GTE(6, 0, 0) {
			flags |= IORING_SETUP_SINGLE_ISSUER
			if params.flags&IORING_SETUP_DEFER_TASKRUN != 0 && version.GTE(6, 1, 0) {
				flags |= IORING_SETUP_DEFER_TASKRUN
			}
		}
	}
	params.flags = flags
	return nil
}
