//go:build linux
// +build linux

// File: reactor/uring_types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// io_uring ABI types and constants (include/uapi/linux/io_uring.h).

package reactor

const (
	uringOffSQRing = 0
	uringOffCQRing = 0x8000000
	uringOffSQEs   = 0x10000000

	uringFeatSingleMmap = 1 << 0
	uringFeatRWCurPos   = 1 << 3

	uringEnterGetEvents = 1 << 0

	uringOpPollAdd       = 6
	uringOpPollRemove    = 7
	uringOpTimeout       = 11
	uringOpTimeoutRemove = 12
	uringOpRead          = 22
	uringOpWrite         = 23

	uringMinEntries = 64
	uringMaxEntries = 4096
)

// uringSQRingOffsets mirrors struct io_sqring_offsets.
type uringSQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

// uringCQRingOffsets mirrors struct io_cqring_offsets.
type uringCQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	CQEs        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

// uringParams mirrors struct io_uring_params.
type uringParams struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        uringSQRingOffsets
	CQOff        uringCQRingOffsets
}

// uringSQE mirrors the 64-byte struct io_uring_sqe.
type uringSQE struct {
	Opcode      uint8
	Flags       uint8
	IOPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpFlags     uint32 // poll32_events, rw_flags, timeout_flags
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_           uint64
}

// uringCQE mirrors struct io_uring_cqe.
type uringCQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// kernelTimespec mirrors struct __kernel_timespec, 64-bit on every arch.
type kernelTimespec struct {
	Sec  int64
	Nsec int64
}
