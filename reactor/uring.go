//go:build linux
// +build linux

// File: reactor/uring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal io_uring ring: setup, mmap of SQ/CQ rings, SQE submission and CQE reaping.

package reactor

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// uring owns one io_uring instance and its shared ring mappings.
// It is single-producer/single-consumer: the owning reactor serializes access.
type uring struct {
	fd int

	sqRing []byte
	cqRing []byte // aliases sqRing with IORING_FEAT_SINGLE_MMAP
	sqeMem []byte

	sqHead    *uint32
	sqTail    *uint32
	sqMask    uint32
	sqEntries uint32
	sqArray   []uint32
	sqes      []uringSQE
	localTail uint32

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []uringCQE
}

func nextPow2(n uint32) uint32 {
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

func newURing(entries uint32) (*uring, error) {
	if entries < uringMinEntries {
		entries = uringMinEntries
	}
	if entries > uringMaxEntries {
		entries = uringMaxEntries
	}
	entries = nextPow2(entries)

	var p uringParams
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring setup: %w", errno)
	}
	u := &uring{fd: int(fd)}
	if p.Features&uringFeatRWCurPos == 0 {
		_ = unix.Close(u.fd)
		return nil, fmt.Errorf("io_uring setup: kernel lacks IORING_FEAT_RW_CUR_POS (features %#x)", p.Features)
	}
	if err := u.mapRings(&p); err != nil {
		u.close()
		return nil, err
	}
	return u, nil
}

func (u *uring) mapRings(p *uringParams) error {
	sqSize := int(p.SQOff.Array) + int(p.SQEntries)*4
	cqSize := int(p.CQOff.CQEs) + int(p.CQEntries)*int(unsafe.Sizeof(uringCQE{}))
	single := p.Features&uringFeatSingleMmap != 0
	if single && cqSize > sqSize {
		sqSize = cqSize
	}

	var err error
	u.sqRing, err = unix.Mmap(u.fd, uringOffSQRing, sqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("mmap SQ ring: %w", err)
	}
	if single {
		u.cqRing = u.sqRing
	} else {
		u.cqRing, err = unix.Mmap(u.fd, uringOffCQRing, cqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			return fmt.Errorf("mmap CQ ring: %w", err)
		}
	}
	sqeSize := int(p.SQEntries) * int(unsafe.Sizeof(uringSQE{}))
	u.sqeMem, err = unix.Mmap(u.fd, uringOffSQEs, sqeSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("mmap SQEs: %w", err)
	}

	u.sqHead = (*uint32)(unsafe.Pointer(&u.sqRing[p.SQOff.Head]))
	u.sqTail = (*uint32)(unsafe.Pointer(&u.sqRing[p.SQOff.Tail]))
	u.sqMask = *(*uint32)(unsafe.Pointer(&u.sqRing[p.SQOff.RingMask]))
	u.sqEntries = *(*uint32)(unsafe.Pointer(&u.sqRing[p.SQOff.RingEntries]))
	u.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&u.sqRing[p.SQOff.Array])), p.SQEntries)
	u.sqes = unsafe.Slice((*uringSQE)(unsafe.Pointer(&u.sqeMem[0])), p.SQEntries)
	u.localTail = atomic.LoadUint32(u.sqTail)

	u.cqHead = (*uint32)(unsafe.Pointer(&u.cqRing[p.CQOff.Head]))
	u.cqTail = (*uint32)(unsafe.Pointer(&u.cqRing[p.CQOff.Tail]))
	u.cqMask = *(*uint32)(unsafe.Pointer(&u.cqRing[p.CQOff.RingMask]))
	u.cqes = unsafe.Slice((*uringCQE)(unsafe.Pointer(&u.cqRing[p.CQOff.CQEs])), p.CQEntries)
	return nil
}

// unsubmitted returns SQEs queued locally or not yet consumed by the kernel.
func (u *uring) unsubmitted() uint32 {
	return u.localTail - atomic.LoadUint32(u.sqHead)
}

// getSQE returns a zeroed SQE slot, flushing the queue once when it is full.
func (u *uring) getSQE() (*uringSQE, error) {
	if u.unsubmitted() >= u.sqEntries {
		if _, err := u.enter(0, 0); err != nil {
			return nil, err
		}
		if u.unsubmitted() >= u.sqEntries {
			return nil, fmt.Errorf("io_uring: submission queue full: %w", unix.EBUSY)
		}
	}
	idx := u.localTail & u.sqMask
	sqe := &u.sqes[idx]
	*sqe = uringSQE{}
	u.sqArray[idx] = idx
	u.localTail++
	return sqe, nil
}

// enter publishes queued SQEs and optionally waits for minComplete CQEs.
func (u *uring) enter(minComplete uint32, flags uint32) (int, error) {
	atomic.StoreUint32(u.sqTail, u.localTail)
	n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(u.fd),
		uintptr(u.unsubmitted()), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// reap hands every available CQE to fn and releases the slots.
func (u *uring) reap(fn func(cqe uringCQE)) int {
	head := atomic.LoadUint32(u.cqHead)
	tail := atomic.LoadUint32(u.cqTail)
	n := 0
	for ; head != tail; head++ {
		fn(u.cqes[head&u.cqMask])
		n++
	}
	atomic.StoreUint32(u.cqHead, head)
	return n
}

func (u *uring) close() error {
	if u.sqeMem != nil {
		_ = unix.Munmap(u.sqeMem)
		u.sqeMem = nil
	}
	if u.cqRing != nil && len(u.cqRing) > 0 && (len(u.sqRing) == 0 || &u.cqRing[0] != &u.sqRing[0]) {
		_ = unix.Munmap(u.cqRing)
	}
	u.cqRing = nil
	if u.sqRing != nil {
		_ = unix.Munmap(u.sqRing)
		u.sqRing = nil
	}
	if u.fd < 0 {
		return nil
	}
	fd := u.fd
	u.fd = -1
	return unix.Close(fd)
}

// errnoOf converts a negative CQE result to an error.
func errnoOf(res int32) error {
	return unix.Errno(-res)
}
