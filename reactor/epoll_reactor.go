//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-dcp/api"
	"golang.org/x/sys/unix"
)

// epollReactor implements api.Reactor using Linux epoll.
type epollReactor struct {
	epfd   int // epoll file descriptor, -1 once closed
	reg    *registry
	events []unix.EpollEvent
}

// newEpollReactor creates a new instance of epollReactor.
func newEpollReactor(cfg Config) (*epollReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{
		epfd:   epfd,
		reg:    newRegistry(),
		events: make([]unix.EpollEvent, cfg.MaxEvents),
	}, nil
}

func epollMask(interest api.Interest) uint32 {
	ev := uint32(unix.EPOLLRDHUP)
	if interest.Readable {
		ev |= unix.EPOLLIN
	}
	if interest.Writable {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// epollEvent stores the token in the 64-bit epoll data word.
func epollEvent(tok api.Token, interest api.Interest) *unix.EpollEvent {
	return &unix.EpollEvent{
		Events: epollMask(interest),
		Fd:     int32(uint32(tok)),
		Pad:    int32(uint32(uint64(tok) >> 32)),
	}
}

func epollToken(ev *unix.EpollEvent) api.Token {
	return api.Token(uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32)
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd uintptr, interest api.Interest) (api.Token, error) {
	if r.epfd < 0 {
		return 0, api.ErrReactorClosed
	}
	tok := r.reg.peek()
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), epollEvent(tok, interest)); err != nil {
		if prev, ok := r.reg.tokenOf(fd); ok && errors.Is(err, unix.EEXIST) {
			return 0, alreadyRegistered("epoll register", fd, prev, err)
		}
		return 0, fmt.Errorf("epoll ctl add: %w", err)
	}
	// The kernel dropped any earlier watch on a reused fd number when it was
	// closed, so a displaced token needs no cleanup here.
	r.reg.commit(tok, fd, interest)
	return tok, nil
}

// Modify changes the interest set of a registered descriptor.
func (r *epollReactor) Modify(tok api.Token, interest api.Interest) error {
	if r.epfd < 0 {
		return api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return notFound("epoll modify", tok)
	}
	if !r.reg.current(tok) {
		return staleToken("epoll modify", tok, reg.fd)
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(reg.fd), epollEvent(tok, interest)); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	r.reg.setInterest(tok, interest)
	return nil
}

// Deregister removes a descriptor from the epoll watch list.
func (r *epollReactor) Deregister(tok api.Token) error {
	if r.epfd < 0 {
		return api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return notFound("epoll deregister", tok)
	}
	// A stale token's fd number now belongs to another registration.
	if r.reg.current(tok) {
		err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(reg.fd), nil)
		if err != nil && !alreadyGone(err) {
			return fmt.Errorf("epoll ctl del: %w", err)
		}
	}
	r.reg.remove(tok)
	return nil
}

// Poll blocks and waits for events on registered file descriptors.
func (r *epollReactor) Poll(timeout time.Duration) ([]api.Event, error) {
	if r.epfd < 0 {
		return nil, api.ErrReactorClosed
	}
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil // interrupted by signal
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}

	out := make([]api.Event, 0, n)
	for i := 0; i < n; i++ {
		raw := &r.events[i]
		tok := epollToken(raw)
		if _, ok := r.reg.lookup(tok); !ok {
			continue
		}
		ev := api.NewEvent(tok)
		if raw.Events&unix.EPOLLIN != 0 {
			ev = ev.WithReadable()
		}
		if raw.Events&unix.EPOLLOUT != 0 {
			ev = ev.WithWritable()
		}
		if raw.Events&unix.EPOLLERR != 0 {
			ev = ev.WithError()
		}
		if raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			ev = ev.WithClosed()
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *epollReactor) SubmitRead(api.Token, []byte) (*api.Completion, error)  { return nil, nil }
func (r *epollReactor) SubmitWrite(api.Token, []byte) (*api.Completion, error) { return nil, nil }
func (r *epollReactor) SupportsAsyncIO() bool                                  { return false }
func (r *epollReactor) Name() string                                           { return BackendEpoll }

// Close releases the epoll file descriptor.
func (r *epollReactor) Close() error {
	if r.epfd < 0 {
		return nil
	}
	fd := r.epfd
	r.epfd = -1
	return unix.Close(fd)
}
