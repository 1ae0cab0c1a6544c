//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - BSD/macOS kqueue implementation.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-dcp/api"
	"golang.org/x/sys/unix"
)

// kqueueReactor implements api.Reactor using kqueue(2). Events are keyed
// by descriptor; the registry maps them back to tokens.
type kqueueReactor struct {
	kq     int
	reg    *registry
	events []unix.Kevent_t
}

func newKqueueReactor(cfg Config) (*kqueueReactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue create: %w", err)
	}
	unix.CloseOnExec(kq)
	return &kqueueReactor{
		kq:     kq,
		reg:    newRegistry(),
		events: make([]unix.Kevent_t, cfg.MaxEvents),
	}, nil
}

func kevent(fd uintptr, filter int16, flags uint16) unix.Kevent_t {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, int(fd), int(filter), int(flags))
	return ev
}

// changes builds the filter updates turning interest from into to.
func kqueueChanges(fd uintptr, from, to api.Interest) []unix.Kevent_t {
	var out []unix.Kevent_t
	switch {
	case to.Readable && !from.Readable:
		out = append(out, kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE))
	case !to.Readable && from.Readable:
		out = append(out, kevent(fd, unix.EVFILT_READ, unix.EV_DELETE))
	}
	switch {
	case to.Writable && !from.Writable:
		out = append(out, kevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE))
	case !to.Writable && from.Writable:
		out = append(out, kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE))
	}
	return out
}

func (r *kqueueReactor) apply(changes []unix.Kevent_t) error {
	if len(changes) == 0 {
		return nil
	}
	for {
		_, err := unix.Kevent(r.kq, changes, nil, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

// Register adds filters for fd according to interest. Closing a descriptor
// drops its kevents, so a token left behind on a reused fd number only
// loses its binding.
func (r *kqueueReactor) Register(fd uintptr, interest api.Interest) (api.Token, error) {
	if r.kq < 0 {
		return 0, api.ErrReactorClosed
	}
	ident, err := identify(fd)
	if err != nil {
		return 0, fmt.Errorf("kqueue register: %w", err)
	}
	if prev, dup := duplicateOf(r.reg, fd, ident); dup {
		return 0, alreadyRegistered("kqueue register", fd, prev, unix.EEXIST)
	}
	if err := r.apply(kqueueChanges(fd, api.Interest{}, interest)); err != nil {
		// A half-applied change set must not outlive the failed call.
		_ = r.apply(kqueueChanges(fd, interest, api.Interest{}))
		return 0, fmt.Errorf("kevent add: %w", err)
	}
	tok := r.reg.peek()
	r.reg.commitIdent(tok, fd, interest, ident)
	return tok, nil
}

// Modify adds and removes filters to match interest.
func (r *kqueueReactor) Modify(tok api.Token, interest api.Interest) error {
	if r.kq < 0 {
		return api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return notFound("kqueue modify", tok)
	}
	if !r.reg.current(tok) {
		return staleToken("kqueue modify", tok, reg.fd)
	}
	if err := r.apply(kqueueChanges(reg.fd, reg.interest, interest)); err != nil {
		return fmt.Errorf("kevent modify: %w", err)
	}
	r.reg.setInterest(tok, interest)
	return nil
}

// Deregister deletes every filter of tok.
func (r *kqueueReactor) Deregister(tok api.Token) error {
	if r.kq < 0 {
		return api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return notFound("kqueue deregister", tok)
	}
	// Filters are deleted one by one so ENOENT on one does not skip the other.
	// A stale token's fd number belongs to a newer registration.
	if r.reg.current(tok) {
		for _, ch := range kqueueChanges(reg.fd, reg.interest, api.Interest{}) {
			if err := r.apply([]unix.Kevent_t{ch}); err != nil && !alreadyGone(err) {
				return fmt.Errorf("kevent delete: %w", err)
			}
		}
	}
	r.reg.remove(tok)
	return nil
}

// Poll waits for filter events and merges them per token.
func (r *kqueueReactor) Poll(timeout time.Duration) ([]api.Event, error) {
	if r.kq < 0 {
		return nil, api.ErrReactorClosed
	}
	n, err := unix.Kevent(r.kq, nil, r.events, timespec(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("kevent wait: %w", err)
	}

	out := make([]api.Event, 0, n)
	index := make(map[api.Token]int, n)
	for i := 0; i < n; i++ {
		raw := &r.events[i]
		tok, ok := r.reg.tokenOf(uintptr(raw.Ident))
		if !ok {
			continue
		}
		ev := api.NewEvent(tok)
		switch raw.Filter {
		case unix.EVFILT_READ:
			ev = ev.WithReadable()
		case unix.EVFILT_WRITE:
			ev = ev.WithWritable()
		}
		if raw.Flags&unix.EV_ERROR != 0 {
			ev = ev.WithError()
		}
		if raw.Flags&unix.EV_EOF != 0 {
			ev = ev.WithClosed()
		}
		if j, seen := index[tok]; seen {
			out[j] = out[j].Merge(ev)
			continue
		}
		index[tok] = len(out)
		out = append(out, ev)
	}
	return out, nil
}

func (r *kqueueReactor) SubmitRead(api.Token, []byte) (*api.Completion, error)  { return nil, nil }
func (r *kqueueReactor) SubmitWrite(api.Token, []byte) (*api.Completion, error) { return nil, nil }
func (r *kqueueReactor) SupportsAsyncIO() bool                                  { return false }
func (r *kqueueReactor) Name() string                                           { return BackendKqueue }

// Close releases the kqueue descriptor.
func (r *kqueueReactor) Close() error {
	if r.kq < 0 {
		return nil
	}
	kq := r.kq
	r.kq = -1
	return unix.Close(kq)
}
