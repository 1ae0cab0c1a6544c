//go:build windows
// +build windows

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Windows IOCP implementation.
package reactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-dcp/api"
	"golang.org/x/sys/windows"
)

// iocpOp carries one overlapped operation; it must stay reachable until its
// completion packet is dequeued.
type iocpOp struct {
	ov    windows.Overlapped
	token api.Token
	buf   []byte
	write bool
}

// iocpReactor implements api.AsyncReactor using Windows IOCP. IOCP has no
// readiness model, so events are produced from finished submissions only.
type iocpReactor struct {
	port        windows.Handle
	open        bool
	reg         *registry
	maxEvents   int
	attached    map[uintptr]struct{} // handles ever associated with port
	inflight    map[*windows.Overlapped]*iocpOp
	completions *queue.Queue // of api.Completion
}

// newIOCPReactor creates and returns a new IOCP reactor for Windows.
func newIOCPReactor(cfg Config) (*iocpReactor, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("iocp create: %w", err)
	}
	return &iocpReactor{
		port:        port,
		open:        true,
		reg:         newRegistry(),
		maxEvents:   cfg.MaxEvents,
		attached:    make(map[uintptr]struct{}),
		inflight:    make(map[*windows.Overlapped]*iocpOp),
		completions: queue.New(),
	}, nil
}

// Register associates the handle with the completion port. The completion
// key is unused: packets are routed through their OVERLAPPED, so a handle
// may be deregistered and registered again under a new token.
func (r *iocpReactor) Register(fd uintptr, interest api.Interest) (api.Token, error) {
	if !r.open {
		return 0, api.ErrReactorClosed
	}
	tok := r.reg.peek()
	if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), r.port, 0, 0); err != nil {
		prev, bound := r.reg.tokenOf(fd)
		_, attached := r.attached[fd]
		switch {
		case bound:
			return 0, alreadyRegistered("iocp register", fd, prev, err)
		case attached && errors.Is(err, windows.ERROR_INVALID_PARAMETER):
			// Still associated with this port from an earlier registration.
		default:
			return 0, fmt.Errorf("iocp associate: %w", err)
		}
	}
	r.attached[fd] = struct{}{}
	r.reg.commit(tok, fd, interest)
	return tok, nil
}

// Modify records the new interest; IOCP itself has nothing to update.
func (r *iocpReactor) Modify(tok api.Token, interest api.Interest) error {
	if !r.open {
		return api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return notFound("iocp modify", tok)
	}
	if !r.reg.current(tok) {
		return staleToken("iocp modify", tok, reg.fd)
	}
	r.reg.setInterest(tok, interest)
	return nil
}

// Deregister cancels outstanding I/O on the handle and forgets tok. Windows
// cannot detach a handle from a port, so the association lasts until the
// handle is closed; registering the same open handle again reuses it.
func (r *iocpReactor) Deregister(tok api.Token) error {
	if !r.open {
		return api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return notFound("iocp deregister", tok)
	}
	// A stale token's handle value now belongs to a newer registration.
	if r.reg.current(tok) {
		err := windows.CancelIoEx(windows.Handle(reg.fd), nil)
		if err != nil && !errors.Is(err, windows.ERROR_NOT_FOUND) && !errors.Is(err, windows.ERROR_INVALID_HANDLE) {
			return fmt.Errorf("iocp cancel: %w", err)
		}
	}
	r.reg.remove(tok)
	return nil
}

func (r *iocpReactor) SubmitRead(tok api.Token, buf []byte) (*api.Completion, error) {
	return r.submit(tok, buf, false)
}

func (r *iocpReactor) SubmitWrite(tok api.Token, buf []byte) (*api.Completion, error) {
	return r.submit(tok, buf, true)
}

// submit starts an overlapped ReadFile/WriteFile. Successful starts always
// complete through the port, so the result arrives via Poll.
func (r *iocpReactor) submit(tok api.Token, buf []byte, write bool) (*api.Completion, error) {
	if !r.open {
		return nil, api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return nil, notFound("iocp submit", tok)
	}
	if !r.reg.current(tok) {
		return nil, staleToken("iocp submit", tok, reg.fd)
	}
	if len(buf) == 0 {
		return &api.Completion{Token: tok}, nil
	}
	op := &iocpOp{token: tok, buf: buf, write: write}
	r.inflight[&op.ov] = op

	var err error
	if write {
		err = windows.WriteFile(windows.Handle(reg.fd), buf, nil, &op.ov)
	} else {
		err = windows.ReadFile(windows.Handle(reg.fd), buf, nil, &op.ov)
	}
	switch {
	case err == nil, errors.Is(err, windows.ERROR_IO_PENDING):
		return nil, nil
	case !write && errors.Is(err, windows.ERROR_HANDLE_EOF):
		delete(r.inflight, &op.ov)
		return &api.Completion{Token: tok}, nil
	default:
		delete(r.inflight, &op.ov)
		return nil, fmt.Errorf("iocp submit: %w", err)
	}
}

// Completions returns and clears the completions gathered so far.
func (r *iocpReactor) Completions() []api.Completion {
	if r.completions.Length() == 0 {
		return nil
	}
	out := make([]api.Completion, 0, r.completions.Length())
	for r.completions.Length() > 0 {
		out = append(out, r.completions.Remove().(api.Completion))
	}
	return out
}

func iocpTimeout(d time.Duration) uint32 {
	if d < 0 {
		return windows.INFINITE
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms >= windows.INFINITE {
		ms = windows.INFINITE - 1
	}
	return uint32(ms)
}

// Poll dequeues completion packets, blocking only for the first one.
func (r *iocpReactor) Poll(timeout time.Duration) ([]api.Event, error) {
	if !r.open {
		return nil, api.ErrReactorClosed
	}
	var out []api.Event
	index := make(map[api.Token]int)
	wait := iocpTimeout(timeout)
	for len(out) < r.maxEvents {
		var qty uint32
		var key uintptr
		var ov *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(r.port, &qty, &key, &ov, wait)
		wait = 0
		if ov == nil {
			if err == nil || errors.Is(err, windows.Errno(windows.WAIT_TIMEOUT)) || len(out) > 0 {
				break
			}
			return nil, fmt.Errorf("iocp wait: %w", err)
		}
		op, ok := r.inflight[ov]
		if !ok {
			continue
		}
		delete(r.inflight, ov)

		c := api.Completion{Token: op.token, N: int(qty)}
		if err != nil && !(!op.write && errors.Is(err, windows.ERROR_HANDLE_EOF)) {
			c.Err = err
		}
		r.completions.Add(c)
		if _, live := r.reg.lookup(op.token); !live {
			continue
		}
		ev := api.NewEvent(op.token)
		if op.write {
			ev = ev.WithWritable()
		} else {
			ev = ev.WithReadable()
			if c.Err == nil && c.N == 0 {
				ev = ev.WithClosed()
			}
		}
		if c.Err != nil {
			ev = ev.WithError()
		}
		if j, seen := index[op.token]; seen {
			out[j] = out[j].Merge(ev)
			continue
		}
		index[op.token] = len(out)
		out = append(out, ev)
	}
	return out, nil
}

func (r *iocpReactor) SupportsAsyncIO() bool { return true }
func (r *iocpReactor) Name() string          { return BackendIOCP }

// Close releases the completion port handle.
func (r *iocpReactor) Close() error {
	if !r.open {
		return nil
	}
	r.open = false
	r.inflight = nil
	return windows.CloseHandle(r.port)
}
