//go:build linux
// +build linux

// File: reactor/uring_reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// io_uring reactor: readiness through one-shot IORING_OP_POLL_ADD, plus
// completion-based reads and writes through IORING_OP_READ/WRITE.

package reactor

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-dcp/api"
	"golang.org/x/sys/unix"
)

type uringOpKind uint8

const (
	opPoll uringOpKind = iota + 1
	opPollRemove
	opRead
	opWrite
	opTimeout
	opTimeoutRemove
)

// uringOp tracks one in-flight SQE. buf and ts pin memory the kernel
// references until the CQE arrives.
type uringOp struct {
	kind  uringOpKind
	token api.Token
	buf   []byte
	ts    *kernelTimespec
}

// uringReactor implements api.AsyncReactor on top of io_uring.
type uringReactor struct {
	ring      *uring
	reg       *registry
	maxEvents int

	nextOp  uint64
	ops     map[uint64]*uringOp
	polls   map[api.Token]uint64 // armed POLL_ADD per token
	rearm   []api.Token
	timeout uint64 // user data of the TIMEOUT of the current Poll
	expired bool

	pending     []api.Event
	pendingIdx  map[api.Token]int
	completions *queue.Queue // of api.Completion
}

func newURingReactor(cfg Config) (*uringReactor, error) {
	ring, err := newURing(uint32(cfg.MaxEvents))
	if err != nil {
		return nil, err
	}
	return &uringReactor{
		ring:        ring,
		reg:         newRegistry(),
		maxEvents:   cfg.MaxEvents,
		ops:         make(map[uint64]*uringOp),
		polls:       make(map[api.Token]uint64),
		pendingIdx:  make(map[api.Token]int),
		completions: queue.New(),
	}, nil
}

func pollMask(interest api.Interest) uint32 {
	mask := uint32(unix.POLLERR | unix.POLLHUP | unix.POLLRDHUP)
	if interest.Readable {
		mask |= unix.POLLIN
	}
	if interest.Writable {
		mask |= unix.POLLOUT
	}
	return mask
}

func (r *uringReactor) closed() bool { return r.ring == nil }

// queueOp reserves an SQE for op and returns it with its user data filled in.
func (r *uringReactor) queueOp(op *uringOp) (*uringSQE, uint64, error) {
	sqe, err := r.ring.getSQE()
	if err != nil {
		return nil, 0, err
	}
	r.nextOp++
	id := r.nextOp
	sqe.UserData = id
	r.ops[id] = op
	return sqe, id, nil
}

func (r *uringReactor) armPoll(tok api.Token, fd uintptr, interest api.Interest) error {
	if interest.IsEmpty() {
		return nil
	}
	sqe, id, err := r.queueOp(&uringOp{kind: opPoll, token: tok})
	if err != nil {
		return err
	}
	sqe.Opcode = uringOpPollAdd
	sqe.Fd = int32(fd)
	sqe.OpFlags = pollMask(interest)
	r.polls[tok] = id
	return nil
}

func (r *uringReactor) disarmPoll(tok api.Token) error {
	id, ok := r.polls[tok]
	if !ok {
		return nil
	}
	delete(r.polls, tok)
	sqe, _, err := r.queueOp(&uringOp{kind: opPollRemove, token: tok})
	if err != nil {
		return err
	}
	sqe.Opcode = uringOpPollRemove
	sqe.Fd = -1
	sqe.Addr = id
	return nil
}

// submit pushes queued SQEs to the kernel without waiting.
func (r *uringReactor) submit() error {
	if r.ring.unsubmitted() == 0 {
		return nil
	}
	for {
		_, err := r.ring.enter(0, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("io_uring enter: %w", err)
		}
		return nil
	}
}

// Register validates fd and arms a readiness poll for it. A token left
// behind by a closed descriptor with the same number is disarmed and
// becomes stale.
func (r *uringReactor) Register(fd uintptr, interest api.Interest) (api.Token, error) {
	if r.closed() {
		return 0, api.ErrReactorClosed
	}
	ident, err := identify(fd)
	if err != nil {
		return 0, fmt.Errorf("io_uring register: %w", err)
	}
	if prev, dup := duplicateOf(r.reg, fd, ident); dup {
		return 0, alreadyRegistered("io_uring register", fd, prev, unix.EEXIST)
	}
	tok := r.reg.peek()
	if err := r.armPoll(tok, fd, interest); err != nil {
		return 0, fmt.Errorf("io_uring register: %w", err)
	}
	if err := r.submit(); err != nil {
		r.forgetPoll(tok)
		return 0, err
	}
	if stale, displaced := r.reg.commitIdent(tok, fd, interest, ident); displaced {
		r.dropPending(stale)
		if err := r.disarmPoll(stale); err == nil {
			_ = r.submit()
		}
	}
	return tok, nil
}

// forgetPoll drops the bookkeeping of a poll whose submission failed.
func (r *uringReactor) forgetPoll(tok api.Token) {
	if id, ok := r.polls[tok]; ok {
		delete(r.ops, id)
		delete(r.polls, tok)
	}
}

// Modify replaces the armed poll of tok with one for interest.
func (r *uringReactor) Modify(tok api.Token, interest api.Interest) error {
	if r.closed() {
		return api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return notFound("io_uring modify", tok)
	}
	if !r.reg.current(tok) {
		return staleToken("io_uring modify", tok, reg.fd)
	}
	if err := r.disarmPoll(tok); err != nil {
		return fmt.Errorf("io_uring modify: %w", err)
	}
	if err := r.armPoll(tok, reg.fd, interest); err != nil {
		return fmt.Errorf("io_uring modify: %w", err)
	}
	if err := r.submit(); err != nil {
		return err
	}
	r.reg.setInterest(tok, interest)
	return nil
}

// Deregister cancels the armed poll and forgets tok. In-flight reads and
// writes still complete and are reported through Completions.
func (r *uringReactor) Deregister(tok api.Token) error {
	if r.closed() {
		return api.ErrReactorClosed
	}
	if _, ok := r.reg.lookup(tok); !ok {
		return notFound("io_uring deregister", tok)
	}
	if err := r.disarmPoll(tok); err != nil {
		return fmt.Errorf("io_uring deregister: %w", err)
	}
	r.reg.remove(tok)
	r.dropPending(tok)
	return r.submit()
}

func (r *uringReactor) SubmitRead(tok api.Token, buf []byte) (*api.Completion, error) {
	return r.submitRW(opRead, tok, buf)
}

func (r *uringReactor) SubmitWrite(tok api.Token, buf []byte) (*api.Completion, error) {
	return r.submitRW(opWrite, tok, buf)
}

// submitRW queues a read or write and returns its completion when the
// kernel finished it inline; otherwise the result arrives via Poll.
func (r *uringReactor) submitRW(kind uringOpKind, tok api.Token, buf []byte) (*api.Completion, error) {
	if r.closed() {
		return nil, api.ErrReactorClosed
	}
	reg, ok := r.reg.lookup(tok)
	if !ok {
		return nil, notFound("io_uring submit", tok)
	}
	if !r.reg.current(tok) {
		return nil, staleToken("io_uring submit", tok, reg.fd)
	}
	if len(buf) == 0 {
		return &api.Completion{Token: tok}, nil
	}
	sqe, id, err := r.queueOp(&uringOp{kind: kind, token: tok, buf: buf})
	if err != nil {
		return nil, fmt.Errorf("io_uring submit: %w", err)
	}
	sqe.Opcode = uringOpRead
	if kind == opWrite {
		sqe.Opcode = uringOpWrite
	}
	sqe.Fd = int32(reg.fd)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	sqe.Len = uint32(len(buf))
	sqe.Off = ^uint64(0) // current file position; ignored for sockets and pipes
	if err := r.submit(); err != nil {
		return nil, err
	}
	return r.drain(id), nil
}

// Completions returns and clears the completions gathered so far.
func (r *uringReactor) Completions() []api.Completion {
	n := r.completions.Length()
	if n == 0 {
		return nil
	}
	out := make([]api.Completion, 0, n)
	for r.completions.Length() > 0 {
		out = append(out, r.completions.Remove().(api.Completion))
	}
	return out
}

// Poll reports readiness of registered descriptors and finished
// submissions, waiting at most timeout.
func (r *uringReactor) Poll(timeout time.Duration) ([]api.Event, error) {
	if r.closed() {
		return nil, api.ErrReactorClosed
	}
	r.drain(0)
	if err := r.flushRearm(); err != nil {
		return nil, err
	}
	if len(r.pending) > 0 || timeout == 0 {
		return r.takeEvents(), nil
	}

	r.expired = false
	r.timeout = 0
	if timeout > 0 {
		if err := r.armTimeout(timeout); err != nil {
			return nil, err
		}
	}
	for len(r.pending) == 0 && !r.expired {
		if _, err := r.ring.enter(1, uringEnterGetEvents); err != nil {
			if errors.Is(err, unix.EINTR) {
				break
			}
			return nil, fmt.Errorf("io_uring wait: %w", err)
		}
		r.drain(0)
		if err := r.flushRearm(); err != nil {
			return nil, err
		}
	}
	if r.timeout != 0 && !r.expired {
		r.cancelTimeout()
	}
	r.timeout = 0
	return r.takeEvents(), nil
}

func (r *uringReactor) armTimeout(d time.Duration) error {
	ts := &kernelTimespec{Sec: int64(d / time.Second), Nsec: int64(d % time.Second)}
	sqe, id, err := r.queueOp(&uringOp{kind: opTimeout, ts: ts})
	if err != nil {
		return fmt.Errorf("io_uring timeout: %w", err)
	}
	sqe.Opcode = uringOpTimeout
	sqe.Fd = -1
	sqe.Addr = uint64(uintptr(unsafe.Pointer(ts)))
	sqe.Len = 1
	r.timeout = id
	return nil
}

// cancelTimeout queues removal of an unexpired Poll timeout; it is
// submitted with the next enter.
func (r *uringReactor) cancelTimeout() {
	sqe, _, err := r.queueOp(&uringOp{kind: opTimeoutRemove})
	if err != nil {
		return // the stale timeout is ignored when it fires
	}
	sqe.Opcode = uringOpTimeoutRemove
	sqe.Fd = -1
	sqe.Addr = r.timeout
}

func (r *uringReactor) flushRearm() error {
	if len(r.rearm) == 0 {
		return nil
	}
	for _, tok := range r.rearm {
		reg, ok := r.reg.lookup(tok)
		if !ok {
			continue
		}
		if _, armed := r.polls[tok]; armed {
			continue
		}
		if err := r.armPoll(tok, reg.fd, reg.interest); err != nil {
			return fmt.Errorf("io_uring rearm: %w", err)
		}
	}
	r.rearm = r.rearm[:0]
	return r.submit()
}

// drain processes every available CQE. The completion of op want, if
// seen, is returned instead of being queued.
func (r *uringReactor) drain(want uint64) *api.Completion {
	var found *api.Completion
	r.ring.reap(func(cqe uringCQE) {
		op, ok := r.ops[cqe.UserData]
		if !ok {
			return
		}
		delete(r.ops, cqe.UserData)
		switch op.kind {
		case opPoll:
			r.onPoll(cqe, op)
		case opRead, opWrite:
			c := api.Completion{Token: op.token}
			if cqe.Res < 0 {
				c.Err = errnoOf(cqe.Res)
			} else {
				c.N = int(cqe.Res)
			}
			if want != 0 && cqe.UserData == want {
				found = &c
				return
			}
			r.completions.Add(c)
			if _, live := r.reg.lookup(op.token); live {
				ev := api.NewEvent(op.token)
				if op.kind == opRead {
					ev = ev.WithReadable()
				} else {
					ev = ev.WithWritable()
				}
				r.addEvent(ev)
			}
		case opTimeout:
			if cqe.UserData == r.timeout {
				r.expired = true
			}
		}
	})
	return found
}

func (r *uringReactor) onPoll(cqe uringCQE, op *uringOp) {
	if r.polls[op.token] != cqe.UserData {
		return // cancelled or superseded by Modify
	}
	delete(r.polls, op.token)
	if _, live := r.reg.lookup(op.token); !live {
		return
	}
	r.rearm = append(r.rearm, op.token)
	ev := api.NewEvent(op.token)
	if cqe.Res < 0 {
		if errnoOf(cqe.Res) == unix.ECANCELED {
			return
		}
		r.addEvent(ev.WithError())
		return
	}
	mask := uint32(cqe.Res)
	if mask&unix.POLLIN != 0 {
		ev = ev.WithReadable()
	}
	if mask&unix.POLLOUT != 0 {
		ev = ev.WithWritable()
	}
	if mask&unix.POLLERR != 0 {
		ev = ev.WithError()
	}
	if mask&(unix.POLLHUP|unix.POLLRDHUP) != 0 {
		ev = ev.WithClosed()
	}
	r.addEvent(ev)
}

func (r *uringReactor) addEvent(ev api.Event) {
	if i, ok := r.pendingIdx[ev.Token]; ok {
		r.pending[i] = r.pending[i].Merge(ev)
		return
	}
	r.pendingIdx[ev.Token] = len(r.pending)
	r.pending = append(r.pending, ev)
}

func (r *uringReactor) dropPending(tok api.Token) {
	i, ok := r.pendingIdx[tok]
	if !ok {
		return
	}
	r.pending = append(r.pending[:i], r.pending[i+1:]...)
	r.reindex()
}

func (r *uringReactor) reindex() {
	clear(r.pendingIdx)
	for i, ev := range r.pending {
		r.pendingIdx[ev.Token] = i
	}
}

// takeEvents returns at most maxEvents pending events, keeping the rest
// for the next Poll.
func (r *uringReactor) takeEvents() []api.Event {
	if len(r.pending) == 0 {
		return nil
	}
	n := len(r.pending)
	if n > r.maxEvents {
		n = r.maxEvents
	}
	out := make([]api.Event, n)
	copy(out, r.pending)
	r.pending = append(r.pending[:0], r.pending[n:]...)
	r.reindex()
	return out
}

func (r *uringReactor) SupportsAsyncIO() bool { return true }
func (r *uringReactor) Name() string          { return BackendIOUring }

// Close tears down the ring. Pending submissions are abandoned.
func (r *uringReactor) Close() error {
	if r.closed() {
		return nil
	}
	ring := r.ring
	r.ring = nil
	r.ops = nil
	r.pending = nil
	return ring.close()
}
