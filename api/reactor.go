// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for event-driven IO Reactors
// used to multiplex descriptors across OS backends (epoll, io_uring, kqueue, IOCP).

package api

import (
	"fmt"
	"time"
)

// NoTimeout makes Poll block until at least one event is ready.
const NoTimeout time.Duration = -1

// Token is an opaque handle correlating a registration with poll events.
// Tokens are allocated in increasing order per reactor; zero is never issued.
type Token uint64

// String implements fmt.Stringer.
func (t Token) String() string { return fmt.Sprintf("token(%d)", uint64(t)) }

// Interest is the set of readiness kinds a registration cares about.
type Interest struct {
	Readable bool
	Writable bool
}

// Interest presets.
var (
	InterestReadable = Interest{Readable: true}
	InterestWritable = Interest{Writable: true}
	InterestBoth     = Interest{Readable: true, Writable: true}
)

// IsEmpty reports whether no readiness kind is requested.
func (i Interest) IsEmpty() bool { return !i.Readable && !i.Writable }

// Event is one readiness (or completion) notification produced by Poll.
type Event struct {
	Token    Token
	Readable bool
	Writable bool
	Error    bool
	Closed   bool
}

// NewEvent returns an event for token with no flags set.
func NewEvent(token Token) Event { return Event{Token: token} }

// WithReadable returns a copy of e marked readable.
func (e Event) WithReadable() Event { e.Readable = true; return e }

// WithWritable returns a copy of e marked writable.
func (e Event) WithWritable() Event { e.Writable = true; return e }

// WithError returns a copy of e marked with an error condition.
func (e Event) WithError() Event { e.Error = true; return e }

// WithClosed returns a copy of e marked as closed by the peer.
func (e Event) WithClosed() Event { e.Closed = true; return e }

// Merge folds the flags of o into e. Tokens are expected to match.
func (e Event) Merge(o Event) Event {
	e.Readable = e.Readable || o.Readable
	e.Writable = e.Writable || o.Writable
	e.Error = e.Error || o.Error
	e.Closed = e.Closed || o.Closed
	return e
}

// Completion is the result of a read or write submitted to a completion-based
// backend. Err is nil on success and N holds the transferred byte count.
type Completion struct {
	Token Token
	N     int
	Err   error
}

// Reactor is an OS event source. Implementations are not internally
// synchronized: the owner must serialize calls, typically by running the
// reactor on a single goroutine. Poll is not re-entrant.
type Reactor interface {
	// Poll blocks until at least one event is ready or timeout elapses.
	// A negative timeout blocks indefinitely; zero never blocks.
	// Interruption by a signal yields zero events and a nil error.
	Poll(timeout time.Duration) ([]Event, error)

	// Register starts watching fd for interest and returns its token.
	// Nothing is retained when the OS rejects the registration.
	Register(fd uintptr, interest Interest) (Token, error)

	// Modify replaces the interest of an existing registration.
	Modify(token Token, interest Interest) error

	// Deregister removes a registration. Descriptors the OS already
	// forgot about are removed without error.
	Deregister(token Token) error

	// SubmitRead starts a read into buf on completion-based backends.
	// Poll-based backends return (nil, nil).
	SubmitRead(token Token, buf []byte) (*Completion, error)

	// SubmitWrite starts a write of buf on completion-based backends.
	// Poll-based backends return (nil, nil).
	SubmitWrite(token Token, buf []byte) (*Completion, error)

	// SupportsAsyncIO reports whether SubmitRead/SubmitWrite perform I/O.
	SupportsAsyncIO() bool

	// Name identifies the backend for diagnostics.
	Name() string

	// Close releases the OS handle. Subsequent calls are no-ops.
	Close() error
}

// AsyncReactor is implemented by completion-based backends. Completions
// drains results of submitted operations that finished during Poll.
type AsyncReactor interface {
	Reactor
	Completions() []Completion
}
