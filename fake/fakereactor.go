// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"time"

	"github.com/momentics/hioload-dcp/api"
)

// FakeReactor is an in-memory api.AsyncReactor for tests. Events and
// completions are injected by the test and handed out by Poll/Completions
// for tokens that are still registered.
type FakeReactor struct {
	// RegisterErr, when set, makes the next Register fail with it.
	RegisterErr error
	// Async toggles SupportsAsyncIO and completion of submissions.
	Async bool

	last        api.Token
	regs        map[api.Token]uintptr
	interests   map[api.Token]api.Interest
	events      []api.Event
	completions []api.Completion
	closed      bool
	Polls       int
}

// NewFakeReactor returns an empty fake reactor.
func NewFakeReactor() *FakeReactor {
	return &FakeReactor{
		regs:      make(map[api.Token]uintptr),
		interests: make(map[api.Token]api.Interest),
	}
}

// Inject queues ev for the next Poll.
func (f *FakeReactor) Inject(ev api.Event) { f.events = append(f.events, ev) }

// Interest returns the current interest of tok.
func (f *FakeReactor) Interest(tok api.Token) (api.Interest, bool) {
	i, ok := f.interests[tok]
	return i, ok
}

func (f *FakeReactor) Poll(time.Duration) ([]api.Event, error) {
	if f.closed {
		return nil, api.ErrReactorClosed
	}
	f.Polls++
	var out []api.Event
	for _, ev := range f.events {
		if _, ok := f.regs[ev.Token]; ok {
			out = append(out, ev)
		}
	}
	f.events = nil
	return out, nil
}

func (f *FakeReactor) Register(fd uintptr, interest api.Interest) (api.Token, error) {
	if f.closed {
		return 0, api.ErrReactorClosed
	}
	if err := f.RegisterErr; err != nil {
		f.RegisterErr = nil
		return 0, err
	}
	f.last++
	f.regs[f.last] = fd
	f.interests[f.last] = interest
	return f.last, nil
}

func (f *FakeReactor) Modify(tok api.Token, interest api.Interest) error {
	if _, ok := f.regs[tok]; !ok {
		return api.ErrNotFound
	}
	f.interests[tok] = interest
	return nil
}

func (f *FakeReactor) Deregister(tok api.Token) error {
	if _, ok := f.regs[tok]; !ok {
		return api.ErrNotFound
	}
	delete(f.regs, tok)
	delete(f.interests, tok)
	return nil
}

func (f *FakeReactor) submit(tok api.Token, buf []byte, ev api.Event) (*api.Completion, error) {
	if _, ok := f.regs[tok]; !ok {
		return nil, api.ErrNotFound
	}
	if !f.Async {
		return nil, nil
	}
	f.completions = append(f.completions, api.Completion{Token: tok, N: len(buf)})
	f.events = append(f.events, ev)
	return nil, nil
}

// SubmitRead completes asynchronously with len(buf) bytes when Async is set.
func (f *FakeReactor) SubmitRead(tok api.Token, buf []byte) (*api.Completion, error) {
	return f.submit(tok, buf, api.NewEvent(tok).WithReadable())
}

// SubmitWrite completes asynchronously with len(buf) bytes when Async is set.
func (f *FakeReactor) SubmitWrite(tok api.Token, buf []byte) (*api.Completion, error) {
	return f.submit(tok, buf, api.NewEvent(tok).WithWritable())
}

func (f *FakeReactor) Completions() []api.Completion {
	out := f.completions
	f.completions = nil
	return out
}

func (f *FakeReactor) SupportsAsyncIO() bool { return f.Async }
func (f *FakeReactor) Name() string          { return "fake" }

func (f *FakeReactor) Close() error {
	f.closed = true
	return nil
}

var _ api.AsyncReactor = (*FakeReactor)(nil)
