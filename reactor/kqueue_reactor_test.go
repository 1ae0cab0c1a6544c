//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package reactor

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-dcp/api"
	"golang.org/x/sys/unix"
)

func newKqueue(t *testing.T) *kqueueReactor {
	t.Helper()
	r, err := newKqueueReactor(Config{}.normalize())
	if err != nil {
		t.Fatalf("kqueue: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newSocketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func waitEvent(t *testing.T, r api.Reactor, tok api.Token) api.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := r.Poll(100 * time.Millisecond)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		for _, ev := range events {
			if ev.Token == tok {
				return ev
			}
		}
	}
	t.Fatalf("no event for %v", tok)
	return api.Event{}
}

func TestKqueueChanges(t *testing.T) {
	cases := []struct {
		name     string
		from, to api.Interest
		want     int
	}{
		{"add both", api.Interest{}, api.InterestBoth, 2},
		{"same", api.InterestReadable, api.InterestReadable, 0},
		{"swap", api.InterestReadable, api.InterestWritable, 2},
		{"drop write", api.InterestBoth, api.InterestReadable, 1},
	}
	for _, c := range cases {
		if got := len(kqueueChanges(7, c.from, c.to)); got != c.want {
			t.Errorf("%s: %d changes, want %d", c.name, got, c.want)
		}
	}
}

func TestKqueueMergesFilters(t *testing.T) {
	r := newKqueue(t)
	a, b := newSocketPair(t)
	tok, err := r.Register(uintptr(a), api.InterestBoth)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	events, err := r.Poll(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, ev := range events {
		if ev.Token == tok {
			count++
			if !ev.Readable || !ev.Writable {
				t.Fatalf("filters not merged: %+v", ev)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected one event for %v, got %d", tok, count)
	}
}

func TestKqueuePeerClosed(t *testing.T) {
	r := newKqueue(t)
	a, b := newSocketPair(t)
	tok, err := r.Register(uintptr(a), api.InterestReadable)
	if err != nil {
		t.Fatal(err)
	}
	_ = unix.Shutdown(b, unix.SHUT_WR)
	if ev := waitEvent(t, r, tok); !ev.Closed {
		t.Fatalf("expected closed, got %+v", ev)
	}
}

func TestKqueueDeregister(t *testing.T) {
	r := newKqueue(t)
	a, b := newSocketPair(t)
	tok, err := r.Register(uintptr(a), api.InterestReadable)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Deregister(tok); err != nil {
		t.Fatal(err)
	}
	if err := r.Deregister(tok); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("second deregister: %v", err)
	}
	_, _ = unix.Write(b, []byte("x"))
	events, err := r.Poll(50 * time.Millisecond)
	if err != nil || len(events) != 0 {
		t.Fatalf("events after deregister: %v %+v", err, events)
	}
}

func TestKqueueClosed(t *testing.T) {
	r := newKqueue(t)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := r.Poll(0); !errors.Is(err, api.ErrReactorClosed) {
		t.Fatalf("poll after close: %v", err)
	}
}

func rawSocketPair(t *testing.T) [2]int {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	return fds
}

func TestKqueueModifyClosedDescriptor(t *testing.T) {
	r := newKqueue(t)
	fds := rawSocketPair(t)
	defer unix.Close(fds[1])
	tok, err := r.Register(uintptr(fds[0]), api.InterestReadable)
	if err != nil {
		t.Fatal(err)
	}
	_ = unix.Close(fds[0])
	if err := r.Modify(tok, api.InterestBoth); !errors.Is(err, unix.EBADF) {
		t.Fatalf("modify of closed descriptor: %v", err)
	}
	if err := r.Deregister(tok); err != nil {
		t.Fatalf("deregister of closed descriptor: %v", err)
	}
}

func TestKqueueStaleTokenAfterDescriptorReuse(t *testing.T) {
	r := newKqueue(t)
	old := rawSocketPair(t)
	stale, err := r.Register(uintptr(old[0]), api.InterestReadable)
	if err != nil {
		t.Fatal(err)
	}
	_ = unix.Close(old[0])
	_ = unix.Close(old[1])

	fds := rawSocketPair(t)
	if fds[1] == old[0] {
		fds[0], fds[1] = fds[1], fds[0]
	}
	if fds[0] != old[0] {
		if err := unix.Dup2(fds[0], old[0]); err != nil {
			t.Fatal(err)
		}
		_ = unix.Close(fds[0])
		fds[0] = old[0]
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	live, err := r.Register(uintptr(fds[0]), api.InterestReadable)
	if err != nil {
		t.Fatalf("register of reused fd number: %v", err)
	}
	if err := r.Modify(stale, api.InterestBoth); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("modify through stale token: %v", err)
	}
	if err := r.Deregister(stale); err != nil {
		t.Fatalf("deregister stale token: %v", err)
	}
	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatal(err)
	}
	if ev := waitEvent(t, r, live); !ev.Readable {
		t.Fatalf("live registration lost: %+v", ev)
	}
	if _, err := r.Register(uintptr(fds[0]), api.InterestReadable); err == nil {
		t.Fatal("duplicate registration succeeded")
	}
}
