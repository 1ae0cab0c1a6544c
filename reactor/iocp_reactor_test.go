//go:build windows
// +build windows

// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package reactor

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-dcp/api"
	"golang.org/x/sys/windows"
)

func overlappedFile(t *testing.T) windows.Handle {
	t.Helper()
	path, err := windows.UTF16PtrFromString(filepath.Join(t.TempDir(), "iocp.bin"))
	if err != nil {
		t.Fatal(err)
	}
	h, err := windows.CreateFile(path,
		windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil,
		windows.CREATE_ALWAYS, windows.FILE_FLAG_OVERLAPPED, 0)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	t.Cleanup(func() { _ = windows.CloseHandle(h) })
	return h
}

func TestIOCPReregisterSameHandle(t *testing.T) {
	r, err := newIOCPReactor(Config{}.normalize())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	h := overlappedFile(t)

	first, err := r.Register(uintptr(h), api.InterestBoth)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(uintptr(h), api.InterestBoth); err == nil {
		t.Fatal("duplicate registration succeeded")
	}
	if err := r.Deregister(first); err != nil {
		t.Fatal(err)
	}
	second, err := r.Register(uintptr(h), api.InterestBoth)
	if err != nil {
		t.Fatalf("register after deregister: %v", err)
	}
	if second <= first {
		t.Fatalf("token %v not greater than %v", second, first)
	}

	if _, err := r.SubmitWrite(second, []byte("dcp")); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := r.Poll(100 * time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) == 0 {
			continue
		}
		if events[0].Token != second || !events[0].Writable {
			t.Fatalf("completion routed to %+v", events[0])
		}
		done := r.Completions()
		if len(done) != 1 || done[0].N != 3 || done[0].Token != second {
			t.Fatalf("completions %+v", done)
		}
		return
	}
	t.Fatal("write never completed")
}

func TestIOCPClosed(t *testing.T) {
	r, err := newIOCPReactor(Config{}.normalize())
	if err != nil {
		t.Fatal(err)
	}
	_ = r.Close()
	if _, err := r.Poll(0); !errors.Is(err, api.ErrReactorClosed) {
		t.Fatalf("poll after close: %v", err)
	}
}
