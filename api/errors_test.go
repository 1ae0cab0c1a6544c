package api_test

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/momentics/hioload-dcp/api"
)

func TestErrorIsMatchesCode(t *testing.T) {
	err := api.WrapError(api.ErrCodeNotFound, "deregister", syscall.ENOENT)
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatal("wrapped error does not match sentinel")
	}
	if errors.Is(err, api.ErrBackpressure) {
		t.Fatal("matched a different code")
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatal("cause not reachable through Unwrap")
	}
	outer := fmt.Errorf("poll loop: %w", err)
	if !errors.Is(outer, api.ErrNotFound) {
		t.Fatal("fmt wrapping lost the code")
	}
}

func TestErrorMessage(t *testing.T) {
	err := api.WrapError(api.ErrCodeIO, "epoll_wait", syscall.EBADF).WithContext("fd", 3)
	msg := err.Error()
	for _, want := range []string{"epoll_wait", "io", "fd:3"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("%q missing %q", msg, want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want api.ErrorCode
	}{
		{nil, api.ErrCodeOK},
		{api.ErrStreamClosed, api.ErrCodeStreamClosed},
		{fmt.Errorf("x: %w", api.ErrReactorClosed), api.ErrCodeReactorClosed},
		{errors.New("plain"), api.ErrCodeIO},
	}
	for _, c := range cases {
		if got := api.CodeOf(c.err); got != c.want {
			t.Errorf("CodeOf(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
