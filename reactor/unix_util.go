//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd
// +build linux darwin dragonfly freebsd netbsd openbsd

// File: reactor/unix_util.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"errors"
	"time"

	"github.com/momentics/hioload-dcp/api"
	"golang.org/x/sys/unix"
)

// alreadyGone reports OS errors meaning the descriptor is no longer watched.
func alreadyGone(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF)
}

// identify returns the device/inode pair of the file open on fd. It fails
// with EBADF for a closed descriptor.
func identify(fd uintptr) (fdIdent, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(fd), &st); err != nil {
		return fdIdent{}, err
	}
	return fdIdent{dev: uint64(st.Dev), ino: uint64(st.Ino)}, nil
}

// duplicateOf returns the token already watching the same open file as fd.
// A binding left behind by a closed descriptor whose number was reused
// points at another file and is not a duplicate.
func duplicateOf(reg *registry, fd uintptr, ident fdIdent) (api.Token, bool) {
	tok, ok := reg.tokenOf(fd)
	if !ok {
		return 0, false
	}
	prev, _ := reg.lookup(tok)
	return tok, prev.ident == ident
}

// timeoutMillis converts a Poll timeout to the millisecond form of epoll_wait.
// Sub-millisecond positive timeouts round up so they still block.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}
	return int(ms)
}

// timespec converts a Poll timeout to a kevent timespec; nil blocks forever.
func timespec(d time.Duration) *unix.Timespec {
	if d < 0 {
		return nil
	}
	ts := unix.NsecToTimespec(int64(d))
	return &ts
}
