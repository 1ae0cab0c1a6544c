//go:build linux
// +build linux

// File: reactor/factory_linux.go
// Author: momentics <momentics@gmail.com>

package reactor

import "github.com/momentics/hioload-dcp/api"

// openURing builds the io_uring backend. Tests swap it to simulate kernels
// that refuse io_uring_setup.
var openURing = func(cfg Config) (api.Reactor, error) {
	r, err := newURingReactor(cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newPlatformReactor(cfg Config) (api.Reactor, error) {
	if cfg.PreferIOUring {
		r, err := openURing(cfg)
		if err == nil {
			return r, nil
		}
		cfg.Logger.Debug("io_uring unavailable, falling back to epoll", "error", err)
	}
	return newEpollReactor(cfg)
}
