//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

// File: reactor/factory_kqueue.go
// Author: momentics <momentics@gmail.com>

package reactor

import "github.com/momentics/hioload-dcp/api"

func newPlatformReactor(cfg Config) (api.Reactor, error) {
	return newKqueueReactor(cfg)
}
