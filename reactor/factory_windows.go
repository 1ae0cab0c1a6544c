//go:build windows
// +build windows

// File: reactor/factory_windows.go
// Author: momentics <momentics@gmail.com>

package reactor

import "github.com/momentics/hioload-dcp/api"

func newPlatformReactor(cfg Config) (api.Reactor, error) {
	return newIOCPReactor(cfg)
}
