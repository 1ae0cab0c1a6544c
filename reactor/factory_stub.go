//go:build !linux && !windows && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd
// +build !linux,!windows,!darwin,!dragonfly,!freebsd,!netbsd,!openbsd

// File: reactor/factory_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"runtime"

	"github.com/momentics/hioload-dcp/api"
)

func newPlatformReactor(Config) (api.Reactor, error) {
	return nil, api.WrapError(api.ErrCodeNotSupported, "new reactor", nil).
		WithContext("goos", runtime.GOOS)
}
