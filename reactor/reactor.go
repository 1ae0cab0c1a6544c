// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Reactor configuration and platform-neutral factory.

package reactor

import (
	"log/slog"

	"github.com/momentics/hioload-dcp/api"
)

// DefaultMaxEvents bounds the number of events returned by one Poll.
const DefaultMaxEvents = 1024

// Backend names reported by api.Reactor.Name.
const (
	BackendEpoll   = "epoll"
	BackendIOUring = "io_uring"
	BackendKqueue  = "kqueue"
	BackendIOCP    = "iocp"
)

// Config selects and sizes a reactor backend.
type Config struct {
	// MaxEvents caps the events gathered by one Poll call.
	MaxEvents int
	// PreferIOUring tries io_uring before epoll on Linux.
	PreferIOUring bool
	// Logger receives backend selection diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns {MaxEvents: 1024, PreferIOUring: true}.
func DefaultConfig() Config {
	return Config{
		MaxEvents:     DefaultMaxEvents,
		PreferIOUring: true,
	}
}

func (c Config) normalize() Config {
	if c.MaxEvents <= 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// New creates the reactor backend best suited to the running platform.
// On Linux a failing io_uring setup falls back to epoll without surfacing
// the failure. Unsupported platforms yield api.ErrNotSupported.
func New(cfg Config) (api.Reactor, error) {
	cfg = cfg.normalize()
	r, err := newPlatformReactor(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debug("reactor created", "backend", r.Name(), "max_events", cfg.MaxEvents)
	return r, nil
}

// NewDefault creates a reactor with DefaultConfig.
func NewDefault() (api.Reactor, error) {
	return New(DefaultConfig())
}
