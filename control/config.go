// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed configuration, YAML loading and a thread-safe store with reload propagation.

package control

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/momentics/hioload-dcp/api"
	"github.com/momentics/hioload-dcp/reactor"
	"gopkg.in/yaml.v3"
)

// ReactorSection configures the reactor factory.
type ReactorSection struct {
	MaxEvents     int  `yaml:"max_events"`
	PreferIOUring bool `yaml:"prefer_io_uring"`
}

// StreamSection configures DCP streams.
type StreamSection struct {
	Capacity int `yaml:"capacity"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // optional extra JSON sink
}

// Config is the full runtime configuration.
type Config struct {
	Listen  string         `yaml:"listen"`
	Reactor ReactorSection `yaml:"reactor"`
	Stream  StreamSection  `yaml:"stream"`
	Log     LogSection     `yaml:"log"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	rc := reactor.DefaultConfig()
	return Config{
		Listen: ":9002",
		Reactor: ReactorSection{
			MaxEvents:     rc.MaxEvents,
			PreferIOUring: rc.PreferIOUring,
		},
		Stream: StreamSection{Capacity: 64 << 10},
		Log:    LogSection{Level: "info", Format: "text"},
	}
}

// ParseConfig overlays YAML data onto the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads path and parses it. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(data)
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	invalid := func(field string, value any) error {
		return api.WrapError(api.ErrCodeInvalidArgument, "validate config", nil).
			WithContext("field", field).
			WithContext("value", value)
	}
	if c.Reactor.MaxEvents < 0 {
		return invalid("reactor.max_events", c.Reactor.MaxEvents)
	}
	if c.Stream.Capacity <= 0 {
		return invalid("stream.capacity", c.Stream.Capacity)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return invalid("log.format", c.Log.Format)
	}
	return nil
}

// ReactorConfig converts the reactor section for reactor.New.
func (c Config) ReactorConfig(logger *slog.Logger) reactor.Config {
	return reactor.Config{
		MaxEvents:     c.Reactor.MaxEvents,
		PreferIOUring: c.Reactor.PreferIOUring,
		Logger:        logger,
	}
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return lvl, nil
}

// ConfigStore holds the current Config and notifies listeners on change.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Get returns the current configuration.
func (cs *ConfigStore) Get() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// Set replaces the configuration and runs reload listeners in registration order.
func (cs *ConfigStore) Set(cfg Config) {
	cs.mu.Lock()
	cs.config = cfg
	listeners := append(([]func(Config))(nil), cs.listeners...)
	cs.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
