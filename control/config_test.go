package control_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-dcp/api"
	"github.com/momentics/hioload-dcp/control"
)

func TestParseConfigOverlaysDefaults(t *testing.T) {
	cfg, err := control.ParseConfig([]byte(`
reactor:
  prefer_io_uring: false
stream:
  capacity: 4096
log:
  level: debug
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Reactor.PreferIOUring || cfg.Reactor.MaxEvents != 1024 {
		t.Fatalf("reactor section %+v", cfg.Reactor)
	}
	if cfg.Stream.Capacity != 4096 || cfg.Listen != ":9002" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	rc := cfg.ReactorConfig(nil)
	if rc.MaxEvents != 1024 || rc.PreferIOUring {
		t.Fatalf("reactor config %+v", rc)
	}
	if lvl, _ := control.ParseLevel(cfg.Log.Level); lvl != slog.LevelDebug {
		t.Fatalf("level %v", lvl)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"capacity": "stream: {capacity: 0}",
		"level":    "log: {level: loud}",
		"format":   "log: {format: xml}",
		"events":   "reactor: {max_events: -1}",
		"syntax":   "reactor: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := control.ParseConfig([]byte(doc)); err == nil {
				t.Fatalf("accepted %q", doc)
			}
		})
	}
	_, err := control.ParseConfig([]byte("stream: {capacity: -5}"))
	if !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := control.LoadConfig("")
	if err != nil || cfg != control.DefaultConfig() {
		t.Fatalf("empty path: %v %+v", err, cfg)
	}
	if _, err := control.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestConfigStoreListeners(t *testing.T) {
	store := control.NewConfigStore(control.DefaultConfig())
	var got []int
	store.OnReload(func(c control.Config) { got = append(got, c.Stream.Capacity) })
	next := control.DefaultConfig()
	next.Stream.Capacity = 1
	store.Set(next)
	if store.Get().Stream.Capacity != 1 || len(got) != 1 || got[0] != 1 {
		t.Fatalf("store %+v listeners %v", store.Get(), got)
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dcp.yaml")
	if err := os.WriteFile(path, []byte("stream: {capacity: 100}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := control.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	store := control.NewConfigStore(cfg)
	reloaded := make(chan int, 8)
	store.OnReload(func(c control.Config) { reloaded <- c.Stream.Capacity })

	w, err := control.WatchConfig(path, store, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("stream: {capacity: 200}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c == 200 {
				return
			}
		case <-deadline:
			t.Fatalf("no reload observed, store has %+v", store.Get().Stream)
		}
	}
}

func TestWatcherKeepsLastGoodConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dcp.yaml")
	if err := os.WriteFile(path, []byte("stream: {capacity: 0}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := control.NewConfigStore(control.DefaultConfig())
	w, err := control.WatchConfig(path, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.Reload()
	if store.Get() != control.DefaultConfig() {
		t.Fatalf("invalid revision published: %+v", store.Get())
	}
}
