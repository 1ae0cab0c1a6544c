// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Watches the configuration file and pushes valid revisions into a ConfigStore.

package control

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file into a ConfigStore whenever it changes.
// Invalid revisions are logged and ignored; the store keeps the last good one.
type Watcher struct {
	path   string
	store  *ConfigStore
	logger *slog.Logger
	fsw    *fsnotify.Watcher
	done   chan struct{}
	once   sync.Once
}

// WatchConfig starts watching path. The parent directory is watched so that
// editors replacing the file through a rename are noticed.
func WatchConfig(path string, store *ConfigStore, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch config: %w", err)
	}
	w := &Watcher{
		path:   abs,
		store:  store,
		logger: logger,
		fsw:    fsw,
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.Reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "path", w.path, "error", err)
		}
	}
}

// Reload reads the file now and publishes it when valid.
func (w *Watcher) Reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected", "path", w.path, "error", err)
		return
	}
	w.store.Set(cfg)
	w.logger.Info("config reloaded", "path", w.path)
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
