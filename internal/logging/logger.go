// File: internal/logging/logger.go
// Author: momentics <momentics@gmail.com>
//
// slog logger construction: terminal handler plus optional JSON file sink.

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	Level  *slog.LevelVar // shared so hot reload can change it; nil means info
	Format string         // "text" (default) or "json"
	Writer io.Writer      // terminal sink; nil means os.Stderr
	File   string         // optional path of an additional JSON log file
}

// Logger bundles the logger with resources it owns.
type Logger struct {
	*slog.Logger
	Level *slog.LevelVar
	file  *os.File
}

// New builds a logger fanning out to the terminal and, when configured, a file.
func New(opts Options) (*Logger, error) {
	level := opts.Level
	if level == nil {
		level = new(slog.LevelVar)
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handlers = append(handlers, slog.NewTextHandler(w, hopts))
	case "json":
		handlers = append(handlers, slog.NewJSONHandler(w, hopts))
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	l := &Logger{Level: level}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", opts.File, err)
		}
		l.file = f
		handlers = append(handlers, slog.NewJSONHandler(f, hopts))
	}

	l.Logger = slog.New(slogmulti.Fanout(handlers...))
	return l, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
