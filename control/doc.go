// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, runtime metrics and debug introspection layer.
//
// Provides concurrent-safe state handling primitives including:
//   - YAML configuration with defaults and validation
//   - Snapshot config reads, atomic updates and reload listeners
//   - File watching for hot reload
//   - Metrics counters and debug probe registration
package control
