// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package dcp implements the DCP chunked byte stream: an ordered, Blake3-checksummed,
// bounded stream of chunks stored in a fixed-capacity ring buffer. Writers get
// api.ErrBackpressure instead of unbounded buffering; readers drain whole chunks
// in sequence order. The package performs no I/O; callers feed it from reactor events.
package dcp
