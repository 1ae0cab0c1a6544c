// File: dcp/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-capacity circular byte store with exact wraparound semantics.

package dcp

import "github.com/momentics/hioload-dcp/api"

// StreamRingBuffer is a fixed-capacity circular byte buffer.
//
// Cursors grow monotonically and are reduced modulo capacity on access, so
// write-read is always the number of buffered bytes and the full capacity is
// usable. StreamRingBuffer is not synchronized; its owning Stream serializes access.
type StreamRingBuffer struct {
	buf   []byte
	read  uint64
	write uint64
}

// NewStreamRingBuffer allocates a ring buffer holding up to capacity bytes.
// A non-positive capacity yields a buffer that only accepts empty pushes.
func NewStreamRingBuffer(capacity int) *StreamRingBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &StreamRingBuffer{buf: make([]byte, capacity)}
}

// Cap returns the buffer capacity in bytes.
func (r *StreamRingBuffer) Cap() int { return len(r.buf) }

// Len returns the number of buffered, unread bytes.
func (r *StreamRingBuffer) Len() int { return int(r.write - r.read) }

// Free returns the number of bytes that can be pushed without failing.
func (r *StreamRingBuffer) Free() int { return len(r.buf) - r.Len() }

// Push appends data in full or not at all. It fails with api.ErrBackpressure
// when data does not fit in the free space; the buffer is unchanged then.
func (r *StreamRingBuffer) Push(data []byte) error {
	if len(data) > r.Free() {
		return api.ErrBackpressure
	}
	if len(data) == 0 {
		return nil
	}
	start := int(r.write % uint64(len(r.buf)))
	n := copy(r.buf[start:], data)
	if n < len(data) {
		copy(r.buf, data[n:])
	}
	r.write += uint64(len(data))
	return nil
}

// Pop copies up to len(out) buffered bytes into out, consumes them and
// returns the count, which is less than len(out) when fewer bytes are buffered.
func (r *StreamRingBuffer) Pop(out []byte) int {
	want := len(out)
	if avail := r.Len(); want > avail {
		want = avail
	}
	if want == 0 {
		return 0
	}
	start := int(r.read % uint64(len(r.buf)))
	n := copy(out[:want], r.buf[start:])
	if n < want {
		copy(out[n:want], r.buf)
	}
	r.read += uint64(want)
	return want
}

// Reset discards all buffered bytes.
func (r *StreamRingBuffer) Reset() {
	r.read = 0
	r.write = 0
}
