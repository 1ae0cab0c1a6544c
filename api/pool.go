// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines the buffer pooling contract used by reactor read loops.

package api

// BufferPool hands out reusable fixed-size []byte buffers.
type BufferPool interface {
	// GetBuffer returns a buffer of the pool's size.
	GetBuffer() []byte

	// PutBuffer returns a buffer for reuse.
	PutBuffer(buf []byte)
}
