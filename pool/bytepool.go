// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"

	"github.com/momentics/hioload-dcp/api"
)

// BytePool hands out fixed-size byte slices. Buffers of another capacity
// are dropped on Put so a caller can never shrink the pool's slices.
type BytePool struct {
	free sync.Pool // *[]byte, len == cap == size
	size int
}

// NewBytePool returns a pool of size-byte buffers. size below 1 is raised to 1.
func NewBytePool(size int) *BytePool {
	if size < 1 {
		size = 1
	}
	bp := &BytePool{size: size}
	bp.free.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

// Size is the length of every buffer returned by GetBuffer.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer of exactly Size bytes.
func (b *BytePool) GetBuffer() []byte {
	buf := *b.free.Get().(*[]byte)
	return buf[:b.size]
}

// PutBuffer returns a buffer to the pool.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:b.size]
	b.free.Put(&buf)
}

var _ api.BufferPool = (*BytePool)(nil)
