// File: dcp/chunk.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dcp

import "fmt"

// StreamChunk describes one chunk of a Stream. Sequence numbers start at 0
// and are contiguous in write order.
type StreamChunk struct {
	Sequence uint32
	last     bool
}

// IsFirst reports whether the chunk opens its stream.
func (c StreamChunk) IsFirst() bool { return c.Sequence == 0 }

// IsLast reports whether the writer marked the chunk as final.
func (c StreamChunk) IsLast() bool { return c.last }

// IsContinuation reports whether the chunk is neither first nor last.
func (c StreamChunk) IsContinuation() bool { return !c.IsFirst() && !c.IsLast() }

// String implements fmt.Stringer.
func (c StreamChunk) String() string {
	pos := "cont"
	switch {
	case c.IsFirst() && c.IsLast():
		pos = "only"
	case c.IsFirst():
		pos = "first"
	case c.IsLast():
		pos = "last"
	}
	return fmt.Sprintf("chunk#%d(%s)", c.Sequence, pos)
}

// pendingChunk is the metadata of a chunk whose payload sits in the ring.
type pendingChunk struct {
	chunk StreamChunk
	size  int
}
