// File: dcp/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ordered, checksummed, backpressure-aware chunk stream over a StreamRingBuffer.

package dcp

import (
	"math"
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-dcp/api"
	"github.com/zeebo/blake3"
)

// ChunkData is a chunk returned by ReadChunk together with its payload.
type ChunkData struct {
	StreamChunk
	Payload []byte
}

// Stats is a point-in-time snapshot of stream counters.
type Stats struct {
	ID            uint64
	Capacity      int
	Buffered      int
	PendingChunks int
	ChunksWritten uint64
	ChunksRead    uint64
	BytesWritten  uint64
	BytesRead     uint64
	Backpressured uint64
	Closed        bool
}

// Stream is a DCP stream: an ordered, checksummed, bounded byte stream.
// All methods are safe for concurrent use; one mutex per stream guards the
// ring buffer, the chunk FIFO, the sequence counter and the hash state.
type Stream struct {
	id uint64

	mu     sync.Mutex
	ring   *StreamRingBuffer
	chunks *queue.Queue // of pendingChunk, in sequence order
	next   uint64
	hasher *blake3.Hasher
	closed bool
	stats  Stats
}

// NewStream creates stream id backed by a ring buffer of capacity bytes.
func NewStream(id uint64, capacity int) *Stream {
	ring := NewStreamRingBuffer(capacity)
	return &Stream{
		id:     id,
		ring:   ring,
		chunks: queue.New(),
		hasher: blake3.New(),
		stats:  Stats{ID: id, Capacity: ring.Cap()},
	}
}

// ID returns the stream identifier.
func (s *Stream) ID() uint64 { return s.id }

// Capacity returns the ring buffer capacity in bytes.
func (s *Stream) Capacity() int { return s.ring.Cap() }

// Buffered returns the number of written but unread payload bytes.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Len()
}

// Closed reports whether a chunk marked last has been written.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// WriteChunk appends data as the next chunk. isLast closes the stream for
// further writes. When data does not fit into the free ring space the call
// returns api.ErrBackpressure and leaves the stream untouched; the caller
// should retry after readers drain it. Writes after the last chunk fail with
// api.ErrStreamClosed.
func (s *Stream) WriteChunk(data []byte, isLast bool) (StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return StreamChunk{}, api.WrapError(api.ErrCodeStreamClosed, "write chunk", nil).
			WithContext("stream", s.id)
	}
	if s.next > math.MaxUint32 {
		return StreamChunk{}, api.WrapError(api.ErrCodeInvalidArgument, "write chunk", nil).
			WithContext("stream", s.id).
			WithContext("reason", "sequence space exhausted")
	}
	if err := s.ring.Push(data); err != nil {
		s.stats.Backpressured++
		return StreamChunk{}, err
	}

	_, _ = s.hasher.Write(data)
	chunk := StreamChunk{Sequence: uint32(s.next), last: isLast}
	s.chunks.Add(pendingChunk{chunk: chunk, size: len(data)})
	s.next++
	s.closed = isLast
	s.stats.ChunksWritten++
	s.stats.BytesWritten += uint64(len(data))
	return chunk, nil
}

// ReadChunk removes the oldest buffered chunk and returns it with its
// payload. ok is false when no chunk is buffered.
func (s *Stream) ReadChunk() (c ChunkData, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chunks.Length() == 0 {
		return ChunkData{}, false, nil
	}
	pc := s.chunks.Remove().(pendingChunk)
	payload := make([]byte, pc.size)
	if n := s.ring.Pop(payload); n != pc.size {
		return ChunkData{}, false, api.WrapError(api.ErrCodeInternal, "read chunk", nil).
			WithContext("stream", s.id).
			WithContext("sequence", pc.chunk.Sequence).
			WithContext("want", pc.size).
			WithContext("got", n)
	}
	s.stats.ChunksRead++
	s.stats.BytesRead += uint64(pc.size)
	return ChunkData{StreamChunk: pc.chunk, Payload: payload}, true, nil
}

// Checksum returns the running Blake3 digest of all payload bytes written.
func (s *Stream) Checksum() Checksum {
	s.mu.Lock()
	defer s.mu.Unlock()
	return digest(s.hasher)
}

// VerifyChecksum reports whether want equals the current checksum.
func (s *Stream) VerifyChecksum(want Checksum) bool {
	return s.Checksum().Equal(want)
}

// Stats returns a snapshot of the stream counters.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Buffered = s.ring.Len()
	st.PendingChunks = s.chunks.Length()
	st.Closed = s.closed
	return st
}
