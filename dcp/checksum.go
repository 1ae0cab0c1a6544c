// File: dcp/checksum.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dcp

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// ChecksumSize is the length of a stream checksum in bytes.
const ChecksumSize = 32

// Checksum is the Blake3-256 digest of every payload byte written to a
// stream, in write order. Chunk boundaries and flags are not hashed.
type Checksum [ChecksumSize]byte

// String returns the lowercase hex encoding.
func (c Checksum) String() string { return hex.EncodeToString(c[:]) }

// Equal compares two checksums in constant time.
func (c Checksum) Equal(o Checksum) bool {
	return subtle.ConstantTimeCompare(c[:], o[:]) == 1
}

// SumPayload returns the checksum a stream would report after receiving
// payloads in order.
func SumPayload(payloads ...[]byte) Checksum {
	h := blake3.New()
	for _, p := range payloads {
		_, _ = h.Write(p)
	}
	return digest(h)
}

func digest(h *blake3.Hasher) Checksum {
	var c Checksum
	copy(c[:], h.Sum(nil))
	return c
}
