// Package hnswcache implements the transactional neighbor cache that sits
// between the HNSW vector index and the underlying key-value store.
//
// The cache buffers bidirectional edge mutations across graph levels during
// a write transaction and materializes them into the persistent store as a
// single atomic commit. It does not implement the HNSW search algorithm
// itself (level selection, distance metrics, candidate search) - it only
// accepts neighbor sets chosen by the caller and guarantees that every
// accepted edge is persisted symmetrically, deduplicated, and written under
// a deterministic key layout.
package hnswcache

import "encoding/binary"

// VectorID is a 128-bit unsigned identifier for a vector resident in the
// HNSW index. It is a value type so it can be used directly as a map key -
// equality and hashing fall out of Go's built-in array comparison, matching
// the requirement that two VectorIDs compare equal iff their bits match.
type VectorID [16]byte

// NewVectorID builds a VectorID from its big-endian high and low 64-bit
// halves. Encoding high/low as big-endian keeps VectorID.Bytes() a proper
// big-endian representation of the 128-bit value, which is what
// EncodeEdgeKey relies on for lexicographic ordering.
func NewVectorID(hi, lo uint64) VectorID {
	var id VectorID
	binary.BigEndian.PutUint64(id[0:8], hi)
	binary.BigEndian.PutUint64(id[8:16], lo)
	return id
}

// VectorIDFromBytes builds a VectorID from a 16-byte big-endian slice.
func VectorIDFromBytes(b []byte) (VectorID, bool) {
	var id VectorID
	if len(b) != 16 {
		return id, false
	}
	copy(id[:], b)
	return id, true
}

// Bytes returns the 16-byte big-endian encoding of the id.
func (id VectorID) Bytes() []byte {
	out := make([]byte, 16)
	copy(out, id[:])
	return out
}

// IsZero reports whether the id is the all-zero 128-bit value.
func (id VectorID) IsZero() bool {
	return id == VectorID{}
}
