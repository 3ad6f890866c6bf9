package hnswcache

import "encoding/binary"

// edgeKeyPrefix tags every key this package writes so it occupies its own
// logical sub-keyspace inside whatever key-value store it is embedded in,
// the same single-byte-prefix convention the surrounding storage engine
// uses for nodes, edges, and its secondary indexes.
const edgeKeyPrefix = byte(0x06)

// edgeKeyLen is the fixed width of an encoded edge key:
// 1 (prefix) + 16 (src) + 4 (level) + 16 (dst).
const edgeKeyLen = 1 + 16 + 4 + 16

// edgeKeyPrefixLen is the fixed width of a (src, level) scan prefix.
const edgeKeyPrefixLen = 1 + 16 + 4

// EncodeEdgeKey produces the canonical byte key for the directed edge
// src --level--> dst. The encoding is a pure, deterministic function of its
// inputs: equal inputs always yield byte-identical output (P5), and the
// (src, level) prefix is fixed-width so it is a proper prefix of the key for
// every possible dst (P6), keeping all out-edges of (src, level) contiguous
// under lexicographic key ordering.
func EncodeEdgeKey(src VectorID, level uint32, dst VectorID) []byte {
	key := make([]byte, 0, edgeKeyLen)
	key = append(key, edgeKeyPrefix)
	key = append(key, src[:]...)
	var levelBytes [4]byte
	binary.BigEndian.PutUint32(levelBytes[:], level)
	key = append(key, levelBytes[:]...)
	key = append(key, dst[:]...)
	return key
}

// EdgeKeyPrefix returns the proper prefix such that every
// EncodeEdgeKey(src, level, *) begins with it, suitable for a range scan
// that enumerates all neighbors of (src, level).
func EdgeKeyPrefix(src VectorID, level uint32) []byte {
	key := make([]byte, 0, edgeKeyPrefixLen)
	key = append(key, edgeKeyPrefix)
	key = append(key, src[:]...)
	var levelBytes [4]byte
	binary.BigEndian.PutUint32(levelBytes[:], level)
	key = append(key, levelBytes[:]...)
	return key
}

// DecodeEdgeKey splits a key produced by EncodeEdgeKey back into its parts.
// It reports false for anything that isn't exactly edgeKeyLen bytes long or
// doesn't carry the edge prefix - callers scanning a shared keyspace use
// this to filter out unrelated entries rather than the codec refusing
// mixed-width input outright.
func DecodeEdgeKey(key []byte) (src VectorID, level uint32, dst VectorID, ok bool) {
	if len(key) != edgeKeyLen || key[0] != edgeKeyPrefix {
		return VectorID{}, 0, VectorID{}, false
	}
	copy(src[:], key[1:17])
	level = binary.BigEndian.Uint32(key[17:21])
	copy(dst[:], key[21:37])
	return src, level, dst, true
}

// DstFromEdgeKey extracts just the destination id suffix from a key already
// known to share the given (src, level) prefix - the operation the
// persisted-state layout relies on when materializing a neighbor list from
// a prefix scan instead of a dedicated record.
func DstFromEdgeKey(key []byte) (VectorID, bool) {
	_, _, dst, ok := DecodeEdgeKey(key)
	return dst, ok
}
