package hnswcache

// unit is the zero-length value written for every edge key - presence of
// the key alone carries the information.
var unit = []byte{}

// materialize drains the overlay into edgeDB, writing both directions of
// every pending edge exactly once, then commits edgeDB.
//
// The same undirected edge {a, b} can be produced twice - once while
// walking bucket (a, L) and once while walking bucket (b, L) - so a
// deduplicating accumulator is required for correctness, not just as an
// optimization. Ordering the accumulator is a permitted but not required
// optimization (see the spec's open question on append-mode puts); this
// implementation writes in whatever order map iteration gives it, which is
// always safe for plain puts.
func materialize(o *Overlay, edgeDB WriteTxn) error {
	accumulator := make(map[string][]byte, o.Len()*8)

	for key, neighbors := range o.buckets {
		for uid := range neighbors {
			if uid == key.id {
				// Defensive: I2 should already have excluded this.
				continue
			}
			fwd := EncodeEdgeKey(key.id, key.level, uid)
			back := EncodeEdgeKey(uid, key.level, key.id)
			accumulator[string(fwd)] = fwd
			accumulator[string(back)] = back
		}
	}

	for _, key := range accumulator {
		if err := edgeDB.Put(key, unit); err != nil {
			return &CommitError{Op: "put", Err: err}
		}
	}

	if err := edgeDB.Commit(); err != nil {
		return &CommitError{Op: "commit", Err: err}
	}

	return nil
}
