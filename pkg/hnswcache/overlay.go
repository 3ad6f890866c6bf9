package hnswcache

// levelKey identifies a single (vector_id, level) bucket in the overlay.
type levelKey struct {
	id    VectorID
	level uint32
}

// Overlay is the in-memory pending-write view of the neighbor graph held by
// a single transaction: a mapping from (vector_id, level) to the set of
// neighbor records pending write. It owns all mutation logic and never
// touches the underlying store - every operation here is synchronous and
// infallible against well-formed input.
//
// Overlay is owned exclusively by the transaction that created it; the
// spec's single-writer model means no internal locking is required.
type Overlay struct {
	buckets map[levelKey]neighborSet
}

// NewOverlay creates an empty overlay with capacity sized for the expected
// number of distinct (id, level) pairs a transaction will touch.
func NewOverlay(expectedBuckets int) *Overlay {
	if expectedBuckets <= 0 {
		expectedBuckets = 256
	}
	return &Overlay{buckets: make(map[levelKey]neighborSet, expectedBuckets)}
}

// SetNeighbors replaces the pending neighbor set of v at level with newSet,
// reconciling back-references against whatever was previously pending.
//
//  1. Diff newSet against the old set.
//  2. For every neighbor being dropped, remove v from that neighbor's own
//     pending set, if one exists.
//  3. For every neighbor being added, add v to that neighbor's pending set
//     (creating it if absent).
//  4. Store newSet (self-edges filtered) as the bucket for (v, level).
//
// Back-references for neighbors that have no pending entry of their own are
// not synthesized here - the commit materializer emits both directions of
// every edge unconditionally, so a neighbor with no overlay entry still
// gets its back-edge written at commit time.
func (o *Overlay) SetNeighbors(v *VectorRecord, level uint32, newRecords []*VectorRecord) {
	id := v.ID()
	key := levelKey{id: id, level: level}

	filtered := make([]*VectorRecord, 0, len(newRecords))
	for _, r := range newRecords {
		if r == nil || r.ID() == id {
			continue // I2: no self-edges
		}
		filtered = append(filtered, r)
	}
	newSet := newNeighborSet(filtered)

	old := o.buckets[key]

	for uid := range old {
		if _, stillPresent := newSet[uid]; stillPresent {
			continue
		}
		// u is being dropped: strip v from u's own pending set, if present.
		neighborKey := levelKey{id: uid, level: level}
		if uSet, ok := o.buckets[neighborKey]; ok {
			delete(uSet, id)
		}
	}

	for uid, u := range newSet {
		if _, wasPresent := old[uid]; wasPresent {
			continue
		}
		neighborKey := levelKey{id: uid, level: level}
		uSet, ok := o.buckets[neighborKey]
		if !ok {
			uSet = make(neighborSet, 1)
			o.buckets[neighborKey] = uSet
		}
		uSet[id] = v
		_ = u
	}

	o.buckets[key] = newSet
}

// GetNeighbors returns the current pending neighbors of (id, level) in
// unspecified order, or ok=false if there is no pending entry. It never
// creates an entry as a side effect.
func (o *Overlay) GetNeighbors(id VectorID, level uint32) (neighbors []*VectorRecord, ok bool) {
	set, ok := o.buckets[levelKey{id: id, level: level}]
	if !ok {
		return nil, false
	}
	return set.slice(), true
}

// InsertNeighbors union-merges extra into the pending set of (id, level)
// without removing anything and without touching back-references on the
// added records. This is a lower-level accumulation primitive: callers that
// need symmetry must issue their own matching calls, the same asymmetry
// contract the union-style helper in the original implementation carries.
func (o *Overlay) InsertNeighbors(id VectorID, level uint32, extra []*VectorRecord) {
	key := levelKey{id: id, level: level}
	set, ok := o.buckets[key]
	if !ok {
		set = make(neighborSet, len(extra))
		o.buckets[key] = set
	}
	for _, r := range extra {
		if r == nil || r.ID() == id {
			continue
		}
		set[r.ID()] = r
	}
}

// Len reports the number of distinct (id, level) buckets touched so far.
func (o *Overlay) Len() int {
	return len(o.buckets)
}
