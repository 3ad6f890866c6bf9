package hnswcache

// State is the lifecycle state of a Txn.
type State int

const (
	// StateOpen accepts neighbor mutations.
	StateOpen State = iota
	// StateCommitting is entered for the duration of Commit; any failure
	// while in this state moves to StateAborted.
	StateCommitting
	// StateCommitted is terminal: the overlay has been materialized and the
	// underlying transaction has committed successfully.
	StateCommitted
	// StateAborted is terminal: reached either by dropping an open
	// transaction or by a failure during commit.
	StateAborted
)

// Txn adapts an externally created write transaction on the key-value
// store, exposing read-only and read-write passthrough views for non-edge
// data and holding the Overlay that buffers pending neighbor edits until
// commit.
//
// A Txn is single-writer: it is owned by one logical caller for its whole
// lifetime and is never shared across goroutines. Nothing it does has any
// observable effect on the store until Commit succeeds; dropping a Txn
// without committing is a no-op abort, since no KV write ever happens
// before that point.
type Txn struct {
	read  ReadTxn
	write WriteTxn

	overlay *Overlay
	state   State
}

// NewTxn wraps the store's native read/write transaction handles and
// allocates an empty overlay. expectedBuckets sizes the overlay's initial
// capacity; pass 0 for a sensible default.
func NewTxn(read ReadTxn, write WriteTxn, expectedBuckets int) *Txn {
	return &Txn{
		read:    read,
		write:   write,
		overlay: NewOverlay(expectedBuckets),
		state:   StateOpen,
	}
}

// State returns the transaction's current lifecycle state.
func (tx *Txn) State() State {
	return tx.state
}

// ReadView exposes the underlying transaction's read-only side, for callers
// that need to look up non-edge data (vectors, metadata) within the same
// transaction.
func (tx *Txn) ReadView() ReadTxn {
	return tx.read
}

// WriteView exposes exclusive read-write access to the underlying
// transaction, for non-edge writes. The overlay, not this view, is the only
// path for edge mutations.
func (tx *Txn) WriteView() WriteTxn {
	return tx.write
}

// SetNeighbors replaces the pending neighbor set of v at level. See
// Overlay.SetNeighbors for the full reconciliation semantics.
func (tx *Txn) SetNeighbors(v *VectorRecord, level uint32, neighbors []*VectorRecord) error {
	if tx.state != StateOpen {
		return ErrTxnClosed
	}
	tx.overlay.SetNeighbors(v, level, neighbors)
	return nil
}

// GetNeighbors returns the pending neighbors of (id, level), if any.
func (tx *Txn) GetNeighbors(id VectorID, level uint32) ([]*VectorRecord, bool, error) {
	if tx.state != StateOpen {
		return nil, false, ErrTxnClosed
	}
	neighbors, ok := tx.overlay.GetNeighbors(id, level)
	return neighbors, ok, nil
}

// InsertNeighbors union-merges extra into the pending set of (id, level).
// See Overlay.InsertNeighbors for the asymmetry contract this carries.
func (tx *Txn) InsertNeighbors(id VectorID, level uint32, extra []*VectorRecord) error {
	if tx.state != StateOpen {
		return ErrTxnClosed
	}
	tx.overlay.InsertNeighbors(id, level, extra)
	return nil
}

// Abort discards the transaction without writing anything. Since no KV
// write ever happens before Commit, this only needs to release the overlay
// and mark the transaction closed; it is exactly what dropping the Txn
// without calling Commit already achieves.
func (tx *Txn) Abort() {
	if tx.state == StateOpen {
		tx.state = StateAborted
		tx.overlay = nil
	}
}

// Commit drains the overlay into edgeDB - the dedicated logical edge
// database within the key-value store - writing both directions of every
// pending edge, deduplicated, then commits edgeDB. edgeDB is handed in
// rather than held from construction so the cache never outlives the
// commit call that consumes it.
//
// Commit consumes the transaction: on success it is StateCommitted, on any
// failure it is StateAborted and the overlay is discarded either way.
func (tx *Txn) Commit(edgeDB WriteTxn) error {
	if tx.state != StateOpen {
		if tx.state == StateCommitting {
			return ErrAlreadyCommitting
		}
		return ErrTxnClosed
	}

	tx.state = StateCommitting
	overlay := tx.overlay

	if err := materialize(overlay, edgeDB); err != nil {
		tx.state = StateAborted
		tx.overlay = nil
		return err
	}

	tx.state = StateCommitted
	tx.overlay = nil
	return nil
}
