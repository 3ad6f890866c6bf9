package hnswcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxnCommitTwoVertexSymmetricInsert(t *testing.T) {
	store := newFakeStore()
	edgeWrite, read := store.txn()

	tx := NewTxn(read, edgeWrite, 0)
	v1, v2 := rec(1), rec(2)

	require.NoError(t, tx.SetNeighbors(v1, 0, []*VectorRecord{v2}))
	require.NoError(t, tx.Commit(edgeWrite))

	assert.Contains(t, store.committed, string(EncodeEdgeKey(v1.ID(), 0, v2.ID())))
	assert.Contains(t, store.committed, string(EncodeEdgeKey(v2.ID(), 0, v1.ID())))
	assert.Len(t, store.committed, 2, "exactly two keys for a single symmetric edge")
	assert.Equal(t, StateCommitted, tx.State())
}

func TestTxnCommitReplacementDropsOldEdge(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)
	v1, v2, v3 := rec(1), rec(2), rec(3)

	require.NoError(t, tx.SetNeighbors(v1, 0, []*VectorRecord{v2, v3}))
	require.NoError(t, tx.SetNeighbors(v1, 0, []*VectorRecord{v3}))
	require.NoError(t, tx.Commit(write))

	assert.Contains(t, store.committed, string(EncodeEdgeKey(v1.ID(), 0, v3.ID())))
	assert.Contains(t, store.committed, string(EncodeEdgeKey(v3.ID(), 0, v1.ID())))
	assert.NotContains(t, store.committed, string(EncodeEdgeKey(v1.ID(), 0, v2.ID())),
		"overlay never re-adds an edge it dropped before commit")
	assert.Len(t, store.committed, 2)
}

func TestTxnCommitSelfLoopSuppressed(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)
	v5, v6 := rec(5), rec(6)

	require.NoError(t, tx.SetNeighbors(v5, 2, []*VectorRecord{v5, v6}))
	require.NoError(t, tx.Commit(write))

	assert.Contains(t, store.committed, string(EncodeEdgeKey(v5.ID(), 2, v6.ID())))
	assert.Contains(t, store.committed, string(EncodeEdgeKey(v6.ID(), 2, v5.ID())))
	for k := range store.committed {
		src, _, dst, ok := DecodeEdgeKey([]byte(k))
		require.True(t, ok)
		assert.NotEqual(t, src, dst, "no self-edge should ever be committed")
	}
	assert.Len(t, store.committed, 2)
}

func TestTxnAbortWritesNothing(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)
	v1, v2, v3 := rec(1), rec(2), rec(3)

	require.NoError(t, tx.SetNeighbors(v1, 0, []*VectorRecord{v2, v3}))
	tx.Abort()

	assert.Empty(t, store.committed)
	assert.Equal(t, StateAborted, tx.State())

	err := tx.SetNeighbors(v1, 0, nil)
	assert.ErrorIs(t, err, ErrTxnClosed)
}

func TestTxnDropWithoutCommitWritesNothing(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)

	require.NoError(t, tx.SetNeighbors(rec(1), 0, []*VectorRecord{rec(2)}))
	// tx simply goes out of scope here without Commit ever being called.

	assert.Empty(t, store.committed, "nothing is written to the store before Commit runs")
}

func TestTxnCommitRepeatedIdenticalCallsProduceNoDuplicates(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)
	v1, v2 := rec(1), rec(2)

	for i := 0; i < 3; i++ {
		require.NoError(t, tx.SetNeighbors(v1, 0, []*VectorRecord{v2}))
	}
	require.NoError(t, tx.Commit(write))

	assert.Equal(t, 2, store.putCount)
}

func TestTxnCommitLevelIndependence(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)
	v1, v2, v3 := rec(1), rec(2), rec(3)

	require.NoError(t, tx.SetNeighbors(v1, 0, []*VectorRecord{v2}))
	require.NoError(t, tx.SetNeighbors(v1, 1, []*VectorRecord{v3}))
	require.NoError(t, tx.Commit(write))

	want := []string{
		string(EncodeEdgeKey(v1.ID(), 0, v2.ID())),
		string(EncodeEdgeKey(v2.ID(), 0, v1.ID())),
		string(EncodeEdgeKey(v1.ID(), 1, v3.ID())),
		string(EncodeEdgeKey(v3.ID(), 1, v1.ID())),
	}
	assert.Len(t, store.committed, 4)
	for _, k := range want {
		assert.Contains(t, store.committed, k)
	}
}

func TestTxnCommitFailurePropagatesAndAborts(t *testing.T) {
	tx := NewTxn(nil, &failingWriteTxn{failOn: "put"}, 0)
	require.NoError(t, tx.SetNeighbors(rec(1), 0, []*VectorRecord{rec(2)}))

	err := tx.Commit(&failingWriteTxn{failOn: "put"})
	require.Error(t, err)
	var commitErr *CommitError
	assert.ErrorAs(t, err, &commitErr)
	assert.Equal(t, "put", commitErr.Op)
	assert.Equal(t, StateAborted, tx.State())
}

func TestTxnCommitUnderlyingCommitFailure(t *testing.T) {
	tx := NewTxn(nil, &failingWriteTxn{failOn: "commit"}, 0)
	require.NoError(t, tx.SetNeighbors(rec(1), 0, []*VectorRecord{rec(2)}))

	err := tx.Commit(&failingWriteTxn{failOn: "commit"})
	require.Error(t, err)
	var commitErr *CommitError
	assert.ErrorAs(t, err, &commitErr)
	assert.Equal(t, "commit", commitErr.Op)
	assert.Equal(t, StateAborted, tx.State())
}

func TestTxnCommitTwiceFails(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)

	require.NoError(t, tx.Commit(write))
	err := tx.Commit(write)
	assert.ErrorIs(t, err, ErrTxnClosed)
}

func TestTxnOperationsAfterCommitFail(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)
	require.NoError(t, tx.Commit(write))

	_, _, err := tx.GetNeighbors(NewVectorID(0, 1), 0)
	assert.ErrorIs(t, err, ErrTxnClosed)

	err = tx.InsertNeighbors(NewVectorID(0, 1), 0, nil)
	assert.ErrorIs(t, err, ErrTxnClosed)
}

func TestTxnReadWriteViewPassthrough(t *testing.T) {
	store := newFakeStore()
	write, read := store.txn()
	tx := NewTxn(read, write, 0)

	assert.Same(t, read, tx.ReadView())
	assert.Same(t, write, tx.WriteView())
}
