package hnswcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(lo uint64) *VectorRecord {
	return NewVectorRecord(NewVectorID(0, lo), 0, nil)
}

func TestOverlaySetNeighbors(t *testing.T) {
	t.Run("two_vertex_symmetric_insert", func(t *testing.T) {
		o := NewOverlay(0)
		v1 := rec(1)
		v2 := rec(2)

		o.SetNeighbors(v1, 0, []*VectorRecord{v2})

		n1, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)
		assert.Len(t, n1, 1)
		assert.Equal(t, v2.ID(), n1[0].ID())

		n2, ok := o.GetNeighbors(v2.ID(), 0)
		require.True(t, ok)
		assert.Len(t, n2, 1)
		assert.Equal(t, v1.ID(), n2[0].ID())
	})

	t.Run("replacement_drops_old_backref_in_overlay", func(t *testing.T) {
		o := NewOverlay(0)
		v1, v2, v3 := rec(1), rec(2), rec(3)

		o.SetNeighbors(v1, 0, []*VectorRecord{v2, v3})
		o.SetNeighbors(v1, 0, []*VectorRecord{v3})

		n1, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)
		assert.ElementsMatch(t, []VectorID{v3.ID()}, idsOf(n1))

		n2, ok := o.GetNeighbors(v2.ID(), 0)
		require.True(t, ok)
		for _, n := range n2 {
			assert.NotEqual(t, v1.ID(), n.ID())
		}

		n3, ok := o.GetNeighbors(v3.ID(), 0)
		require.True(t, ok)
		assert.ElementsMatch(t, []VectorID{v1.ID()}, idsOf(n3))
	})

	t.Run("self_loop_suppressed", func(t *testing.T) {
		o := NewOverlay(0)
		v5, v6 := rec(5), rec(6)

		o.SetNeighbors(v5, 2, []*VectorRecord{v5, v6})

		n5, ok := o.GetNeighbors(v5.ID(), 2)
		require.True(t, ok)
		assert.ElementsMatch(t, []VectorID{v6.ID()}, idsOf(n5))
	})

	t.Run("self_only_set_equivalent_to_empty_set", func(t *testing.T) {
		withSelf := NewOverlay(0)
		withoutSelf := NewOverlay(0)
		v1 := rec(1)

		withSelf.SetNeighbors(v1, 0, []*VectorRecord{v1})
		withoutSelf.SetNeighbors(rec(1), 0, []*VectorRecord{})

		a, okA := withSelf.GetNeighbors(v1.ID(), 0)
		b, okB := withoutSelf.GetNeighbors(v1.ID(), 0)
		require.True(t, okA)
		require.True(t, okB)
		assert.Equal(t, len(b), len(a))
		assert.Empty(t, a)
	})

	t.Run("idempotent_across_repeated_identical_calls", func(t *testing.T) {
		o := NewOverlay(0)
		v1, v2 := rec(1), rec(2)

		o.SetNeighbors(v1, 0, []*VectorRecord{v2})
		once, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)

		for i := 0; i < 2; i++ {
			o.SetNeighbors(v1, 0, []*VectorRecord{v2})
		}
		thrice, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)

		assert.ElementsMatch(t, idsOf(once), idsOf(thrice))
		assert.Equal(t, 2, o.Len(), "repeated identical calls must not grow the bucket count")
	})

	t.Run("empty_replacement_strips_backrefs", func(t *testing.T) {
		o := NewOverlay(0)
		v1, v2 := rec(1), rec(2)

		o.SetNeighbors(v1, 0, []*VectorRecord{v2})
		o.SetNeighbors(v1, 0, []*VectorRecord{})

		n1, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)
		assert.Empty(t, n1)

		n2, ok := o.GetNeighbors(v2.ID(), 0)
		require.True(t, ok)
		assert.Empty(t, n2)
	})

	t.Run("level_independence", func(t *testing.T) {
		o := NewOverlay(0)
		v1, v2, v3 := rec(1), rec(2), rec(3)

		o.SetNeighbors(v1, 0, []*VectorRecord{v2})
		o.SetNeighbors(v1, 1, []*VectorRecord{v3})

		n0, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)
		assert.ElementsMatch(t, []VectorID{v2.ID()}, idsOf(n0))

		n1, ok := o.GetNeighbors(v1.ID(), 1)
		require.True(t, ok)
		assert.ElementsMatch(t, []VectorID{v3.ID()}, idsOf(n1))
	})

	t.Run("large_fanout_has_no_quadratic_blowup_in_bucket_count", func(t *testing.T) {
		o := NewOverlay(0)
		hub := rec(0)
		neighbors := make([]*VectorRecord, 0, 256)
		for i := uint64(1); i <= 256; i++ {
			neighbors = append(neighbors, rec(i))
		}

		o.SetNeighbors(hub, 0, neighbors)

		// hub's bucket plus one bucket per neighbor (for the back-ref).
		assert.Equal(t, 257, o.Len())
	})
}

func TestOverlayGetNeighborsUnknown(t *testing.T) {
	o := NewOverlay(0)
	_, ok := o.GetNeighbors(NewVectorID(0, 1), 0)
	assert.False(t, ok, "unknown (id, level) must report absent, not an error")
}

func TestOverlayInsertNeighbors(t *testing.T) {
	t.Run("unions_without_removing", func(t *testing.T) {
		o := NewOverlay(0)
		v1, v2, v3 := rec(1), rec(2), rec(3)

		o.SetNeighbors(v1, 0, []*VectorRecord{v2})
		o.InsertNeighbors(v1.ID(), 0, []*VectorRecord{v3})

		n1, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)
		assert.ElementsMatch(t, []VectorID{v2.ID(), v3.ID()}, idsOf(n1))
	})

	t.Run("does_not_create_backrefs", func(t *testing.T) {
		o := NewOverlay(0)
		v1, v2 := rec(1), rec(2)

		o.InsertNeighbors(v1.ID(), 0, []*VectorRecord{v2})

		_, ok := o.GetNeighbors(v2.ID(), 0)
		assert.False(t, ok, "insert_neighbors must not maintain symmetry on its own")
	})

	t.Run("filters_self_edges", func(t *testing.T) {
		o := NewOverlay(0)
		v1 := rec(1)

		o.InsertNeighbors(v1.ID(), 0, []*VectorRecord{v1})

		n1, ok := o.GetNeighbors(v1.ID(), 0)
		require.True(t, ok)
		assert.Empty(t, n1)
	})
}

func idsOf(records []*VectorRecord) []VectorID {
	ids := make([]VectorID, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	return ids
}
