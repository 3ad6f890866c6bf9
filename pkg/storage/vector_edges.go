// Package storage - BadgerDB-backed plumbing for the HNSW neighbor cache.
//
// This file adapts BadgerEngine's transactions to the small interfaces
// pkg/hnswcache expects from its underlying key-value store, and exposes
// the dedicated "vector edge" logical database the cache materializes into
// (see pkg/hnswcache's edge key prefix). The cache package itself stays
// free of any BadgerDB dependency; everything badger-specific lives here.
package storage

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/misterclayt0n/helix-db/pkg/hnswcache"
)

// VectorTxn bundles a hnswcache.Txn with the BadgerDB write transaction it
// reads and writes through, so callers get one object to drive an HNSW
// insert/update and then commit.
type VectorTxn struct {
	Core   *hnswcache.Txn
	badger *badger.Txn
}

// BeginVectorTxn starts a new BadgerDB write transaction and wraps it in a
// hnswcache.Txn ready to accept SetNeighbors/InsertNeighbors calls from the
// HNSW insertion logic. The caller must eventually call Commit or Discard.
func (b *BadgerEngine) BeginVectorTxn(expectedBuckets int) *VectorTxn {
	badgerTxn := b.db.NewTransaction(true)
	write := &badgerWriteTxn{txn: badgerTxn}
	read := &badgerReadTxn{txn: badgerTxn}
	return &VectorTxn{
		Core:   hnswcache.NewTxn(read, write, expectedBuckets),
		badger: badgerTxn,
	}
}

// Commit materializes the pending neighbor overlay into the vector edge
// keyspace and durably commits the underlying BadgerDB transaction.
func (vt *VectorTxn) Commit() error {
	edgeDB := &badgerWriteTxn{txn: vt.badger}
	if err := vt.Core.Commit(edgeDB); err != nil {
		vt.badger.Discard()
		return err
	}
	return nil
}

// Discard aborts the transaction: the overlay is dropped and the BadgerDB
// transaction is discarded without ever being committed.
func (vt *VectorTxn) Discard() {
	vt.Core.Abort()
	vt.badger.Discard()
}

// VectorNeighbors reads the currently persisted neighbor set of (id, level)
// by prefix-scanning the vector edge keyspace, per the spec's persisted
// state layout: there is no separate "neighbor list" record, only the
// collected dst ids of every key sharing that prefix.
func (b *BadgerEngine) VectorNeighbors(id hnswcache.VectorID, level uint32) ([]hnswcache.VectorID, error) {
	var neighbors []hnswcache.VectorID
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := hnswcache.EdgeKeyPrefix(id, level)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			dst, ok := hnswcache.DstFromEdgeKey(it.Item().KeyCopy(nil))
			if !ok {
				continue
			}
			neighbors = append(neighbors, dst)
		}
		return nil
	})
	return neighbors, err
}

// badgerWriteTxn adapts *badger.Txn to hnswcache.WriteTxn.
type badgerWriteTxn struct {
	txn *badger.Txn
}

func (w *badgerWriteTxn) Put(key, value []byte) error {
	return w.txn.Set(key, value)
}

func (w *badgerWriteTxn) Commit() error {
	return w.txn.Commit()
}

// badgerReadTxn adapts *badger.Txn to hnswcache.ReadTxn.
type badgerReadTxn struct {
	txn *badger.Txn
}

func (r *badgerReadTxn) Get(key []byte) ([]byte, error) {
	item, err := r.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (r *badgerReadTxn) PrefixIterator(prefix []byte) hnswcache.Iterator {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := r.txn.NewIterator(opts)
	it.Seek(prefix)
	return &badgerPrefixIterator{it: it, prefix: prefix, started: false}
}

// badgerPrefixIterator adapts *badger.Iterator to hnswcache.Iterator. The
// underlying iterator is already seeked to prefix by PrefixIterator, so the
// first Next() call must not advance past that initial position.
type badgerPrefixIterator struct {
	it      *badger.Iterator
	prefix  []byte
	started bool
}

func (it *badgerPrefixIterator) Next() bool {
	if !it.started {
		it.started = true
	} else {
		it.it.Next()
	}
	return it.it.ValidForPrefix(it.prefix)
}

func (it *badgerPrefixIterator) Key() []byte {
	return it.it.Item().KeyCopy(nil)
}

func (it *badgerPrefixIterator) Close() {
	it.it.Close()
}
