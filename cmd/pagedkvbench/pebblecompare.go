// Package main is the pagedkvbench driver: it runs the same insert /
// search / delete workload against the on-disk cowbtree and, for
// comparison, against a Pebble-backed store, timing both.
package main

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// pebbleCompare wraps a Pebble database behind the same narrow
// operation set cowbtree.Tree exposes, adapted from the teacher's
// dbms/index/lsm package. Unlike the teacher's int64 keys, pagedkv keys
// are already sort-order-preserving byte strings, so there is no
// encodeKey/decodeKey step here — the raw key bytes go straight to
// Pebble.
type pebbleCompare struct {
	db *pebble.DB
}

func openPebbleCompare(dir string) (*pebbleCompare, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebblecompare: open: %w", err)
	}
	return &pebbleCompare{db: db}, nil
}

func (p *pebbleCompare) Close() error { return p.db.Close() }

func (p *pebbleCompare) Insert(key []byte, value uint64) error {
	return p.db.Set(key, encodeValue(value), pebble.NoSync)
}

func (p *pebbleCompare) Search(key []byte) (uint64, bool, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("pebblecompare: get: %w", err)
	}
	defer closer.Close()
	return decodeValue(val), true, nil
}

func (p *pebbleCompare) Delete(key []byte) error {
	if err := p.db.Delete(key, pebble.NoSync); err != nil {
		return fmt.Errorf("pebblecompare: delete: %w", err)
	}
	return nil
}

func encodeValue(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeValue(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
