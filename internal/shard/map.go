// Package shard provides a fixed-width sharded map. Every operation locks
// exactly one shard, and callbacks run while that lock is held, so a caller
// can atomically read-modify-write an entry and do bounded work on a second
// structure under the same critical section.
package shard

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Count is the number of shards in every Map.
const Count = 64

// Hasher maps a key to a 64-bit hash. Shard selection uses the low bits.
type Hasher[K comparable] func(K) uint64

// Uint64 hashes integer keys with xxhash so sequential handles spread evenly.
func Uint64[K ~uint64](k K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	return xxhash.Sum64(buf[:])
}

type bucket[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
}

// Map is a concurrent map split across Count independently locked shards.
type Map[K comparable, V any] struct {
	hash   Hasher[K]
	shards [Count]bucket[K, V]
}

// New returns an empty map using hash to place keys.
func New[K comparable, V any](hash Hasher[K]) *Map[K, V] {
	m := &Map[K, V]{hash: hash}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

// ShardFor reports which shard owns k.
func (m *Map[K, V]) ShardFor(k K) int {
	return int(m.hash(k) % Count)
}

func (m *Map[K, V]) bucket(k K) *bucket[K, V] {
	return &m.shards[m.ShardFor(k)]
}

// Load returns a copy of the value stored under k.
func (m *Map[K, V]) Load(k K) (V, bool) {
	b := m.bucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[k]
	return v, ok
}

// Insert stores v under k unless the key is present. It reports whether the
// value was stored.
func (m *Map[K, V]) Insert(k K, v V) bool {
	b := m.bucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.m[k]; ok {
		return false
	}
	b.m[k] = v
	return true
}

// Upsert calls fn with a pointer to the entry for k, creating a zero entry
// first when absent. It reports whether the entry already existed.
func (m *Map[K, V]) Upsert(k K, fn func(v *V, existed bool)) bool {
	b := m.bucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[k]
	fn(&v, ok)
	b.m[k] = v
	return ok
}

// Modify calls fn with the entry for k if present. It reports whether fn ran.
func (m *Map[K, V]) Modify(k K, fn func(v *V)) bool {
	b := m.bucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[k]
	if !ok {
		return false
	}
	fn(&v)
	b.m[k] = v
	return true
}

// EraseIf calls fn with the entry for k if present and deletes the entry
// when fn returns true. It reports whether the entry was deleted.
func (m *Map[K, V]) EraseIf(k K, fn func(v *V) bool) bool {
	b := m.bucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[k]
	if !ok {
		return false
	}
	if fn(&v) {
		delete(b.m, k)
		return true
	}
	b.m[k] = v
	return false
}

// RangeShard calls fn for every entry in shard i while holding that shard's
// lock. Returning true from fn deletes the entry.
func (m *Map[K, V]) RangeShard(i int, fn func(k K, v *V) (remove bool)) {
	b := &m.shards[i%Count]
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.m {
		if fn(k, &v) {
			delete(b.m, k)
			continue
		}
		b.m[k] = v
	}
}

// Range visits every shard in order. Entries added concurrently may or may
// not be observed.
func (m *Map[K, V]) Range(fn func(k K, v *V) (remove bool)) {
	for i := 0; i < Count; i++ {
		m.RangeShard(i, fn)
	}
}

// Len counts entries across all shards. The result is a snapshot.
func (m *Map[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		b := &m.shards[i]
		b.mu.Lock()
		n += len(b.m)
		b.mu.Unlock()
	}
	return n
}

// Clear drops every entry.
func (m *Map[K, V]) Clear() {
	for i := range m.shards {
		b := &m.shards[i]
		b.mu.Lock()
		clear(b.m)
		b.mu.Unlock()
	}
}
