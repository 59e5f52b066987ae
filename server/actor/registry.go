package actor

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/segmentio/fasthash/fnv1a"
)

const shardCount = 32

// Registry is a sharded concurrent map. Managers use it to map child IDs to
// Senders; the read-heavy access pattern from sibling actors is what the
// sharding is for.
type Registry[K comparable, V any] struct {
	hash   func(K) uint64
	shards [shardCount]registryShard[K, V]
}

type registryShard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewRegistry returns an empty Registry. hash must be deterministic for a key.
func NewRegistry[K comparable, V any](hash func(K) uint64) *Registry[K, V] {
	r := &Registry[K, V]{hash: hash}
	for i := range r.shards {
		r.shards[i].m = make(map[K]V)
	}
	return r
}

func (r *Registry[K, V]) shard(k K) *registryShard[K, V] {
	return &r.shards[r.hash(k)%shardCount]
}

// Load returns the value stored for k.
func (r *Registry[K, V]) Load(k K) (V, bool) {
	s := r.shard(k)
	s.mu.RLock()
	v, ok := s.m[k]
	s.mu.RUnlock()
	return v, ok
}

// Store sets the value for k, replacing any existing value.
func (r *Registry[K, V]) Store(k K, v V) {
	s := r.shard(k)
	s.mu.Lock()
	s.m[k] = v
	s.mu.Unlock()
}

// Insert stores v for k only if k is absent. It reports whether v was stored.
func (r *Registry[K, V]) Insert(k K, v V) bool {
	s := r.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = v
	return true
}

// Delete removes k and returns the value it held.
func (r *Registry[K, V]) Delete(k K) (V, bool) {
	s := r.shard(k)
	s.mu.Lock()
	v, ok := s.m[k]
	delete(s.m, k)
	s.mu.Unlock()
	return v, ok
}

// CompareAndDelete removes k only if eq reports the stored value as the
// expected one.
func (r *Registry[K, V]) CompareAndDelete(k K, eq func(V) bool) bool {
	s := r.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[k]; ok && eq(v) {
		delete(s.m, k)
		return true
	}
	return false
}

// Range calls f for every entry until f returns false. Entries added or
// removed during the walk may or may not be visited.
func (r *Registry[K, V]) Range(f func(K, V) bool) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		entries := make([]registryEntry[K, V], 0, len(s.m))
		for k, v := range s.m {
			entries = append(entries, registryEntry[K, V]{k, v})
		}
		s.mu.RUnlock()
		for _, e := range entries {
			if !f(e.k, e.v) {
				return
			}
		}
	}
}

type registryEntry[K comparable, V any] struct {
	k K
	v V
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Keys returns a snapshot of every key.
func (r *Registry[K, V]) Keys() []K {
	keys := make([]K, 0, r.Len())
	r.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Clear removes every entry.
func (r *Registry[K, V]) Clear() {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		clear(s.m)
		s.mu.Unlock()
	}
}

// UUIDHash hashes a UUID key.
func UUIDHash(id uuid.UUID) uint64 {
	return xxhash.Sum64(id[:])
}

// StringHash hashes a string key.
func StringHash(s string) uint64 {
	return xxhash.Sum64String(s)
}

// CoordHash hashes a two-dimensional coordinate key such as a chunk or region
// position.
func CoordHash(c [2]int64) uint64 {
	return fnv1a.AddUint64(fnv1a.HashUint64(uint64(c[0])), uint64(c[1]))
}

// Int32Hash hashes an int32 key.
func Int32Hash(v int32) uint64 {
	return fnv1a.HashUint64(uint64(uint32(v)))
}
