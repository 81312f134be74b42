package cache

import (
	"hash/maphash"
	"sync"
)

const numShards = 16

// Sharded distributes keys over independent LRUs to reduce lock contention.
type Sharded[K comparable, V any] struct {
	shards [numShards]*LRU[K, V]
	seed   maphash.Seed
}

// NewSharded creates a sharded cache. The capacity is divided evenly across
// all shards, each holding at least one entry.
func NewSharded[K comparable, V any](capacity int) *Sharded[K, V] {
	s := &Sharded[K, V]{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRU[K, V](capacity / numShards)
	}
	return s
}

func (s *Sharded[K, V]) shard(key K) *LRU[K, V] {
	return s.shards[maphash.Comparable(s.seed, key)%numShards]
}

// Get returns the cached value for key.
func (s *Sharded[K, V]) Get(key K) (V, bool) {
	return s.shard(key).Get(key)
}

// Set caches value under key.
func (s *Sharded[K, V]) Set(key K, value V) {
	s.shard(key).Set(key, value)
}

// Invalidate removes entries matching the predicate from every shard.
func (s *Sharded[K, V]) Invalidate(predicate func(key K) bool) {
	var wg sync.WaitGroup
	wg.Add(numShards)
	for i := range numShards {
		go func(shard *LRU[K, V]) {
			defer wg.Done()
			shard.Invalidate(predicate)
		}(s.shards[i])
	}
	wg.Wait()
}

// Purge empties every shard.
func (s *Sharded[K, V]) Purge() {
	for i := range numShards {
		s.shards[i].Purge()
	}
}

// Len returns the number of entries across all shards.
func (s *Sharded[K, V]) Len() int {
	var n int
	for i := range numShards {
		n += s.shards[i].Len()
	}
	return n
}

// Stats returns aggregated hit and miss counts.
func (s *Sharded[K, V]) Stats() (hits, misses int64) {
	for i := range numShards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}
