package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cespare/xxhash/v2"
)

// memoryEntry is what MemoryLayer actually stores per key: the opaque
// cached value alongside its own expiry. hashicorp/golang-lru/v2 has no
// native TTL, so MemoryLayer treats an expired Get as a miss-and-evict,
// the same lazy-expiry shape as the teacher's metrics cache.
type memoryEntry struct {
	value      []byte
	expiresAt  time.Time
	sizeBytes  int
}

// MemoryStats reports MemoryLayer's aggregate counters.
type MemoryStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

// MemoryLayer is the in-process, bounded, TTL-aware cache tier. Keys are
// sharded across N independent LRU instances so a write-heavy shard never
// blocks reads on an unrelated key's shard.
type MemoryLayer struct {
	shards    []*memoryShard
	shardMask uint64
}

type memoryShard struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *memoryEntry]
	stats MemoryStats
}

// NewMemoryLayer builds a MemoryLayer with shardCount shards, each
// holding up to maxEntriesPerShard items. shardCount is rounded up to the
// next power of two for cheap masking.
//
// Eviction is bounded by entry count, not by the byte total each entry's
// sizeBytes tracks; hashicorp/golang-lru/v2 evicts on a fixed slot count,
// with no byte-weighted variant. sizeBytes is still maintained and rolled
// up into MemoryStats.Bytes via the eviction callback below, so operators
// can see memory pressure even though the cap itself is entry-counted.
func NewMemoryLayer(shardCount, maxEntriesPerShard int) (*MemoryLayer, error) {
	if shardCount <= 0 {
		shardCount = 1
	}
	if maxEntriesPerShard <= 0 {
		maxEntriesPerShard = 1024
	}
	n := nextPowerOfTwo(shardCount)

	shards := make([]*memoryShard, n)
	for i := range shards {
		shard := &memoryShard{}
		c, err := lru.NewWithEvict[string, *memoryEntry](maxEntriesPerShard, func(_ string, evicted *memoryEntry) {
			shard.stats.Bytes -= int64(evicted.sizeBytes)
			shard.stats.Evictions++
		})
		if err != nil {
			return nil, err
		}
		shard.lru = c
		shards[i] = shard
	}

	return &MemoryLayer{shards: shards, shardMask: uint64(n - 1)}, nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (m *MemoryLayer) shardFor(key string) *memoryShard {
	h := xxhash.Sum64String(key)
	return m.shards[h&m.shardMask]
}

// Get returns the cached value for key if present and unexpired.
func (m *MemoryLayer) Get(key string) ([]byte, bool) {
	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.lru.Get(key)
	if !ok {
		shard.stats.Misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		// Remove runs the eviction callback registered in NewMemoryLayer,
		// which accounts for Bytes and Evictions; don't double-count here.
		shard.lru.Remove(key)
		shard.stats.Misses++
		return nil, false
	}
	shard.stats.Hits++
	return entry.value, true
}

// Put stores value for key with the given TTL.
func (m *MemoryLayer) Put(key string, value []byte, ttl time.Duration) {
	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Add() updates an existing key's entry in place without running the
	// eviction callback, so an overwrite's old bytes have to be backed out
	// by hand before the new size is added in.
	if old, ok := shard.lru.Peek(key); ok {
		shard.stats.Bytes -= int64(old.sizeBytes)
	}
	shard.stats.Bytes += int64(len(value))

	shard.lru.Add(key, &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
		sizeBytes: len(value),
	})
}

// InvalidateByPredicate removes every key for which pred returns true,
// across all shards.
func (m *MemoryLayer) InvalidateByPredicate(pred func(key string) bool) int {
	removed := 0
	for _, shard := range m.shards {
		shard.mu.Lock()
		for _, key := range shard.lru.Keys() {
			if pred(key) {
				// Remove runs the eviction callback, which accounts for
				// Bytes and Evictions.
				shard.lru.Remove(key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Stats aggregates counters across every shard.
func (m *MemoryLayer) Stats() MemoryStats {
	var total MemoryStats
	for _, shard := range m.shards {
		shard.mu.Lock()
		total.Hits += shard.stats.Hits
		total.Misses += shard.stats.Misses
		total.Evictions += shard.stats.Evictions
		total.Entries += shard.lru.Len()
		total.Bytes += shard.stats.Bytes
		shard.mu.Unlock()
	}
	return total
}
