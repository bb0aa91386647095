// Package cache provides a generic fixed-capacity LRU cache.
//
// The cache backs the triple store's query-result memoization and is
// reusable by any caller that needs bounded key→value caching.
//
// Features:
// - LRU eviction for bounded memory
// - Hit/miss/eviction statistics, exact under concurrent access
// - Oldest-to-newest iteration
// - Thread-safe operations
//
// Usage:
//
//	c, err := cache.New[string, []int](1000)
//	if err != nil {
//		return err
//	}
//
//	c.Set("key", []int{1, 2, 3})
//	if v, ok := c.Get("key"); ok {
//		use(v)
//	}
package cache

import (
	"container/list"
	"sync"

	"github.com/cockroachdb/errors"
)

// DefaultCapacity is used by Default when no explicit capacity is chosen.
const DefaultCapacity = 1000

// ErrInvalidCapacity indicates a cache capacity below 1.
var ErrInvalidCapacity = errors.New("invalid cache capacity")

// Cache is a thread-safe fixed-capacity LRU cache.
//
// The cache uses:
// - Hash map for O(1) lookups
// - Doubly-linked list for LRU ordering (front = most recently used)
//
// All operations are O(1) amortized.
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	capacity int

	// LRU list and map
	list  *list.List
	items map[K]*list.Element

	// Statistics. Guarded by mu so counts stay exact under race.
	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a cache with the given capacity. Capacity must be at least 1.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity < 1 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d, need >= 1", capacity)
	}
	return &Cache[K, V]{
		capacity: capacity,
		list:     list.New(),
		items:    make(map[K]*list.Element, capacity),
	}, nil
}

// Default creates a cache with DefaultCapacity.
func Default[K comparable, V any]() *Cache[K, V] {
	c, err := New[K, V](DefaultCapacity)
	if err != nil {
		// Unreachable: DefaultCapacity is a positive constant.
		panic(err)
	}
	return c
}

// Set inserts or overwrites a value. Overwriting an existing key updates its
// value and marks it most-recently-used without changing the cache size. If
// the cache is at capacity and the key is new, the least-recently-used entry
// is evicted first and the eviction counter is incremented.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*cacheEntry[K, V]).value = value
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.capacity {
		c.evictOldest()
	}

	elem := c.list.PushFront(&cacheEntry[K, V]{key: key, value: value})
	c.items[key] = elem
}

// Get returns the value for key and marks it most-recently-used. A present
// lookup increments the hit counter; an absent one increments the miss
// counter.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	c.list.MoveToFront(elem)
	c.hits++
	return elem.Value.(*cacheEntry[K, V]).value, true
}

// Has reports whether key is present. It does not alter recency order and
// does not affect hit/miss statistics.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Delete removes an entry if present and reports whether it was.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

// Clear empties the cache. Statistics are preserved.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.Init()
	c.items = make(map[K]*list.Element, c.capacity)
}

// ResetStats zeroes the hit/miss/eviction counters. Contents are preserved.
func (c *Cache[K, V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Cleanup empties the cache and zeroes the counters.
func (c *Cache[K, V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.Init()
	c.items = make(map[K]*list.Element, c.capacity)
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// Keys returns the cached keys ordered oldest-to-newest (least- to
// most-recently-used).
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.list.Len())
	for elem := c.list.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(*cacheEntry[K, V]).key)
	}
	return keys
}

// Values returns the cached values ordered oldest-to-newest.
func (c *Cache[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make([]V, 0, c.list.Len())
	for elem := c.list.Back(); elem != nil; elem = elem.Prev() {
		values = append(values, elem.Value.(*cacheEntry[K, V]).value)
	}
	return values
}

// Entry is a key/value pair returned by Entries.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Entries returns the cached entries ordered oldest-to-newest.
func (c *Cache[K, V]) Entries() []Entry[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry[K, V], 0, c.list.Len())
	for elem := c.list.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*cacheEntry[K, V])
		entries = append(entries, Entry[K, V]{Key: e.key, Value: e.value})
	}
	return entries
}

// ForEach calls fn for every entry, oldest-to-newest. The iteration works on
// a snapshot, so fn may call back into the cache.
func (c *Cache[K, V]) ForEach(fn func(key K, value V)) {
	for _, e := range c.Entries() {
		fn(e.Key, e.Value)
	}
}

// Stats holds cache performance statistics.
type Stats struct {
	Hits      uint64  // Number of cache hits
	Misses    uint64  // Number of cache misses
	Evictions uint64  // Number of LRU evictions
	Size      int     // Current number of entries
	Capacity  int     // Maximum capacity
	HitRate   float64 // Hit rate percentage (0-100)
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.list.Len(),
		Capacity:  c.capacity,
		HitRate:   hitRate,
	}
}

// evictOldest removes the least recently used entry.
// Caller must hold the lock.
func (c *Cache[K, V]) evictOldest() {
	elem := c.list.Back()
	if elem != nil {
		c.removeElement(elem)
		c.evictions++
	}
}

// removeElement removes an element from the list and map.
// Caller must hold the lock.
func (c *Cache[K, V]) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry[K, V]).key)
}
