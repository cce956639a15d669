package cache

import "sync"

// Cache is a generic thread-safe LRU cache bounded by entry count.
// When an insertion pushes the cache past its capacity, the least recently
// used entry is evicted and handed to the eviction callback.
//
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*cacheEntry[K, V]
	order    List[K]
	capacity int
	onEvict  func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry[K comparable, V any] struct {
	value V
	node  *Node[K]
}

// New creates a cache holding at most capacity entries.
// A capacity of 0 means unlimited.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:  make(map[K]*cacheEntry[K, V]),
		capacity: capacity,
	}
}

// OnEvict registers fn to be called, under the cache lock, for every entry
// removed by eviction, Delete or Clear.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value and marks it as most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(entry.node)
	return entry.value, true
}

// Set stores a value, replacing any previous value for key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(key, value)
}

// GetOrCreate returns the cached value or creates and stores it.
// create runs under the lock so concurrent callers never build the same
// value twice. An error from create is returned and nothing is stored.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(entry.node)
		return entry.value, nil
	}
	c.misses++

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.setLocked(key, value)
	return value, nil
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, entry)
	return true
}

// Clear removes all entries from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		c.removeLocked(key, entry)
	}
	c.order.Clear()
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Capacity returns the entry limit of the cache.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Caller must hold c.mu.
func (c *Cache[K, V]) setLocked(key K, value V) {
	if entry, ok := c.entries[key]; ok {
		entry.value = value
		c.order.MoveToFront(entry.node)
		return
	}
	c.entries[key] = &cacheEntry[K, V]{value: value, node: c.order.PushFront(key)}

	for c.capacity > 0 && len(c.entries) > c.capacity {
		oldest, ok := c.order.Oldest()
		if !ok {
			break
		}
		c.removeLocked(oldest, c.entries[oldest])
		c.evictions++
	}
}

// Caller must hold c.mu.
func (c *Cache[K, V]) removeLocked(key K, entry *cacheEntry[K, V]) {
	c.order.Remove(entry.node)
	delete(c.entries, key)
	if c.onEvict != nil {
		c.onEvict(key, entry.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the entry limit.
	Capacity int
	// Hits is the number of lookups that found an entry.
	Hits uint64
	// Misses is the number of lookups that did not.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when there were no lookups.
	HitRate float64
	// Evictions is the number of entries dropped to honor Capacity.
	Evictions uint64
}
