package bitmap

import (
	"sync"

	"github.com/gogpu/pdfview/internal/cache"
)

// Cache is a size-bucketed LRU of buffers bounded by a kilobyte budget.
//
// Each bucket holds buffers of one exact Size and behaves as a stack: the
// most recently inserted buffer is handed out first. Buckets are ordered by
// the last time they were touched by Lookup or Insert. When an insertion
// pushes the tracked total over budget, the oldest buffer of the least
// recently touched bucket is freed, repeatedly, until the total fits.
//
// Thread safety: All methods are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	budgetKB   int
	totalBytes int
	buckets  map[Size]*bucket
	order    cache.List[Size]

	hits      uint64
	misses    uint64
	evictions uint64
}

type bucket struct {
	items []*Bitmap // oldest first
	node  *cache.Node[Size]
}

// NewCache creates a cache with the given budget in kilobytes.
func NewCache(budgetKB int) *Cache {
	return &Cache{
		budgetKB: max(budgetKB, 0),
		buckets:  make(map[Size]*bucket),
	}
}

// Lookup pops the most recently inserted buffer of exactly size and marks
// the bucket as most recently used. It returns false on a miss.
func (c *Cache) Lookup(size Size) (*Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bk, ok := c.buckets[size]
	if !ok {
		c.misses++
		return nil, false
	}

	last := len(bk.items) - 1
	b := bk.items[last]
	bk.items[last] = nil
	bk.items = bk.items[:last]
	c.totalBytes -= b.Bytes()
	c.hits++

	if len(bk.items) == 0 {
		c.dropBucket(size, bk)
	} else {
		c.order.MoveToFront(bk.node)
	}
	return b, true
}

// Insert hands b to the cache and trims to budget.
func (c *Cache) Insert(b *Bitmap) {
	if b == nil || b.Freed() {
		return
	}
	size := b.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	bk, ok := c.buckets[size]
	if !ok {
		bk = &bucket{node: c.order.PushFront(size)}
		c.buckets[size] = bk
	} else {
		c.order.MoveToFront(bk.node)
	}
	bk.items = append(bk.items, b)
	c.totalBytes += b.Bytes()

	c.trim()
}

// EvictAll frees every buffer and empties the cache.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, bk := range c.buckets {
		for _, b := range bk.items {
			b.Free()
		}
	}
	c.buckets = make(map[Size]*bucket)
	c.order.Clear()
	c.totalBytes = 0
}

// SizeKB returns the tracked total in whole kilobytes.
func (c *Cache) SizeKB() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalBytes / 1024
}

// BudgetKB returns the configured budget.
func (c *Cache) BudgetKB() int {
	return c.budgetKB
}

// Take implements Recycler.
func (c *Cache) Take(size Size) (*Bitmap, bool) {
	return c.Lookup(size)
}

// Put implements Recycler.
func (c *Cache) Put(b *Bitmap) {
	c.Insert(b)
}

// trim evicts until the tracked total fits the budget.
// Caller must hold c.mu.
func (c *Cache) trim() {
	for c.totalBytes/1024 > c.budgetKB {
		size, ok := c.order.Oldest()
		if !ok {
			return
		}
		bk := c.buckets[size]

		b := bk.items[0]
		bk.items[0] = nil
		bk.items = bk.items[1:]
		c.totalBytes -= b.Bytes()
		c.evictions++
		b.Free()

		if len(bk.items) == 0 {
			c.dropBucket(size, bk)
		}
	}
}

// Caller must hold c.mu.
func (c *Cache) dropBucket(size Size, bk *bucket) {
	c.order.Remove(bk.node)
	delete(c.buckets, size)
}

// CacheStats is a snapshot of cache state.
type CacheStats struct {
	// Buffers is the number of held buffers across all buckets.
	Buffers int
	// Buckets is the number of distinct sizes held.
	Buckets int
	// SizeKB is the tracked total.
	SizeKB int
	// BudgetKB is the configured budget.
	BudgetKB int
	// Hits and Misses count Lookup results.
	Hits   uint64
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when there were no lookups.
	HitRate float64
	// Evictions is the number of buffers freed to honor the budget.
	Evictions uint64
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Buckets:   len(c.buckets),
		SizeKB:    c.totalBytes / 1024,
		BudgetKB:  c.budgetKB,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	for _, bk := range c.buckets {
		s.Buffers += len(bk.items)
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
