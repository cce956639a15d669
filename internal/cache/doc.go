// Package cache provides the recency bookkeeping shared by the viewer's
// caches.
//
// # List[K]
//
// An intrusive doubly-linked recency list. It holds keys only; callers keep
// their own index from key to *Node and synchronize access themselves.
//
// # Cache[K, V]
//
// A thread-safe LRU cache bounded by entry count. An optional eviction
// callback lets values that own resources release them when they fall out.
//
//	c := cache.New[int, *image.RGBA](4)
//	c.OnEvict(func(page int, img *image.RGBA) { ... })
//	c.Set(0, img)
//	img, ok := c.Get(0)
package cache
