package bitmap

import "sync"

// Pool is a fixed-capacity FIFO of same-sized buffers, used for thumbnails.
//
// Releasing into a full pool frees the oldest held buffer first, so the
// pool never holds more than its capacity and each overflowing release
// frees exactly one buffer.
//
// Thread safety: All methods are safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	size     Size
	capacity int
	items    []*Bitmap // oldest first

	dropped uint64
}

// NewPool creates a pool for buffers of the given size.
// A capacity below 1 is treated as 1.
func NewPool(size Size, capacity int) *Pool {
	capacity = max(capacity, 1)
	return &Pool{
		size:     size,
		capacity: capacity,
		items:    make([]*Bitmap, 0, capacity),
	}
}

// Size returns the buffer size the pool recycles.
func (p *Pool) Size() Size {
	return p.size
}

// Capacity returns the maximum number of held buffers.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Len returns the number of held buffers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.items)
}

// Acquire pops the front buffer. It returns false when the pool is empty.
func (p *Pool) Acquire() (*Bitmap, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) == 0 {
		return nil, false
	}
	b := p.items[0]
	p.items[0] = nil
	p.items = p.items[1:]
	return b, true
}

// Release hands b to the pool. A buffer of the wrong size is freed.
func (p *Pool) Release(b *Bitmap) {
	if b == nil || b.Freed() {
		return
	}
	if b.Size() != p.size {
		b.Free()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) >= p.capacity {
		p.items[0].Free()
		p.items[0] = nil
		p.items = p.items[1:]
		p.dropped++
	}
	p.items = append(p.items, b)
}

// Drain frees every held buffer.
func (p *Pool) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, b := range p.items {
		b.Free()
		p.items[i] = nil
	}
	p.items = p.items[:0]
}

// Take implements Recycler. Only requests for the pool's size can hit.
func (p *Pool) Take(size Size) (*Bitmap, bool) {
	if size != p.size {
		return nil, false
	}
	return p.Acquire()
}

// Put implements Recycler.
func (p *Pool) Put(b *Bitmap) {
	p.Release(b)
}

// PoolStats is a snapshot of pool state.
type PoolStats struct {
	Len      int
	Capacity int
	// Dropped is the number of buffers freed because the pool was full.
	Dropped uint64
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{Len: len(p.items), Capacity: p.capacity, Dropped: p.dropped}
}
