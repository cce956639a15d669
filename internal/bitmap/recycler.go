package bitmap

// Recycler takes back buffers that are no longer displayed and hands them
// out again for new renders of the same size.
type Recycler interface {
	// Take returns a held buffer of exactly size, if any.
	Take(size Size) (*Bitmap, bool)
	// Put transfers ownership of b to the recycler.
	Put(b *Bitmap)
}

// Discard is the Recycler used when recycling is disabled: Take always
// misses and Put frees the buffer.
var Discard Recycler = discard{}

type discard struct{}

func (discard) Take(Size) (*Bitmap, bool) { return nil, false }
func (discard) Put(b *Bitmap) {
	if b != nil {
		b.Free()
	}
}

// Obtain returns a cleared buffer of the given size from r, allocating a
// fresh one on a miss. A nil r behaves like Discard.
func Obtain(r Recycler, size Size) (*Bitmap, error) {
	if r != nil {
		if b, ok := r.Take(size); ok {
			b.Clear()
			return b, nil
		}
	}
	return New(size)
}

// Recycle hands b to r, or frees it when r is nil.
func Recycle(r Recycler, b *Bitmap) {
	if b == nil {
		return
	}
	if r == nil {
		b.Free()
		return
	}
	r.Put(b)
}

// WithFallback returns a Recycler that serves the pool's size from the pool
// and every other size from next. Thumbnails of the common page size are
// pooled while odd-sized ones still get recycled.
func WithFallback(pool *Pool, next Recycler) Recycler {
	if next == nil {
		next = Discard
	}
	return fallback{pool: pool, next: next}
}

type fallback struct {
	pool *Pool
	next Recycler
}

func (f fallback) Take(size Size) (*Bitmap, bool) {
	if size == f.pool.Size() {
		return f.pool.Acquire()
	}
	return f.next.Take(size)
}

func (f fallback) Put(b *Bitmap) {
	if b == nil {
		return
	}
	if b.Size() == f.pool.Size() {
		f.pool.Release(b)
		return
	}
	f.next.Put(b)
}
