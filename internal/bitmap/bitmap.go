// Package bitmap owns the RGBA pixel buffers that tiles and thumbnails are
// rasterized into, and the two structures that recycle them: a fixed-size
// FIFO Pool and a size-bucketed LRU Cache bounded by a kilobyte budget.
//
// Buffers move between owners by plain pointer hand-off. Whoever holds a
// *Bitmap owns it until it is passed to a Recycler or freed.
package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
)

// BytesPerPixel is the storage cost of one RGBA pixel.
const BytesPerPixel = 4

// MaxPixels caps a single allocation at 256 MiB of pixel data.
const MaxPixels = 1 << 26

// Common errors for bitmap operations.
var (
	// ErrInvalidSize is returned when width or height is non-positive.
	ErrInvalidSize = errors.New("bitmap: invalid dimensions")

	// ErrTooLarge is returned when a buffer would exceed MaxPixels.
	ErrTooLarge = errors.New("bitmap: dimensions exceed allocation limit")
)

// Size is the exact pixel dimensions of a buffer. It is the bucket key of
// the Cache.
type Size struct {
	W int
	H int
}

// SizeOf returns the size of r.
func SizeOf(r image.Rectangle) Size {
	return Size{W: r.Dx(), H: r.Dy()}
}

// Bytes returns the storage cost of a buffer of this size.
func (s Size) Bytes() int {
	return s.W * s.H * BytesPerPixel
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// Bitmap is an owned RGBA pixel buffer.
//
// A Bitmap is written by exactly one renderer at a time and read by the
// view only after it has been published. Free releases the pixel memory;
// the Bitmap must not be used afterwards.
type Bitmap struct {
	img   *image.RGBA
	size  Size
	freed atomic.Bool
}

// New allocates a zeroed buffer of the given size.
func New(size Size) (*Bitmap, error) {
	if size.W <= 0 || size.H <= 0 {
		return nil, ErrInvalidSize
	}
	if int64(size.W)*int64(size.H) > MaxPixels {
		return nil, fmt.Errorf("%w: %v", ErrTooLarge, size)
	}
	return &Bitmap{
		img:  image.NewRGBA(image.Rect(0, 0, size.W, size.H)),
		size: size,
	}, nil
}

// Image returns the underlying pixels. Bounds start at (0, 0).
func (b *Bitmap) Image() *image.RGBA {
	return b.img
}

// Size returns the buffer dimensions.
func (b *Bitmap) Size() Size {
	return b.size
}

// Bytes returns the storage cost of the buffer.
func (b *Bitmap) Bytes() int {
	return b.size.Bytes()
}

// Clear zeroes every pixel.
func (b *Bitmap) Clear() {
	clear(b.img.Pix)
}

// Fill sets every pixel to c.
func (b *Bitmap) Fill(c color.RGBA) {
	pix := b.img.Pix
	if len(pix) == 0 {
		return
	}
	pix[0], pix[1], pix[2], pix[3] = c.R, c.G, c.B, c.A
	for filled := 4; filled < len(pix); filled *= 2 {
		copy(pix[filled:], pix[:filled])
	}
}

// Free releases the pixel memory. Calling Free more than once is a no-op.
func (b *Bitmap) Free() {
	if b.freed.Swap(true) {
		return
	}
	b.img.Pix = nil
}

// Freed reports whether Free has been called.
func (b *Bitmap) Freed() bool {
	return b.freed.Load()
}
