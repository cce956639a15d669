// Package tile describes renderable rectangles of a page and the ordered
// sets the page model and render scheduler keep them in.
//
// A tile is identified by its Key alone. Two tiles covering the same region
// of the same page at the same raster size are the same tile whether or not
// either has been rendered, which is what lets the scheduler recognize work
// it has already done.
package tile

import (
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/gogpu/pdfview/internal/bitmap"
)

// Key is the identity of a tile.
type Key struct {
	// Page is the zero-based page index.
	Page int
	// Bounds is the tile rectangle in page pixel space at render scale.
	Bounds image.Rectangle
	// PageW and PageH are the page dimensions at render scale.
	PageW int
	PageH int
}

// Size returns the buffer size needed to hold the tile.
func (k Key) Size() bitmap.Size {
	return bitmap.SizeOf(k.Bounds)
}

// Tile is one rectangle of one page rendered at a fixed scale.
//
// The render scale never changes after construction; presenting the tile at
// another scale stretches the buffer into ScaledBounds. The buffer slot is
// atomic so a worker can fill it while the control goroutine draws.
type Tile struct {
	key   Key
	scale float64
	buf   atomic.Pointer[bitmap.Bitmap]
}

// New creates an unrendered tile.
func New(key Key, renderScale float64) *Tile {
	return &Tile{key: key, scale: renderScale}
}

// Key returns the tile identity.
func (t *Tile) Key() Key {
	return t.key
}

// Page returns the page index.
func (t *Tile) Page() int {
	return t.key.Page
}

// Bounds returns the tile rectangle at render scale.
func (t *Tile) Bounds() image.Rectangle {
	return t.key.Bounds
}

// RenderScale returns the scale the tile is rasterized at.
func (t *Tile) RenderScale() float64 {
	return t.scale
}

// ScaledBounds returns Bounds scaled by presentScale/RenderScale.
// Edges are rounded independently so adjacent tiles stay seamless.
func (t *Tile) ScaledBounds(presentScale float64) image.Rectangle {
	if t.scale == presentScale || t.scale == 0 {
		return t.key.Bounds
	}
	f := presentScale / t.scale
	b := t.key.Bounds
	return image.Rect(
		scaleCoord(b.Min.X, f), scaleCoord(b.Min.Y, f),
		scaleCoord(b.Max.X, f), scaleCoord(b.Max.Y, f),
	)
}

func scaleCoord(v int, f float64) int {
	return int(math.Round(float64(v) * f))
}

// IsRendered reports whether the tile holds a buffer.
func (t *Tile) IsRendered() bool {
	return t.buf.Load() != nil
}

// Bitmap returns the rendered buffer, or nil.
func (t *Tile) Bitmap() *bitmap.Bitmap {
	return t.buf.Load()
}

// MarkRendered stores b as the tile's buffer and returns the buffer it
// replaces, if any. The caller owns the returned buffer.
func (t *Tile) MarkRendered(b *bitmap.Bitmap) *bitmap.Bitmap {
	return t.buf.Swap(b)
}

// Release empties the tile and transfers ownership of its buffer to the
// caller. It does not free memory.
func (t *Tile) Release() *bitmap.Bitmap {
	return t.buf.Swap(nil)
}

// Adopt moves the buffer of from into t. Both tiles must share a Key.
// It returns false and leaves both tiles unchanged otherwise.
func (t *Tile) Adopt(from *Tile) bool {
	if from == t || from.key != t.key {
		return false
	}
	if b := from.Release(); b != nil {
		if prev := t.MarkRendered(b); prev != nil {
			prev.Free()
		}
	}
	return true
}

// Draw blits the rendered buffer into dst at ScaledBounds(presentScale)
// offset by origin, the on-surface position of the page's top-left corner.
// It reports whether anything was drawn.
func (t *Tile) Draw(dst draw.Image, origin image.Point, presentScale float64) bool {
	b := t.buf.Load()
	if b == nil {
		return false
	}
	src := b.Image()
	if len(src.Pix) == 0 {
		return false
	}
	target := t.ScaledBounds(presentScale).Add(origin)
	if !target.Overlaps(dst.Bounds()) {
		return false
	}
	if target.Size() == src.Bounds().Size() {
		draw.Copy(dst, target.Min, src, src.Bounds(), draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(dst, target, src, src.Bounds(), draw.Src, nil)
	}
	return true
}

// DrawPlaceholder fills ScaledBounds(presentScale) with c. It is used for
// thumbnails that have not been rendered yet; detail tiles are never
// painted before their content is ready.
func (t *Tile) DrawPlaceholder(dst draw.Image, origin image.Point, presentScale float64, c color.Color) {
	target := t.ScaledBounds(presentScale).Add(origin).Intersect(dst.Bounds())
	if target.Empty() {
		return
	}
	draw.Draw(dst, target, image.NewUniform(c), image.Point{}, draw.Src)
}
