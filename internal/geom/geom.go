// Package geom maps scroll position, scale and surface size onto visible
// pages and tile-aligned pixel rectangles.
//
// All rectangles are half-open, like image.Rectangle: Min is inside and Max
// is outside. Two rectangles that only share an edge do not overlap, so a
// tile that exactly abuts the visible area is not considered visible.
//
// Everything in this package is a pure function of its arguments.
package geom

import (
	"image"
	"math"
	"sort"
)

// MaxCoordinate is the largest pixel coordinate content may reach at any
// zoom level. Scale limits are capped so that the bottom of the last page
// stays below it.
const MaxCoordinate = math.MaxInt32

// TileRatio is the default number of tiles that fit across the surface in
// each direction.
const TileRatio = 3

// Span is the vertical extent [Top, Bottom) of one page in content pixels.
type Span struct {
	Top    int
	Bottom int
}

// Viewport is the on-screen window into the content, in content pixels.
type Viewport struct {
	Scroll image.Point
	Size   image.Point
}

// Rect returns the viewport rectangle in content space.
func (v Viewport) Rect() image.Rectangle {
	return image.Rectangle{Min: v.Scroll, Max: v.Scroll.Add(v.Size)}
}

// Empty reports whether the viewport has no area.
func (v Viewport) Empty() bool {
	return v.Size.X <= 0 || v.Size.Y <= 0
}

// MaxScroll returns the largest scroll offset along one axis.
func MaxScroll(content, surface int) int {
	return max(content-surface, 0)
}

// ClampScroll clamps a requested scroll offset along one axis to
// [0, MaxScroll(content, surface)].
//
// When the content is smaller than the surface the scroll is forced to 0
// and offset is the distance that centers the content on the surface.
// Otherwise offset is 0.
func ClampScroll(requested, content, surface int) (scroll, offset int) {
	if content < surface {
		return 0, (surface - content) / 2
	}
	return min(max(requested, 0), MaxScroll(content, surface)), 0
}

// ZoomScroll returns the scroll offset that keeps the content point under
// focus (a surface coordinate) fixed when the scale is multiplied by delta.
// The result is not clamped.
func ZoomScroll(scroll, focus int, delta float64) int {
	return int(math.Round(float64(scroll+focus)*delta)) - focus
}

// ScaleLimits bounds the user zoom factor.
type ScaleLimits struct {
	Min float64
	Max float64
}

// MaxFor returns the effective upper limit for content whose height at
// scale 1 is contentHeight. The limit never lets the content height exceed
// MaxCoordinate.
func (l ScaleLimits) MaxFor(contentHeight int) float64 {
	if contentHeight <= 0 {
		return l.Max
	}
	h := float64(contentHeight)
	hi := math.Min(l.Max, float64(MaxCoordinate)/h)
	// The quotient may round up.
	for h*hi > float64(MaxCoordinate) {
		hi = math.Nextafter(hi, 0)
	}
	return hi
}

// Clamp returns scale limited to [Min, MaxFor(contentHeight)].
// The upper bound wins when the two conflict.
func (l ScaleLimits) Clamp(scale float64, contentHeight int) float64 {
	if hi := l.MaxFor(contentHeight); scale > hi {
		return hi
	}
	if scale < l.Min {
		return l.Min
	}
	return scale
}

// FirstVisible returns the index of the first page whose bottom lies below
// top. Spans must be sorted by Top. If every page is above top, the last
// index is returned; an empty slice yields 0.
func FirstVisible(spans []Span, top int) int {
	i := sort.Search(len(spans), func(i int) bool {
		return spans[i].Bottom > top
	})
	if i == len(spans) && i > 0 {
		return i - 1
	}
	return i
}

// LastVisible returns the index of the last page that starts above bottom,
// never less than first.
func LastVisible(spans []Span, first, bottom int) int {
	i := sort.Search(len(spans), func(i int) bool {
		return spans[i].Top >= bottom
	})
	return max(i-1, first)
}

// PageRange returns the half-open index range [start, end) that extends
// [first, last] by margin pages on both sides, clipped to count.
func PageRange(first, last, margin, count int) (start, end int) {
	start = max(first-margin, 0)
	end = min(last+margin+1, count)
	if end < start {
		end = start
	}
	return start, end
}

// VisibleRect returns the on-screen part of a page in the page's own pixel
// space. page is the page rectangle and view the viewport rectangle, both in
// content space. The result is empty when they do not overlap.
func VisibleRect(page, view image.Rectangle) image.Rectangle {
	r := page.Intersect(view)
	if r.Empty() {
		return image.Rectangle{}
	}
	return r.Sub(page.Min)
}

// DefaultStride returns the tile size used for a surface: the surface
// divided by TileRatio in each direction, at least one pixel.
func DefaultStride(surface image.Point) image.Point {
	return image.Pt(max(surface.X/TileRatio, 1), max(surface.Y/TileRatio, 1))
}

// Grid partitions visible into tiles aligned to stride.
//
// Tile origins are multiples of stride in page space, so the same page
// region always maps to the same tile regardless of scroll position. Tiles
// are clipped to a page of the given size and returned in row-major order.
// An empty visible rectangle or a non-positive stride yields nil.
func Grid(visible image.Rectangle, size, stride image.Point) []image.Rectangle {
	if visible.Empty() || stride.X <= 0 || stride.Y <= 0 {
		return nil
	}
	visible = visible.Intersect(image.Rectangle{Max: size})
	if visible.Empty() {
		return nil
	}

	left := (visible.Min.X / stride.X) * stride.X
	top := (visible.Min.Y / stride.Y) * stride.Y
	cols := (visible.Max.X - left + stride.X - 1) / stride.X
	rows := (visible.Max.Y - top + stride.Y - 1) / stride.Y

	result := make([]image.Rectangle, 0, cols*rows)
	for y := top; y < visible.Max.Y; y += stride.Y {
		for x := left; x < visible.Max.X; x += stride.X {
			result = append(result, image.Rect(x, y,
				min(x+stride.X, size.X),
				min(y+stride.Y, size.Y)))
		}
	}
	return result
}
