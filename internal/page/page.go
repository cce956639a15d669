// Package page holds per-page state: original size, vertical position,
// the thumbnail tile and the current set of detail tiles.
//
// Page sizes may be unknown when a document is opened. Unknown pages are
// laid out with a placeholder size and corrected later by Layout.Resolve,
// which shifts every following page by the height difference.
//
// Nothing in this package is safe for concurrent use. It is owned by the
// document's control goroutine.
package page

import (
	"image"

	"github.com/gogpu/pdfview/internal/geom"
	"github.com/gogpu/pdfview/internal/tile"
)

// Page is the state of one page.
type Page struct {
	index    int
	width    int
	height   int
	top      int // in document units, excluding spacing
	resolved bool

	thumb         *tile.Tile
	parts         tile.Set
	lastTileScale float64
	lastTileSize  image.Point
}

// Index returns the zero-based page index.
func (p *Page) Index() int { return p.index }

// Size returns the page size in document units.
func (p *Page) Size() (w, h int) { return p.width, p.height }

// Top returns the stored top offset in document units. Spacing and scale
// are applied by Layout.
func (p *Page) Top() int { return p.top }

// Resolved reports whether the page carries its true size.
func (p *Page) Resolved() bool { return p.resolved }

// Parts returns the current detail tiles in preparation order.
func (p *Page) Parts() []*tile.Tile { return p.parts.Tiles() }

// Thumbnail returns the thumbnail tile, or nil if none was built.
func (p *Page) Thumbnail() *tile.Tile { return p.thumb }

// PrepareParts brings the detail tile set in line with the viewport.
//
// pageRect is the page rectangle in content space at the effective scale
// and view the viewport rectangle. When scale or the page size differs from
// what the current tiles were made for, the whole set is discarded first.
// Tiles that no longer overlap the visible part of the page are removed,
// and tiles for newly visible stride-aligned cells are added. Existing
// tiles are kept as they are, so repeated calls with the same viewport
// create nothing new.
//
// The removed tiles are returned; the caller owns their buffers.
func (p *Page) PrepareParts(pageRect, view image.Rectangle, scale float64, stride image.Point) (removed []*tile.Tile) {
	size := pageRect.Size()
	if p.lastTileScale != scale || p.lastTileSize != size {
		removed = p.parts.Clear()
		p.lastTileScale, p.lastTileSize = scale, size
	}

	visible := geom.VisibleRect(pageRect, view)
	removed = append(removed, p.parts.Retain(func(t *tile.Tile) bool {
		return t.Bounds().Overlaps(visible)
	})...)

	for _, r := range geom.Grid(visible, size, stride) {
		key := tile.Key{Page: p.index, Bounds: r, PageW: size.X, PageH: size.Y}
		if !p.parts.Contains(key) {
			p.parts.Add(tile.New(key, scale))
		}
	}
	return removed
}

// ClearParts drops every detail tile and returns them.
func (p *Page) ClearParts() []*tile.Tile {
	p.lastTileScale, p.lastTileSize = 0, image.Point{}
	return p.parts.Clear()
}

// EnsureThumbnail returns a thumbnail tile covering the whole page at
// scale. An existing thumbnail built for another scale or page size is
// replaced and returned as stale; the caller owns its buffer.
func (p *Page) EnsureThumbnail(scale float64) (thumb, stale *tile.Tile) {
	w := max(int(float64(p.width)*scale), 1)
	h := max(int(float64(p.height)*scale), 1)
	key := tile.Key{Page: p.index, Bounds: image.Rect(0, 0, w, h), PageW: w, PageH: h}

	if p.thumb != nil && p.thumb.Key() == key && p.thumb.RenderScale() == scale {
		return p.thumb, nil
	}
	stale = p.thumb
	p.thumb = tile.New(key, scale)
	return p.thumb, stale
}

// DropThumbnail removes the thumbnail tile and returns it.
func (p *Page) DropThumbnail() *tile.Tile {
	t := p.thumb
	p.thumb = nil
	return t
}
