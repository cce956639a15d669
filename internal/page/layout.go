package page

import (
	"image"
	"math"

	"github.com/gogpu/pdfview/internal/geom"
	"github.com/gogpu/pdfview/internal/tile"
)

// Layout positions pages in a single vertical column.
//
// In content pixels the top of page i is
//
//	(top(i)*baseScale + spacing*i) * scale
//
// where top is the stored document-unit offset and baseScale fits the
// widest page to the surface width. Narrower pages are centered.
type Layout struct {
	pages     []*Page
	spacing   int
	maxWidth  int
	baseScale float64
}

// NewLayout creates count pages, all sized like placeholder and marked
// unresolved. spacing is the gap between pages in surface pixels.
func NewLayout(count int, placeholder image.Point, spacing int) *Layout {
	l := &Layout{
		pages:     make([]*Page, count),
		spacing:   max(spacing, 0),
		maxWidth:  placeholder.X,
		baseScale: 1,
	}
	for i := range l.pages {
		l.pages[i] = &Page{
			index:  i,
			width:  placeholder.X,
			height: placeholder.Y,
			top:    i * placeholder.Y,
		}
	}
	return l
}

// Len returns the number of pages.
func (l *Layout) Len() int { return len(l.pages) }

// Page returns page i.
func (l *Layout) Page(i int) *Page { return l.pages[i] }

// Pages returns every page in order.
func (l *Layout) Pages() []*Page { return l.pages }

// BaseScale returns the fit-width scale.
func (l *Layout) BaseScale() float64 { return l.baseScale }

// Spacing returns the gap between pages in surface pixels.
func (l *Layout) Spacing() int { return l.spacing }

// Fit sets the base scale so the widest page spans surfaceWidth.
// It reports whether the base scale changed.
func (l *Layout) Fit(surfaceWidth int) bool {
	if surfaceWidth <= 0 || l.maxWidth <= 0 {
		return false
	}
	s := float64(surfaceWidth) / float64(l.maxWidth)
	if s == l.baseScale {
		return false
	}
	l.baseScale = s
	return true
}

// Resolve records the true size of page i and reflows every later page by
// the height difference. Earlier pages never move. It returns the height
// delta in document units and whether the widest page changed, which
// requires a new Fit.
func (l *Layout) Resolve(i, width, height int) (delta int, widened bool) {
	p := l.pages[i]
	delta = height - p.height
	p.width, p.height, p.resolved = width, height, true

	if delta != 0 {
		for _, next := range l.pages[i+1:] {
			next.top += delta
		}
	}
	if width > l.maxWidth {
		l.maxWidth = width
		widened = true
	}
	return delta, widened
}

// Unresolved returns the indexes in [start, end) that still carry a
// placeholder size.
func (l *Layout) Unresolved(start, end int) []int {
	var out []int
	for i := max(start, 0); i < min(end, len(l.pages)); i++ {
		if !l.pages[i].resolved {
			out = append(out, i)
		}
	}
	return out
}

// Effective returns the raster scale for the user scale: baseScale*scale.
func (l *Layout) Effective(scale float64) float64 {
	return l.baseScale * scale
}

// PageRect returns page i in content pixels at the user scale.
func (l *Layout) PageRect(i int, scale float64) image.Rectangle {
	p := l.pages[i]
	eff := l.Effective(scale)
	top := round((float64(p.top)*l.baseScale + float64(l.spacing*i)) * scale)
	left := round(float64(l.maxWidth-p.width) * eff / 2)
	return image.Rect(left, top, left+round(float64(p.width)*eff), top+round(float64(p.height)*eff))
}

// Spans returns the vertical extent of every page at the user scale.
func (l *Layout) Spans(scale float64) []geom.Span {
	spans := make([]geom.Span, len(l.pages))
	for i := range l.pages {
		r := l.PageRect(i, scale)
		spans[i] = geom.Span{Top: r.Min.Y, Bottom: r.Max.Y}
	}
	return spans
}

// ContentSize returns the size of the whole column at the user scale.
func (l *Layout) ContentSize(scale float64) image.Point {
	if len(l.pages) == 0 {
		return image.Point{}
	}
	w := round(float64(l.maxWidth) * l.Effective(scale))
	return image.Pt(w, l.PageRect(len(l.pages)-1, scale).Max.Y)
}

// ContentHeight returns the column height at user scale 1.
func (l *Layout) ContentHeight() int {
	return l.ContentSize(1).Y
}

// Visible returns the first and last page index intersecting view.
func (l *Layout) Visible(view image.Rectangle, scale float64) (first, last int) {
	spans := l.Spans(scale)
	first = geom.FirstVisible(spans, view.Min.Y)
	last = geom.LastVisible(spans, first, view.Max.Y)
	return first, last
}

// PageAt returns the index of the page containing content y at scale.
func (l *Layout) PageAt(y int, scale float64) int {
	return geom.FirstVisible(l.Spans(scale), y)
}

// PrepareParts updates the detail tiles of pages first..last for view and
// drops the detail tiles of every other page. Pages still carrying their
// placeholder size get no detail tiles. It returns the tiles now required
// in page order and the removed tiles.
func (l *Layout) PrepareParts(first, last int, view image.Rectangle, scale float64, stride image.Point) (required, removed []*tile.Tile) {
	eff := l.Effective(scale)
	for i, p := range l.pages {
		if i < first || i > last || !p.resolved {
			if p.parts.Len() > 0 {
				removed = append(removed, p.ClearParts()...)
			}
			continue
		}
		removed = append(removed, p.PrepareParts(l.PageRect(i, scale), view, eff, stride)...)
		required = append(required, p.Parts()...)
	}
	return required, removed
}

func round(v float64) int {
	return int(math.Round(v))
}
