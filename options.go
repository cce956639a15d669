package pdfview

import (
	"image"
	"image/color"
	"time"

	"github.com/gogpu/pdfview/internal/geom"
)

// Option configures a Document when it is opened.
//
// Example:
//
//	doc, err := pdfview.Open(ctx, uri, src,
//	    pdfview.WithCacheBudget(32<<10),
//	    pdfview.WithPageSpacing(8),
//	)
type Option func(*options)

// options holds the configuration of a Document.
type options struct {
	tileSize      image.Point
	tileRatio     int
	cacheBudgetKB int
	thumbPool     int
	thumbMargin   int
	thumbScale    float64
	limits        geom.ScaleLimits
	spacing       int
	workers       int
	openAttempts  int
	openDelay     time.Duration
	startPage     int
	deferQuality  bool
	recycle       bool
	background    color.Color
	onUpdate      func()
	onPageChange  func(first, last int)
}

// Defaults used when no option overrides them.
const (
	DefaultCacheBudgetKB  = 64 << 10
	DefaultThumbnailPool  = 16
	DefaultThumbnailScale = 0.5
	DefaultMinScale       = 1
	DefaultMaxScale       = 10
	DefaultWorkers        = 2
	DefaultOpenAttempts   = 3
)

// defaultOptions returns the default document options.
func defaultOptions() options {
	return options{
		tileRatio:     geom.TileRatio,
		cacheBudgetKB: DefaultCacheBudgetKB,
		thumbPool:     DefaultThumbnailPool,
		thumbMargin:   5,
		thumbScale:    DefaultThumbnailScale,
		limits:        geom.ScaleLimits{Min: DefaultMinScale, Max: DefaultMaxScale},
		workers:       DefaultWorkers,
		openAttempts:  DefaultOpenAttempts,
		openDelay:     100 * time.Millisecond,
		recycle:       true,
		background:    color.White,
	}
}

// stride returns the tile size for a surface.
func (o *options) stride(surface image.Point) image.Point {
	if o.tileSize.X > 0 && o.tileSize.Y > 0 {
		return o.tileSize
	}
	ratio := max(o.tileRatio, 1)
	return image.Pt(max(surface.X/ratio, 1), max(surface.Y/ratio, 1))
}

// WithTileSize fixes the detail tile size in pixels instead of deriving it
// from the surface.
func WithTileSize(w, h int) Option {
	return func(o *options) {
		o.tileSize = image.Pt(w, h)
	}
}

// WithTileRatio sets how many tiles span the surface in each direction
// when no fixed tile size is set. The default is 3.
func WithTileRatio(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.tileRatio = n
		}
	}
}

// WithCacheBudget sets the detail buffer cache budget in kilobytes.
func WithCacheBudget(kb int) Option {
	return func(o *options) {
		o.cacheBudgetKB = max(kb, 0)
	}
}

// WithThumbnailPoolSize sets how many thumbnail buffers are kept for reuse.
func WithThumbnailPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.thumbPool = n
		}
	}
}

// WithThumbnailMargin sets how many pages before and after the visible
// range get thumbnails.
func WithThumbnailMargin(pages int) Option {
	return func(o *options) {
		o.thumbMargin = max(pages, 0)
	}
}

// WithThumbnailScale sets the raster scale of thumbnails relative to the
// page's natural size.
func WithThumbnailScale(s float64) Option {
	return func(o *options) {
		if s > 0 {
			o.thumbScale = s
		}
	}
}

// WithScaleLimits bounds the user zoom factor. Scale 1 fits the widest
// page to the surface width.
func WithScaleLimits(minScale, maxScale float64) Option {
	return func(o *options) {
		if minScale > 0 && maxScale >= minScale {
			o.limits = geom.ScaleLimits{Min: minScale, Max: maxScale}
		}
	}
}

// WithPageSpacing sets the gap between pages in surface pixels at scale 1.
func WithPageSpacing(px int) Option {
	return func(o *options) {
		o.spacing = max(px, 0)
	}
}

// WithWorkers sets the worker count of each render stream.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithOpenAttempts sets how many times opening the document is attempted
// and the delay between attempts.
func WithOpenAttempts(n int, delay time.Duration) Option {
	return func(o *options) {
		if n > 0 {
			o.openAttempts = n
		}
		if delay >= 0 {
			o.openDelay = delay
		}
	}
}

// WithStartPage scrolls to page once the surface size is first known.
func WithStartPage(page int) Option {
	return func(o *options) {
		o.startPage = max(page, 0)
	}
}

// WithDeferredQuality makes viewport changes refresh only thumbnails.
// Detail tiles are requested by UpdateQuality, typically when a gesture
// ends.
func WithDeferredQuality(enabled bool) Option {
	return func(o *options) {
		o.deferQuality = enabled
	}
}

// WithoutRecycling disables the buffer cache and pool. Every tile gets a
// freshly allocated buffer and released buffers are freed.
func WithoutRecycling() Option {
	return func(o *options) {
		o.recycle = false
	}
}

// WithBackground sets the color painted for pages whose thumbnail is not
// rendered yet. The default is white.
func WithBackground(c color.Color) Option {
	return func(o *options) {
		if c != nil {
			o.background = c
		}
	}
}

// WithOnUpdate registers fn to be called whenever new content can be
// drawn. fn runs on a render worker and must not block.
func WithOnUpdate(fn func()) Option {
	return func(o *options) {
		o.onUpdate = fn
	}
}

// WithOnPageChange registers fn to be called when the visible page range
// changes.
func WithOnPageChange(fn func(first, last int)) Option {
	return func(o *options) {
		o.onPageChange = fn
	}
}
