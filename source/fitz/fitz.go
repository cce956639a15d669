// Package fitz is a page source backed by MuPDF through go-fitz.
//
// MuPDF renders whole pages, so the source keeps the last few full-page
// rasters in an LRU and serves tile regions by cropping them. Consecutive
// tiles of one page at one scale therefore cost a single MuPDF render.
package fitz

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/gogpu/pdfview"
	"github.com/gogpu/pdfview/internal/cache"
)

// DefaultCachedPages is the number of full-page rasters kept by default.
const DefaultCachedPages = 4

// pointsPerInch is the PDF user space unit.
const pointsPerInch = 72

var errPageRange = errors.New("fitz: page index out of range")

// Source is a pdfview.PageSource for one MuPDF document.
//
// Thread safety: All methods are safe for concurrent use. Calls into
// MuPDF are serialized.
type Source struct {
	mu    sync.Mutex // guards doc
	doc   *fitz.Document
	pages int

	rasters *cache.Cache[rasterKey, *image.RGBA]
}

type rasterKey struct {
	page int
	w, h int
}

// Open opens the document at path.
func Open(path string, cachedPages int) (*Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("fitz: open %s: %w", path, err)
	}
	if cachedPages <= 0 {
		cachedPages = DefaultCachedPages
	}
	s := &Source{
		doc:     doc,
		pages:   doc.NumPage(),
		rasters: cache.New[rasterKey, *image.RGBA](cachedPages),
	}
	s.rasters.OnEvict(func(k rasterKey, _ *image.RGBA) {
		pdfview.Logger().Debug("fitz: page raster evicted", "page", k.page, "width", k.w, "height", k.h)
	})
	return s, nil
}

// Opener returns a pdfview.Opener for file paths and file:// URIs.
func Opener(cachedPages int) pdfview.Opener {
	return pdfview.OpenerFunc(func(ctx context.Context, uri string) (pdfview.PageSource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Open(strings.TrimPrefix(uri, "file://"), cachedPages)
	})
}

// PageCount returns the number of pages.
func (s *Source) PageCount() int {
	return s.pages
}

// PageSize returns the page size in points.
func (s *Source) PageSize(page int) (int, int, error) {
	if page < 0 || page >= s.pages {
		return 0, 0, fmt.Errorf("%w: %d", errPageRange, page)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return 0, 0, pdfview.ErrClosed
	}
	r, err := s.doc.Bound(page)
	if err != nil {
		return 0, 0, fmt.Errorf("fitz: bound page %d: %w", page, err)
	}
	return r.Dx(), r.Dy(), nil
}

// RenderRegion renders page at pageWidth x pageHeight and copies the
// region at (offsetX, offsetY) into dst. Pixels outside the page are left
// transparent.
func (s *Source) RenderRegion(page, offsetX, offsetY int, dst *image.RGBA, pageWidth, pageHeight int) error {
	if page < 0 || page >= s.pages {
		return fmt.Errorf("%w: %d", errPageRange, page)
	}
	if pageWidth <= 0 || pageHeight <= 0 {
		return fmt.Errorf("fitz: invalid page raster size %dx%d", pageWidth, pageHeight)
	}
	key := rasterKey{page: page, w: pageWidth, h: pageHeight}
	src, err := s.rasters.GetOrCreate(key, func() (*image.RGBA, error) {
		return s.renderPage(key)
	})
	if err != nil {
		return err
	}

	clear(dst.Pix)
	b := dst.Bounds()
	draw.Copy(dst, b.Min, src, image.Rect(offsetX, offsetY, offsetX+b.Dx(), offsetY+b.Dy()), draw.Src, nil)
	return nil
}

// renderPage rasterizes a whole page at exactly key.w x key.h pixels.
func (s *Source) renderPage(key rasterKey) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, pdfview.ErrClosed
	}
	bound, err := s.doc.Bound(key.page)
	if err != nil {
		return nil, fmt.Errorf("fitz: bound page %d: %w", key.page, err)
	}
	if bound.Dx() <= 0 {
		return nil, fmt.Errorf("fitz: page %d has zero width", key.page)
	}
	dpi := float64(pointsPerInch) * float64(key.w) / float64(bound.Dx())
	img, err := s.doc.ImageDPI(key.page, dpi)
	if err != nil {
		return nil, fmt.Errorf("fitz: render page %d: %w", key.page, err)
	}
	if img.Bounds().Size() == image.Pt(key.w, key.h) && img.Bounds().Min == (image.Point{}) {
		return img, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, key.w, key.h))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out, nil
}

// CachedPages returns the number of full-page rasters held.
func (s *Source) CachedPages() int {
	return s.rasters.Len()
}

// Close releases the MuPDF document and every cached raster.
func (s *Source) Close() error {
	s.rasters.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}
