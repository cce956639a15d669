// Package outline is a pure-Go page source. It reads page geometry with
// pdfcpu and rasterizes each page as a white sheet with a border and its
// page number, without interpreting page content.
//
// It serves previews where MuPDF is unavailable and exercises the viewer
// against real page geometry in tests.
package outline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/pdfview"
)

// Colors used for the sheet.
var (
	Paper  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Border = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	Ink    = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
)

// labelMargin is the distance of the page label from the top edge.
const labelMargin = 8

// Source serves page outlines for a fixed list of page sizes.
//
// Thread safety: All methods are safe for concurrent use; the source is
// immutable after creation.
type Source struct {
	sizes []image.Point
}

// New returns a source for the given page sizes in points.
func New(sizes []image.Point) *Source {
	return &Source{sizes: append([]image.Point(nil), sizes...)}
}

// Open reads the page count and page sizes of the PDF at path.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		return nil, fmt.Errorf("outline: page count of %s: %w", path, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}
	dims, err := api.PageDims(f, nil)
	if err != nil {
		return nil, fmt.Errorf("outline: page sizes of %s: %w", path, err)
	}
	if len(dims) != count {
		return nil, fmt.Errorf("outline: %s reports %d pages but %d sizes", path, count, len(dims))
	}

	sizes := make([]image.Point, count)
	for i, d := range dims {
		sizes[i] = image.Pt(int(math.Round(d.Width)), int(math.Round(d.Height)))
	}
	return &Source{sizes: sizes}, nil
}

// Opener returns a pdfview.Opener for file paths and file:// URIs.
func Opener() pdfview.Opener {
	return pdfview.OpenerFunc(func(ctx context.Context, uri string) (pdfview.PageSource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Open(strings.TrimPrefix(uri, "file://"))
	})
}

// PageCount returns the number of pages.
func (s *Source) PageCount() int {
	return len(s.sizes)
}

// PageSize returns the page size in points.
func (s *Source) PageSize(page int) (int, int, error) {
	if page < 0 || page >= len(s.sizes) {
		return 0, 0, fmt.Errorf("outline: page %d of %d", page, len(s.sizes))
	}
	return s.sizes[page].X, s.sizes[page].Y, nil
}

// RenderRegion paints the region of the page outline at (offsetX, offsetY)
// with the page scaled to pageWidth x pageHeight.
func (s *Source) RenderRegion(page, offsetX, offsetY int, dst *image.RGBA, pageWidth, pageHeight int) error {
	if page < 0 || page >= len(s.sizes) {
		return fmt.Errorf("outline: page %d of %d", page, len(s.sizes))
	}
	b := dst.Bounds()
	shift := b.Min.Sub(image.Pt(offsetX, offsetY))
	sheet := image.Rect(0, 0, pageWidth, pageHeight).Add(shift)

	draw.Draw(dst, b, image.Transparent, image.Point{}, draw.Src)
	draw.Draw(dst, sheet.Intersect(b), image.NewUniform(Paper), image.Point{}, draw.Src)

	edges := []image.Rectangle{
		image.Rect(sheet.Min.X, sheet.Min.Y, sheet.Max.X, sheet.Min.Y+1),
		image.Rect(sheet.Min.X, sheet.Max.Y-1, sheet.Max.X, sheet.Max.Y),
		image.Rect(sheet.Min.X, sheet.Min.Y, sheet.Min.X+1, sheet.Max.Y),
		image.Rect(sheet.Max.X-1, sheet.Min.Y, sheet.Max.X, sheet.Max.Y),
	}
	for _, e := range edges {
		if r := e.Intersect(b); !r.Empty() {
			draw.Draw(dst, r, image.NewUniform(Border), image.Point{}, draw.Src)
		}
	}

	label := strconv.Itoa(page + 1)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(Ink),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(label).Round()
	x := sheet.Min.X + (pageWidth-width)/2
	y := sheet.Min.Y + labelMargin + basicfont.Face7x13.Ascent
	d.Dot = fixed.P(x, y)
	d.DrawString(label)
	return nil
}

// Close is a no-op; the file is closed once sizes are read.
func (s *Source) Close() error {
	return nil
}
