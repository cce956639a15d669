package pdfview

import (
	"context"
	"image"
)

// PageSource is an opened document that can report page geometry and
// rasterize page regions.
//
// PageSize and RenderRegion may be called concurrently from several
// goroutines: the two render streams and the page size resolver run
// independently. Implementations must tolerate that.
type PageSource interface {
	// PageCount returns the number of pages.
	PageCount() int

	// PageSize returns the natural size of a page in document units.
	// Scale 1 of a page maps one unit to one pixel before fitting.
	PageSize(page int) (width, height int, err error)

	// RenderRegion renders the page scaled to pageWidth x pageHeight
	// pixels and copies the region whose top-left corner is
	// (offsetX, offsetY) into dst. dst is fully overwritten.
	RenderRegion(page, offsetX, offsetY int, dst *image.RGBA, pageWidth, pageHeight int) error

	// Close releases the document.
	Close() error
}

// Opener opens documents by URI.
type Opener interface {
	Open(ctx context.Context, uri string) (PageSource, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, uri string) (PageSource, error)

// Open calls f(ctx, uri).
func (f OpenerFunc) Open(ctx context.Context, uri string) (PageSource, error) {
	return f(ctx, uri)
}
