// Package pdfview displays large paginated documents through a scrollable,
// zoomable viewport.
//
// # Overview
//
// Pages are stacked in a single column and fitted to the surface width.
// Only what is on screen is rasterized: each visible page is cut into
// stride-aligned tiles that are rendered on background workers and
// published one by one as they finish. A second, cheaper stream renders
// whole-page thumbnails for the pages around the visible range, so
// scrolling always has something to show.
//
// # Quick Start
//
//	doc, err := pdfview.Open(ctx, "manual.pdf", fitz.Opener(0),
//	    pdfview.WithOnUpdate(func() { view.Invalidate() }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer doc.Close()
//
//	doc.Resize(1080, 1920)
//	doc.ScrollBy(0, 400)
//	doc.Draw(surface)
//
// # Memory
//
// Pixel buffers are never freed while they can be reused. Buffers of tiles
// that scroll out of view go to a size-bucketed cache bounded by a
// kilobyte budget; thumbnail buffers go to a fixed-capacity pool. See
// WithCacheBudget and WithThumbnailPoolSize.
//
// # Concurrency
//
// Document methods are safe for concurrent use. Callbacks registered with
// WithOnUpdate run on render workers; callbacks registered with
// WithOnPageChange run on the goroutine that changed the viewport, after
// the document lock is released.
//
// # Page Sources
//
// Rasterization is delegated to a PageSource. The source/fitz package
// renders with MuPDF; source/outline draws page outlines and is useful for
// layout work and tests.
package pdfview

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
