package pdfview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/gogpu/pdfview/internal/bitmap"
	"github.com/gogpu/pdfview/internal/geom"
	"github.com/gogpu/pdfview/internal/page"
	"github.com/gogpu/pdfview/internal/render"
	"github.com/gogpu/pdfview/internal/tile"
)

// Document is an opened document bound to a viewport.
//
// A Document starts with a zero-sized surface and renders nothing until
// Resize is called. Every viewport operation recomputes the visible pages,
// requests the thumbnails and detail tiles they need and returns
// immediately; rendering happens on background workers.
type Document struct {
	uri  string
	id   uuid.UUID
	src  PageSource
	opts options

	layout *page.Layout
	sched  *render.Scheduler
	cache  *bitmap.Cache
	pool   *bitmap.Pool

	ctx       context.Context
	cancel    context.CancelFunc
	sizes     mailbox
	resolveWG sync.WaitGroup
	inflight  atomic.Int32

	drawMu sync.RWMutex // held for reading while Draw reads tile buffers

	mu        sync.Mutex
	queued    []func()
	resolving map[int]bool
	surface   image.Point
	scroll    image.Point
	offset    image.Point
	scale     float64
	first     int
	last      int
	started   bool
	closed    bool
}

// Open opens uri with opener and prepares a Document for it.
//
// Opening is retried as configured by WithOpenAttempts. If every attempt
// fails the last error is returned wrapped in an *OpenError and no
// rendering is started. The size of page 0 is read immediately; the other
// pages start with page 0's size and are corrected as they come into
// range.
func Open(ctx context.Context, uri string, opener Opener, opts ...Option) (*Document, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := Logger()

	var src PageSource
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			s, err := opener.Open(ctx, uri)
			if err != nil {
				return err
			}
			src = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(o.openAttempts)),
		retry.Delay(o.openDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("pdfview: open failed, retrying", "uri", uri, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return nil, &OpenError{URI: uri, Attempts: attempts, Err: err}
	}

	count := src.PageCount()
	if count <= 0 {
		_ = src.Close()
		return nil, &OpenError{URI: uri, Attempts: attempts, Err: ErrEmptyDocument}
	}
	w, h, err := src.PageSize(0)
	if err == nil && (w <= 0 || h <= 0) {
		err = fmt.Errorf("invalid size %dx%d of page 0", w, h)
	}
	if err != nil {
		_ = src.Close()
		return nil, &OpenError{URI: uri, Attempts: attempts, Err: err}
	}

	layout := page.NewLayout(count, image.Pt(w, h), o.spacing)
	layout.Resolve(0, w, h)

	d := &Document{
		uri:       uri,
		id:        DocumentID(uri),
		src:       src,
		opts:      o,
		layout:    layout,
		resolving: make(map[int]bool),
		scale:     o.limits.Clamp(1, layout.ContentHeight()),
		last:      -1,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	thumbs, details := bitmap.Discard, bitmap.Discard
	if o.recycle {
		d.cache = bitmap.NewCache(o.cacheBudgetKB)
		d.pool = bitmap.NewPool(thumbnailSize(w, h, o.thumbScale), o.thumbPool)
		thumbs, details = bitmap.WithFallback(d.pool, d.cache), d.cache
	}
	d.sched = render.NewScheduler(render.Config{
		Pages:      count,
		Workers:    o.workers,
		Rasterizer: render.RasterizerFunc(d.rasterize),
		Thumbnails: guarded{thumbs, &d.drawMu},
		Details:    guarded{details, &d.drawMu},
		OnPublish:  func(*tile.Tile) { d.notify() },
		OnError:    func(*render.TileError) { d.notify() },
	})

	log.Info("pdfview: document opened", "uri", uri, "pages", count, "attempts", attempts)
	return d, nil
}

// thumbnailSize matches page.EnsureThumbnail.
func thumbnailSize(w, h int, scale float64) bitmap.Size {
	return bitmap.Size{
		W: max(int(float64(w)*scale), 1),
		H: max(int(float64(h)*scale), 1),
	}
}

// URI returns the URI the document was opened from.
func (d *Document) URI() string { return d.uri }

// ID returns the document identity stored in State snapshots.
func (d *Document) ID() uuid.UUID { return d.id }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.layout.Len() }

// Resize sets the surface size. The first call also scrolls to the start
// page.
func (d *Document) Resize(width, height int) {
	d.lock()
	defer d.unlock()

	if d.closed || width <= 0 || height <= 0 {
		return
	}
	d.applySizes()
	d.surface = image.Pt(width, height)
	d.layout.Fit(width)

	if !d.started {
		d.started = true
		if p := min(d.opts.startPage, d.layout.Len()-1); p > 0 {
			d.scroll = image.Pt(d.scroll.X, d.layout.PageRect(p, d.scale).Min.Y)
		}
	}
	d.refresh(true)
}

// ScrollTo moves the viewport's top-left corner to (x, y) in content
// pixels, clamped to the content.
func (d *Document) ScrollTo(x, y int) {
	d.lock()
	defer d.unlock()

	if d.closed {
		return
	}
	d.applySizes()
	d.scroll = image.Pt(x, y)
	d.refresh(!d.opts.deferQuality)
}

// ScrollBy moves the viewport by (dx, dy).
func (d *Document) ScrollBy(dx, dy int) {
	d.lock()
	defer d.unlock()

	if d.closed {
		return
	}
	d.applySizes()
	d.scroll = d.scroll.Add(image.Pt(dx, dy))
	d.refresh(!d.opts.deferQuality)
}

// ScrollToPage scrolls so that page starts at the top of the surface.
func (d *Document) ScrollToPage(index int) error {
	d.lock()
	defer d.unlock()

	if d.closed {
		return ErrClosed
	}
	if index < 0 || index >= d.layout.Len() {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, d.layout.Len())
	}
	d.applySizes()
	d.scroll.Y = d.layout.PageRect(index, d.scale).Min.Y
	d.refresh(!d.opts.deferQuality)
	return nil
}

// ScaleTo zooms to scale keeping the content under the surface point
// (focusX, focusY) in place.
func (d *Document) ScaleTo(focusX, focusY int, scale float64) {
	d.lock()
	defer d.unlock()

	if d.closed || scale <= 0 {
		return
	}
	d.applySizes()
	d.zoom(image.Pt(focusX, focusY), scale/d.scale)
}

// ScaleBy multiplies the scale by delta around the surface point
// (focusX, focusY).
func (d *Document) ScaleBy(focusX, focusY int, delta float64) {
	d.lock()
	defer d.unlock()

	if d.closed || delta <= 0 {
		return
	}
	d.applySizes()
	d.zoom(image.Pt(focusX, focusY), delta)
}

// zoom applies a clamped scale change. Caller must hold d.mu.
func (d *Document) zoom(focus image.Point, delta float64) {
	next := d.opts.limits.Clamp(d.scale*delta, d.layout.ContentHeight())
	delta = next / d.scale
	if delta == 1 {
		return
	}
	focus = focus.Sub(d.offset)
	d.scroll = image.Pt(
		geom.ZoomScroll(d.scroll.X, focus.X, delta),
		geom.ZoomScroll(d.scroll.Y, focus.Y, delta),
	)
	d.scale = next
	d.refresh(!d.opts.deferQuality)
}

// CanScroll reports whether scrolling by (dx, dy) would move the viewport.
func (d *Document) CanScroll(dx, dy int) bool {
	d.lock()
	defer d.unlock()

	content := d.layout.ContentSize(d.scale)
	x, _ := geom.ClampScroll(d.scroll.X+dx, content.X, d.surface.X)
	y, _ := geom.ClampScroll(d.scroll.Y+dy, content.Y, d.surface.Y)
	return x != d.scroll.X || y != d.scroll.Y
}

// UpdateQuality requests detail tiles for the current viewport. It is
// needed only with WithDeferredQuality; otherwise every viewport change
// does it already.
func (d *Document) UpdateQuality() {
	d.lock()
	defer d.unlock()

	if d.closed {
		return
	}
	d.applySizes()
	d.refresh(true)
}

// Flush applies page sizes resolved in the background and refreshes the
// viewport if any arrived.
func (d *Document) Flush() {
	d.lock()
	defer d.unlock()

	if d.closed {
		return
	}
	if d.applySizes() {
		d.refresh(!d.opts.deferQuality)
	}
}

// Scale returns the user zoom factor.
func (d *Document) Scale() float64 {
	d.lock()
	defer d.unlock()

	return d.scale
}

// Scroll returns the viewport's top-left corner in content pixels.
func (d *Document) Scroll() image.Point {
	d.lock()
	defer d.unlock()

	return d.scroll
}

// ContentSize returns the size of the page column at the current scale.
func (d *Document) ContentSize() image.Point {
	d.lock()
	defer d.unlock()

	return d.layout.ContentSize(d.scale)
}

// VisiblePages returns the first and last page on screen. last is -1
// before the first Resize.
func (d *Document) VisiblePages() (first, last int) {
	d.lock()
	defer d.unlock()

	return d.first, d.last
}

// DirtyPages returns the pages that received new tiles since the last
// call, in ascending order.
func (d *Document) DirtyPages() []int {
	return d.sched.Dirty().GetAndClear()
}

// Settle waits until page sizes in range are resolved and both render
// streams are idle, or ctx is done.
func (d *Document) Settle(ctx context.Context) error {
	for {
		if err := waitGroup(ctx, &d.resolveWG); err != nil {
			return err
		}
		d.Flush()
		if err := d.sched.Wait(ctx); err != nil {
			return err
		}
		if d.inflight.Load() == 0 && d.sizes.empty() && !d.sched.Busy() {
			return nil
		}
	}
}

// refresh clamps the viewport and requests the tiles it needs.
// Caller must hold d.mu.
func (d *Document) refresh(quality bool) {
	if d.surface.X <= 0 || d.surface.Y <= 0 {
		return
	}
	d.scale = d.opts.limits.Clamp(d.scale, d.layout.ContentHeight())

	content := d.layout.ContentSize(d.scale)
	sx, ox := geom.ClampScroll(d.scroll.X, content.X, d.surface.X)
	sy, oy := geom.ClampScroll(d.scroll.Y, content.Y, d.surface.Y)
	d.scroll, d.offset = image.Pt(sx, sy), image.Pt(ox, oy)

	view := geom.Viewport{Scroll: d.scroll, Size: d.surface}.Rect()
	first, last := d.layout.Visible(view, d.scale)
	if first != d.first || last != d.last {
		d.first, d.last = first, last
		if fn := d.opts.onPageChange; fn != nil {
			d.queued = append(d.queued, func() { fn(first, last) })
		}
	}

	start, end := geom.PageRange(first, last, d.opts.thumbMargin, d.layout.Len())
	d.resolve(d.layout.Unresolved(start, end))

	// Buffers of dropped or stale thumbnails are recycled by the stream
	// once they are no longer requested.
	thumbs := make([]*tile.Tile, 0, end-start)
	for i, p := range d.layout.Pages() {
		if i < start || i >= end {
			p.DropThumbnail()
			continue
		}
		t, _ := p.EnsureThumbnail(d.opts.thumbScale)
		thumbs = append(thumbs, t)
	}
	if _, err := d.sched.Thumbnails().Request(thumbs); err != nil {
		Logger().Debug("pdfview: thumbnail request dropped", "err", err)
	}

	if quality {
		stride := d.opts.stride(d.surface)
		required, _ := d.layout.PrepareParts(first, last, view, d.scale, stride)
		if _, err := d.sched.Details().Request(required); err != nil {
			Logger().Debug("pdfview: detail request dropped", "err", err)
		}
	}
	d.queued = append(d.queued, d.notify)
}

// rasterize renders one tile through the page source. It runs on render
// workers without any document lock.
func (d *Document) rasterize(key tile.Key, dst *image.RGBA) error {
	return d.src.RenderRegion(key.Page, key.Bounds.Min.X, key.Bounds.Min.Y, dst, key.PageW, key.PageH)
}

func (d *Document) notify() {
	if fn := d.opts.onUpdate; fn != nil {
		fn()
	}
}

// Draw paints the current viewport into dst, whose bounds are the surface.
// Pages show their thumbnail, or the background color while it is not
// rendered, with every rendered detail tile on top.
func (d *Document) Draw(dst draw.Image) {
	d.lock()
	defer d.unlock()

	if d.closed || d.last < 0 {
		return
	}
	d.drawMu.RLock()
	defer d.drawMu.RUnlock()

	eff := d.layout.Effective(d.scale)
	shift := dst.Bounds().Min.Add(d.offset).Sub(d.scroll)
	view := geom.Viewport{Scroll: d.scroll, Size: d.surface}.Rect()

	for i := d.first; i <= d.last; i++ {
		p := d.layout.Page(i)
		rect := d.layout.PageRect(i, d.scale)
		if !rect.Overlaps(view) {
			continue
		}
		origin := rect.Min.Add(shift)

		switch t := p.Thumbnail(); {
		case t == nil:
			draw.Draw(dst, rect.Add(shift).Intersect(dst.Bounds()), image.NewUniform(d.opts.background), image.Point{}, draw.Src)
		case !t.Draw(dst, origin, eff):
			t.DrawPlaceholder(dst, origin, eff, d.opts.background)
		}
		for _, t := range p.Parts() {
			t.Draw(dst, origin, eff)
		}
	}
}

// State returns a snapshot of the viewport.
func (d *Document) State() State {
	d.lock()
	defer d.unlock()

	eff := d.layout.Effective(d.scale)
	first := max(d.first, 0)
	top := d.layout.PageRect(first, d.scale).Min.Y
	return State{
		DocumentID:        d.id,
		Scale:             d.scale,
		FirstVisiblePage:  first,
		NormalizedScrollX: float64(d.scroll.X) / eff,
		NormalizedScrollY: float64(max(d.scroll.Y-top, 0)) / eff,
	}
}

// Restore applies a snapshot taken by State. The snapshot must belong to
// this document and name an existing page.
func (d *Document) Restore(s State) error {
	d.lock()
	defer d.unlock()

	if d.closed {
		return ErrClosed
	}
	if s.DocumentID != d.id {
		return ErrStateMismatch
	}
	if s.FirstVisiblePage < 0 || s.FirstVisiblePage >= d.layout.Len() {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, s.FirstVisiblePage, d.layout.Len())
	}
	d.applySizes()

	if s.Scale > 0 {
		d.scale = d.opts.limits.Clamp(s.Scale, d.layout.ContentHeight())
	}
	eff := d.layout.Effective(d.scale)
	top := d.layout.PageRect(s.FirstVisiblePage, d.scale).Min.Y
	d.scroll = image.Pt(
		int(math.Round(s.NormalizedScrollX*eff)),
		top+int(math.Round(s.NormalizedScrollY*eff)),
	)
	d.started = true
	d.refresh(true)
	return nil
}

// Stats is a snapshot of document resource usage.
type Stats struct {
	Pages         int
	ResolvedPages int
	Cache         bitmap.CacheStats
	Pool          bitmap.PoolStats
	Render        render.Stats
}

// Stats returns resource statistics.
func (d *Document) Stats() Stats {
	d.lock()
	s := Stats{Pages: d.layout.Len()}
	for _, p := range d.layout.Pages() {
		if p.Resolved() {
			s.ResolvedPages++
		}
	}
	d.unlock()

	if d.cache != nil {
		s.Cache = d.cache.Stats()
		s.Pool = d.pool.Stats()
	}
	s.Render = d.sched.Stats()
	return s
}

// Close stops rendering, frees every buffer and closes the page source.
// Close is safe to call multiple times.
func (d *Document) Close() error {
	d.lock()
	if d.closed {
		d.unlock()
		return nil
	}
	d.closed = true
	d.unlock()

	d.cancel()
	d.resolveWG.Wait()
	d.sched.Close()

	d.lock()
	for _, p := range d.layout.Pages() {
		p.ClearParts()
		if t := p.DropThumbnail(); t != nil {
			bitmap.Recycle(bitmap.Discard, t.Release())
		}
	}
	d.unlock()

	if d.cache != nil {
		d.pool.Drain()
		d.cache.EvictAll()
	}
	err := d.src.Close()
	Logger().Info("pdfview: document closed", "uri", d.uri)
	return err
}

// sizeResult is a page size read by a resolver goroutine.
type sizeResult struct {
	page int
	w, h int
	err  error
}

// mailbox carries resolved page sizes from resolver goroutines to the
// control goroutine.
type mailbox struct {
	mu    sync.Mutex
	items []sizeResult
}

func (m *mailbox) post(r sizeResult) {
	m.mu.Lock()
	m.items = append(m.items, r)
	m.mu.Unlock()
}

func (m *mailbox) drain() []sizeResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = nil
	return items
}

func (m *mailbox) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items) == 0
}

// resolve starts a resolver goroutine for each page not already being
// resolved. Caller must hold d.mu.
func (d *Document) resolve(pages []int) {
	for _, i := range pages {
		if d.resolving[i] {
			continue
		}
		d.resolving[i] = true
		d.inflight.Add(1)
		d.resolveWG.Add(1)
		go func(i int) {
			defer d.resolveWG.Done()
			defer d.inflight.Add(-1)

			if d.ctx.Err() != nil {
				return
			}
			w, h, err := d.src.PageSize(i)
			if err == nil && (w <= 0 || h <= 0) {
				err = fmt.Errorf("invalid size %dx%d", w, h)
			}
			d.sizes.post(sizeResult{page: i, w: w, h: h, err: err})
			d.notify()
		}(i)
	}
}

// applySizes reflows the layout with every size posted since the last call
// and reports whether any arrived. A page whose size cannot be read keeps
// its placeholder size. When a page above the viewport changes height the
// scroll position moves with it, so the content on screen stays put.
// Caller must hold d.mu.
func (d *Document) applySizes() bool {
	results := d.sizes.drain()
	if len(results) == 0 {
		return false
	}
	log := Logger()
	for _, r := range results {
		delete(d.resolving, r.page)
		p := d.layout.Page(r.page)
		if r.err != nil {
			if !isCanceled(r.err) {
				log.Warn("pdfview: page size unavailable", "page", r.page, "err", r.err)
			}
			r.w, r.h = p.Size()
		}

		above := d.started && r.page < d.first
		before := d.layout.PageRect(min(r.page+1, d.layout.Len()-1), d.scale).Min.Y
		_, widened := d.layout.Resolve(r.page, r.w, r.h)
		if widened {
			d.layout.Fit(d.surface.X)
		}
		if above && !widened {
			d.scroll.Y += d.layout.PageRect(r.page+1, d.scale).Min.Y - before
		}
		log.Info("pdfview: page size resolved", "page", r.page, "width", r.w, "height", r.h)
	}
	return true
}

// guarded serializes buffer hand-back with Draw: a buffer is never given
// to the recycler, and so never reused or freed, while Draw may read it.
type guarded struct {
	bitmap.Recycler
	mu *sync.RWMutex
}

func (g guarded) Put(b *bitmap.Bitmap) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Recycler.Put(b)
}

// lock acquires d.mu.
func (d *Document) lock() {
	d.mu.Lock()
}

// unlock releases d.mu and then runs callbacks queued while it was held.
func (d *Document) unlock() {
	queued := d.queued
	d.queued = nil
	d.mu.Unlock()
	for _, fn := range queued {
		fn()
	}
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isCanceled reports whether err stems from context cancellation.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
