package pdfview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource is an in-memory PageSource. Each page renders as a solid
// color derived from its index.
type fakeSource struct {
	sizes []image.Point

	mu      sync.Mutex
	failing map[int]bool

	sizeCalls   atomic.Int32
	renderCalls atomic.Int32
	closed      atomic.Bool
}

func newFakeSource(sizes ...image.Point) *fakeSource {
	return &fakeSource{sizes: sizes, failing: make(map[int]bool)}
}

func pageColor(page int) color.RGBA {
	return color.RGBA{R: uint8(40 * (page + 1)), G: 100, B: 200, A: 255}
}

func (f *fakeSource) setFailing(page int, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[page] = fail
}

func (f *fakeSource) PageCount() int { return len(f.sizes) }

func (f *fakeSource) PageSize(page int) (int, int, error) {
	f.sizeCalls.Add(1)
	if page < 0 || page >= len(f.sizes) {
		return 0, 0, fmt.Errorf("no page %d", page)
	}
	return f.sizes[page].X, f.sizes[page].Y, nil
}

func (f *fakeSource) RenderRegion(page, offsetX, offsetY int, dst *image.RGBA, pageWidth, pageHeight int) error {
	f.renderCalls.Add(1)
	f.mu.Lock()
	fail := f.failing[page]
	f.mu.Unlock()
	if fail {
		return errors.New("render failed")
	}
	c := pageColor(page)
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetRGBA(x, y, c)
		}
	}
	return nil
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

func openerFor(src PageSource) Opener {
	return OpenerFunc(func(context.Context, string) (PageSource, error) {
		return src, nil
	})
}

func openTest(t *testing.T, src *fakeSource, opts ...Option) *Document {
	t.Helper()
	opts = append([]Option{WithOpenAttempts(1, 0)}, opts...)
	d, err := Open(context.Background(), "file:///test.pdf", openerFor(src), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func settle(t *testing.T, d *Document) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Settle(ctx); err != nil {
		t.Fatalf("Settle: %v", err)
	}
}

// twoPages is the document of the basic scrolling scenario: page 0 is
// 1000 pixels high and page 1 is 800, both 500 wide.
func twoPages() *fakeSource {
	return newFakeSource(image.Pt(500, 1000), image.Pt(500, 800))
}

// =============================================================================
// Open Tests
// =============================================================================

func TestOpen_FailsAfterAllAttempts(t *testing.T) {
	var calls atomic.Int32
	opener := OpenerFunc(func(context.Context, string) (PageSource, error) {
		calls.Add(1)
		return nil, errors.New("unreachable")
	})

	_, err := Open(context.Background(), "file:///missing.pdf", opener, WithOpenAttempts(3, 0))
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("Open error = %v, want *OpenError", err)
	}
	if oe.Attempts != 3 || calls.Load() != 3 {
		t.Errorf("attempts = %d (opener calls %d), want 3", oe.Attempts, calls.Load())
	}
	if oe.URI != "file:///missing.pdf" {
		t.Errorf("URI = %q, want file:///missing.pdf", oe.URI)
	}
}

func TestOpen_RetrySucceeds(t *testing.T) {
	src := twoPages()
	var calls atomic.Int32
	opener := OpenerFunc(func(context.Context, string) (PageSource, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("busy")
		}
		return src, nil
	})

	d, err := Open(context.Background(), "file:///a.pdf", opener, WithOpenAttempts(3, time.Millisecond))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if d.PageCount() != 2 {
		t.Errorf("PageCount = %d, want 2", d.PageCount())
	}
	if d.ID() != DocumentID("file:///a.pdf") {
		t.Errorf("ID = %v, want DocumentID of the URI", d.ID())
	}
}

func TestOpen_EmptyDocument(t *testing.T) {
	src := newFakeSource()
	_, err := Open(context.Background(), "file:///empty.pdf", openerFor(src), WithOpenAttempts(1, 0))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("Open error = %v, want ErrEmptyDocument", err)
	}
	if !src.closed.Load() {
		t.Error("source not closed after failed open")
	}
}

func TestOpen_NothingRendersBeforeResize(t *testing.T) {
	src := twoPages()
	d := openTest(t, src)
	settle(t, d)

	if n := src.renderCalls.Load(); n != 0 {
		t.Errorf("render calls = %d, want 0", n)
	}
	if first, last := d.VisiblePages(); last != -1 {
		t.Errorf("VisiblePages = (%d, %d), want last -1", first, last)
	}
}

// =============================================================================
// Viewport Tests
// =============================================================================

func TestDocument_ScrollScenario(t *testing.T) {
	src := twoPages()
	d := openTest(t, src, WithTileSize(100, 100))
	d.Resize(500, 500)
	settle(t, d)

	d.ScrollTo(0, 900)
	settle(t, d)

	if first, last := d.VisiblePages(); first != 0 || last != 1 {
		t.Fatalf("VisiblePages = (%d, %d), want (0, 1)", first, last)
	}

	d.lock()
	parts0 := d.layout.Page(0).Parts()
	parts1 := d.layout.Page(1).Parts()
	d.unlock()

	if len(parts0) != 5 {
		t.Errorf("page 0 tiles = %d, want 5", len(parts0))
	}
	for _, p := range parts0 {
		if b := p.Bounds(); b.Min.Y != 900 || b.Max.Y != 1000 {
			t.Errorf("page 0 tile %v outside the bottom band", b)
		}
	}
	if len(parts1) != 20 {
		t.Errorf("page 1 tiles = %d, want 20", len(parts1))
	}
	for _, p := range parts1 {
		if b := p.Bounds(); b.Max.Y > 400 {
			t.Errorf("page 1 tile %v below the first 400px", b)
		}
	}
	for _, p := range append(parts0, parts1...) {
		if !p.IsRendered() {
			t.Errorf("tile %v of page %d not rendered", p.Bounds(), p.Page())
		}
	}
}

func TestDocument_ScrollClamping(t *testing.T) {
	d := openTest(t, twoPages())
	d.Resize(500, 500)
	settle(t, d)

	tests := []struct {
		name  string
		y     int
		wantY int
	}{
		{"negative", -300, 0},
		{"inside", 700, 700},
		{"past end", 99999, 1300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.ScrollTo(0, tt.y)
			if got := d.Scroll().Y; got != tt.wantY {
				t.Errorf("scroll y = %d, want %d", got, tt.wantY)
			}
		})
	}

	d.ScrollTo(0, 0)
	d.ScrollBy(0, -10)
	if got := d.Scroll().Y; got != 0 {
		t.Errorf("ScrollBy above top: y = %d, want 0", got)
	}
	if d.CanScroll(0, -10) {
		t.Error("CanScroll up at the top = true, want false")
	}
	if !d.CanScroll(0, 10) {
		t.Error("CanScroll down at the top = false, want true")
	}
}

func TestDocument_ScaleClamping(t *testing.T) {
	d := openTest(t, twoPages(), WithScaleLimits(1, 4))
	d.Resize(500, 500)

	d.ScaleBy(0, 0, 2)
	if got := d.Scale(); got != 2 {
		t.Errorf("Scale after ScaleBy(2) = %v, want 2", got)
	}
	d.ScaleTo(0, 0, 100)
	if got := d.Scale(); got != 4 {
		t.Errorf("Scale after ScaleTo(100) = %v, want 4", got)
	}
	d.ScaleTo(0, 0, 0.1)
	if got := d.Scale(); got != 1 {
		t.Errorf("Scale after ScaleTo(0.1) = %v, want 1", got)
	}
}

func TestDocument_ScaleKeepsFocus(t *testing.T) {
	d := openTest(t, twoPages())
	d.Resize(500, 500)
	d.ScrollTo(0, 300)

	// Content point (250, 550) is under surface point (250, 250).
	d.ScaleTo(250, 250, 2)
	if got, want := d.Scroll(), image.Pt(250, 850); got != want {
		t.Errorf("scroll after zoom = %v, want %v", got, want)
	}
}

func TestDocument_ScrollToPage(t *testing.T) {
	var mu sync.Mutex
	var changes [][2]int
	d := openTest(t, twoPages(), WithOnPageChange(func(first, last int) {
		mu.Lock()
		changes = append(changes, [2]int{first, last})
		mu.Unlock()
	}))
	d.Resize(500, 500)
	settle(t, d)

	if err := d.ScrollToPage(1); err != nil {
		t.Fatalf("ScrollToPage(1): %v", err)
	}
	if got := d.Scroll().Y; got != 1000 {
		t.Errorf("scroll y = %d, want 1000", got)
	}
	if err := d.ScrollToPage(2); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("ScrollToPage(2) = %v, want ErrPageOutOfRange", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 || changes[0] != [2]int{0, 0} || changes[1] != [2]int{1, 1} {
		t.Errorf("page changes = %v, want [[0 0] [1 1]]", changes)
	}
}

func TestDocument_StartPage(t *testing.T) {
	d := openTest(t, twoPages(), WithStartPage(1))
	d.Resize(500, 500)

	if first, _ := d.VisiblePages(); first != 1 {
		t.Errorf("first visible = %d, want 1", first)
	}
}

func TestDocument_ContentCenteredWhenSmaller(t *testing.T) {
	d := openTest(t, newFakeSource(image.Pt(500, 200)))
	d.Resize(500, 500)

	d.lock()
	offset := d.offset
	d.unlock()
	if offset != image.Pt(0, 150) {
		t.Errorf("offset = %v, want (0,150)", offset)
	}
}

// =============================================================================
// Page Size Resolution Tests
// =============================================================================

func TestDocument_LazyReflow(t *testing.T) {
	src := newFakeSource(
		image.Pt(500, 500), image.Pt(500, 500),
		image.Pt(500, 1200), image.Pt(500, 500),
	)
	d := openTest(t, src)
	d.Resize(500, 500)
	settle(t, d)

	d.lock()
	defer d.unlock()
	for i, want := range []int{0, 500, 1000, 2200} {
		if got := d.layout.Page(i).Top(); got != want {
			t.Errorf("page %d top = %d, want %d", i, got, want)
		}
		if !d.layout.Page(i).Resolved() {
			t.Errorf("page %d not resolved", i)
		}
	}
}

func TestDocument_DetailTilesFollowResolvedSize(t *testing.T) {
	// Page 1 starts with page 0's 500x200 size and is really 500x400.
	src := newFakeSource(image.Pt(500, 200), image.Pt(500, 400))
	d := openTest(t, src, WithTileSize(100, 100))
	d.Resize(500, 500)
	settle(t, d)

	d.lock()
	parts := d.layout.Page(1).Parts()
	d.unlock()

	if len(parts) == 0 {
		t.Fatal("page 1 has no detail tiles")
	}
	for _, p := range parts {
		k := p.Key()
		if k.PageW != 500 || k.PageH != 400 {
			t.Errorf("tile %v page size = %dx%d, want 500x400", k.Bounds, k.PageW, k.PageH)
		}
		if k.Bounds.Max.Y > 400 {
			t.Errorf("tile %v extends past the page bottom", k.Bounds)
		}
		if !p.IsRendered() {
			t.Errorf("tile %v not rendered", k.Bounds)
		}
	}
}

func TestDocument_ResolvesOnlyNearbyPages(t *testing.T) {
	sizes := make([]image.Point, 40)
	for i := range sizes {
		sizes[i] = image.Pt(500, 500)
	}
	src := newFakeSource(sizes...)
	d := openTest(t, src, WithThumbnailMargin(2))
	d.Resize(500, 500)
	settle(t, d)

	if got := d.Stats().ResolvedPages; got != 3 {
		t.Errorf("resolved pages = %d, want 3", got)
	}
}

// =============================================================================
// Rendering Tests
// =============================================================================

func TestDocument_Draw(t *testing.T) {
	d := openTest(t, twoPages(), WithTileSize(100, 100))
	d.Resize(500, 500)
	d.ScrollTo(0, 900)
	settle(t, d)

	dst := image.NewRGBA(image.Rect(0, 0, 500, 500))
	d.Draw(dst)

	if got, want := dst.RGBAAt(250, 50), pageColor(0); got != want {
		t.Errorf("pixel on page 0 = %v, want %v", got, want)
	}
	if got, want := dst.RGBAAt(250, 300), pageColor(1); got != want {
		t.Errorf("pixel on page 1 = %v, want %v", got, want)
	}
}

func TestDocument_DirtyPages(t *testing.T) {
	d := openTest(t, twoPages())
	d.Resize(500, 500)
	settle(t, d)

	got := d.DirtyPages()
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("DirtyPages = %v, want [0 1]", got)
	}
	if again := d.DirtyPages(); len(again) != 0 {
		t.Errorf("DirtyPages after drain = %v, want empty", again)
	}
}

func TestDocument_OnUpdate(t *testing.T) {
	var updates atomic.Int32
	d := openTest(t, twoPages(), WithOnUpdate(func() { updates.Add(1) }))
	d.Resize(500, 500)
	settle(t, d)

	if updates.Load() == 0 {
		t.Error("OnUpdate never called")
	}
}

func TestDocument_SameViewportRendersNothingNew(t *testing.T) {
	src := twoPages()
	d := openTest(t, src)
	d.Resize(500, 500)
	settle(t, d)

	before := src.renderCalls.Load()
	d.ScrollTo(0, 0)
	d.UpdateQuality()
	settle(t, d)

	if after := src.renderCalls.Load(); after != before {
		t.Errorf("render calls = %d, want %d", after, before)
	}
}

func TestDocument_FailedTilesRetriedOnNextPass(t *testing.T) {
	src := twoPages()
	src.setFailing(0, true)
	d := openTest(t, src, WithTileSize(250, 250))
	d.Resize(500, 500)
	settle(t, d)

	d.lock()
	parts := d.layout.Page(0).Parts()
	d.unlock()
	for _, p := range parts {
		if p.IsRendered() {
			t.Errorf("failed tile %v marked rendered", p.Bounds())
		}
	}
	if d.Stats().Render.Details.Failed == 0 {
		t.Error("Details.Failed = 0, want failures counted")
	}

	src.setFailing(0, false)
	d.UpdateQuality()
	settle(t, d)
	for _, p := range parts {
		if !p.IsRendered() {
			t.Errorf("tile %v not rendered after retry", p.Bounds())
		}
	}
}

func TestDocument_DeferredQuality(t *testing.T) {
	d := openTest(t, twoPages(), WithDeferredQuality(true), WithTileSize(100, 100))
	d.Resize(500, 500)
	settle(t, d)
	submitted := d.Stats().Render.Details.Submitted

	d.ScrollTo(0, 900)
	settle(t, d)
	if got := d.Stats().Render.Details.Submitted; got != submitted {
		t.Errorf("detail batches after scroll = %d, want %d", got, submitted)
	}

	d.UpdateQuality()
	settle(t, d)
	if got := d.Stats().Render.Details.Submitted; got != submitted+1 {
		t.Errorf("detail batches after UpdateQuality = %d, want %d", got, submitted+1)
	}
}

func TestDocument_ZoomReplacesDetailTiles(t *testing.T) {
	d := openTest(t, twoPages(), WithTileSize(100, 100))
	d.Resize(500, 500)
	settle(t, d)

	d.lock()
	before := d.layout.Page(0).Parts()
	d.unlock()

	d.ScaleTo(0, 0, 2)
	settle(t, d)

	d.lock()
	after := d.layout.Page(0).Parts()
	d.unlock()
	for _, a := range after {
		for _, b := range before {
			if a == b {
				t.Fatalf("tile %v survived the zoom", a.Bounds())
			}
		}
		if a.RenderScale() != 2 {
			t.Errorf("tile render scale = %v, want 2", a.RenderScale())
		}
	}
	// Old buffers went back to the cache.
	if d.Stats().Render.Details.Recycled == 0 {
		t.Error("no detail tiles recycled after zoom")
	}
}

// =============================================================================
// State Tests
// =============================================================================

func TestDocument_StateRestore(t *testing.T) {
	src := twoPages()
	d := openTest(t, src)
	d.Resize(500, 500)
	d.ScaleTo(0, 0, 2)
	d.ScrollTo(100, 2300)
	settle(t, d)

	s := d.State()
	if s.FirstVisiblePage != 1 || s.Scale != 2 {
		t.Fatalf("State = %+v, want page 1 at scale 2", s)
	}
	if s.NormalizedScrollX != 50 || s.NormalizedScrollY != 150 {
		t.Errorf("normalized scroll = (%v, %v), want (50, 150)", s.NormalizedScrollX, s.NormalizedScrollY)
	}

	other := openTest(t, twoPages())
	other.Resize(500, 500)
	settle(t, other)
	if err := other.Restore(s); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got, want := other.Scroll(), image.Pt(100, 2300); got != want {
		t.Errorf("restored scroll = %v, want %v", got, want)
	}
	if got := other.Scale(); got != 2 {
		t.Errorf("restored scale = %v, want 2", got)
	}
}

func TestDocument_RestoreValidates(t *testing.T) {
	d := openTest(t, twoPages())
	d.Resize(500, 500)

	foreign := d.State()
	foreign.DocumentID = DocumentID("file:///other.pdf")
	if err := d.Restore(foreign); !errors.Is(err, ErrStateMismatch) {
		t.Errorf("Restore(foreign) = %v, want ErrStateMismatch", err)
	}

	bad := d.State()
	bad.FirstVisiblePage = 7
	if err := d.Restore(bad); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("Restore(page 7) = %v, want ErrPageOutOfRange", err)
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestDocument_Close(t *testing.T) {
	src := twoPages()
	d, err := Open(context.Background(), "file:///c.pdf", openerFor(src), WithOpenAttempts(1, 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d.Resize(500, 500)
	settle(t, d)

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if !src.closed.Load() {
		t.Error("source not closed")
	}
	if err := d.ScrollToPage(0); !errors.Is(err, ErrClosed) {
		t.Errorf("ScrollToPage after Close = %v, want ErrClosed", err)
	}

	st := d.Stats()
	if st.Cache.SizeKB != 0 || st.Pool.Len != 0 {
		t.Errorf("buffers held after Close: cache %d KB, pool %d", st.Cache.SizeKB, st.Pool.Len)
	}
	if st.Render.Thumbnails.Published != 0 || st.Render.Details.Published != 0 {
		t.Errorf("published tiles after Close = %d/%d, want 0/0",
			st.Render.Thumbnails.Published, st.Render.Details.Published)
	}

	// Drawing a closed document is a no-op.
	d.Draw(image.NewRGBA(image.Rect(0, 0, 10, 10)))
}

func TestDocument_WithoutRecycling(t *testing.T) {
	d := openTest(t, twoPages(), WithoutRecycling())
	d.Resize(500, 500)
	d.ScaleTo(0, 0, 2)
	settle(t, d)

	st := d.Stats()
	if st.Cache.BudgetKB != 0 || st.Pool.Capacity != 0 {
		t.Errorf("recycling stats = %+v / %+v, want zero", st.Cache, st.Pool)
	}
}

func TestDocument_ConcurrentViewportChanges(t *testing.T) {
	d := openTest(t, twoPages(), WithTileSize(50, 50))
	d.Resize(500, 500)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			dst := image.NewRGBA(image.Rect(0, 0, 500, 500))
			for i := 0; i < 50; i++ {
				d.ScrollBy(0, (g+1)*7)
				d.Draw(dst)
				_ = d.DirtyPages()
			}
		}(g)
	}
	wg.Wait()
	settle(t, d)

	if busy := d.Stats(); busy.Render.Details.Batches != busy.Render.Details.Submitted {
		t.Errorf("details: %d batches ended, %d submitted", busy.Render.Details.Batches, busy.Render.Details.Submitted)
	}
}
