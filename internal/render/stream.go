// Package render schedules tile rasterization.
//
// A Stream runs at most one batch of tiles at a time on its worker pool. A
// new request while a batch runs cancels that batch and parks the request
// in a single pending slot; later requests overwrite the slot, so only the
// newest one is ever started. The batch in flight notices cancellation
// between tiles, never in the middle of one.
//
// Before a batch starts, rendered tiles the request no longer needs are
// reconciled: their buffers go back to the stream's Recycler.
package render

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/pdfview/internal/bitmap"
	"github.com/gogpu/pdfview/internal/tile"
)

// ErrClosed is returned when requesting work from a closed stream.
var ErrClosed = errors.New("render: stream closed")

// Rasterizer fills dst with the region of a page described by key.
// dst is exactly key.Bounds sized. Implementations must be safe to call
// from a worker goroutine.
type Rasterizer interface {
	Rasterize(key tile.Key, dst *image.RGBA) error
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(key tile.Key, dst *image.RGBA) error

// Rasterize calls f(key, dst).
func (f RasterizerFunc) Rasterize(key tile.Key, dst *image.RGBA) error {
	return f(key, dst)
}

// Outcome is how a batch ended. Cancellation is not an error.
type Outcome int

const (
	// Completed means every tile of the batch was attempted.
	Completed Outcome = iota
	// Cancelled means a newer request or Close stopped the batch early.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// TileError describes a tile that could not be rendered. The tile stays
// unrendered and is tried again the next time it is requested.
type TileError struct {
	Page   int
	Bounds image.Rectangle
	Err    error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("render: page %d tile %v: %v", e.Page, e.Bounds, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	// Name labels log records, e.g. "thumbnail" or "detail".
	Name string
	// Workers is the worker pool size. Defaults to 1.
	Workers int
	// Rasterizer renders tiles. Required.
	Rasterizer Rasterizer
	// Recycler supplies and takes back buffers. Nil disables recycling.
	Recycler bitmap.Recycler
	// Dirty, if set, is marked with the page of every published tile.
	Dirty *DirtyPages
	// OnPublish is called on the worker after each tile is published.
	OnPublish func(t *tile.Tile)
	// OnBatchDone is called on the worker when a batch ends.
	OnBatchDone func(Outcome)
	// OnError is called on the worker for every tile that fails.
	OnError func(err *TileError)
}

// batch is one submitted request.
type batch struct {
	gen    uint64
	tiles  []*tile.Tile
	cancel atomic.Bool
}

// Stream is one render pipeline.
//
// Thread safety: All methods are safe for concurrent use.
type Stream struct {
	cfg  StreamConfig
	pool *WorkerPool

	mu       sync.Mutex
	rendered tile.Set
	current  *batch
	pending  *batch
	idle     chan struct{} // closed while no batch runs
	closed   bool
	gen      uint64
	stats    StreamStats
}

// NewStream creates a stream and its worker pool.
func NewStream(cfg StreamConfig) *Stream {
	if cfg.Recycler == nil {
		cfg.Recycler = bitmap.Discard
	}
	idle := make(chan struct{})
	close(idle)
	return &Stream{
		cfg:  cfg,
		pool: NewWorkerPool(cfg.Workers),
		idle: idle,
	}
}

// Request asks for tiles to be rendered in order.
//
// Rendered buffers of equal-keyed tiles are moved into the requested tile
// objects first. If every requested tile is then rendered, or an uncancelled
// batch for exactly these tiles is already running, nothing is submitted.
// It reports whether new work was scheduled.
func (s *Stream) Request(tiles []*tile.Tile) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}

	s.adopt(tiles)

	if s.current == nil && s.rendered.ContainsAll(tiles) {
		s.mu.Unlock()
		return false, nil
	}
	if s.current != nil && !s.current.cancel.Load() && sameTiles(s.current.tiles, tiles) {
		s.mu.Unlock()
		return false, nil
	}

	s.gen++
	next := &batch{gen: s.gen, tiles: tiles}

	if s.current != nil {
		s.current.cancel.Store(true)
		if s.pending != nil {
			s.stats.Superseded++
		}
		s.pending = next
		gen := s.current.gen
		s.mu.Unlock()
		slogger().Debug("render: batch cancelled", "stream", s.cfg.Name, "gen", gen, "next", next.gen)
		return true, nil
	}

	s.reconcile(next.tiles)
	s.start(next)
	s.mu.Unlock()

	if err := s.pool.Submit(func() { s.work(next) }); err != nil {
		s.mu.Lock()
		s.current = nil
		s.markIdle()
		s.mu.Unlock()
		return false, err
	}
	return true, nil
}

// Cancel stops the running batch after its current tile and drops any
// pending request. Rendered tiles are kept.
func (s *Stream) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.cancel.Store(true)
	}
	s.pending = nil
}

// Idle returns a channel that is closed when no batch is running.
func (s *Stream) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.idle
}

// Busy reports whether a batch is running.
func (s *Stream) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current != nil
}

// Rendered returns the published tiles.
func (s *Stream) Rendered() []*tile.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rendered.Tiles()
}

// IsPublished reports whether a tile with k has been published.
func (s *Stream) IsPublished(k tile.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rendered.Contains(k)
}

// Close cancels all work, waits for the running batch to stop, returns
// every rendered buffer to the recycler and stops the worker pool.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.current != nil {
		s.current.cancel.Store(true)
	}
	s.pending = nil
	idle := s.idle
	s.mu.Unlock()

	<-idle
	s.pool.Close()

	s.mu.Lock()
	for _, t := range s.rendered.Clear() {
		bitmap.Recycle(s.cfg.Recycler, t.Release())
	}
	s.mu.Unlock()
}

// work runs b and every continuation that was parked while it ran.
func (s *Stream) work(b *batch) {
	for b != nil {
		outcome := s.run(b)
		if s.cfg.OnBatchDone != nil {
			s.cfg.OnBatchDone(outcome)
		}
		b = s.finish(b, outcome)
	}
}

// run renders the tiles of b in order until done or cancelled.
func (s *Stream) run(b *batch) Outcome {
	log := slogger()
	log.Debug("render: batch started", "stream", s.cfg.Name, "gen", b.gen, "tiles", len(b.tiles))

	for _, t := range b.tiles {
		if b.cancel.Load() {
			return Cancelled
		}
		if t.IsRendered() || s.IsPublished(t.Key()) {
			continue
		}
		s.renderTile(t)
	}
	if b.cancel.Load() {
		return Cancelled
	}
	return Completed
}

// renderTile rasterizes one tile without holding any lock.
func (s *Stream) renderTile(t *tile.Tile) {
	key := t.Key()
	buf, err := bitmap.Obtain(s.cfg.Recycler, key.Size())
	if err != nil {
		s.fail(key, err)
		return
	}
	if err := s.cfg.Rasterizer.Rasterize(key, buf.Image()); err != nil {
		bitmap.Recycle(s.cfg.Recycler, buf)
		s.fail(key, err)
		return
	}
	if prev := t.MarkRendered(buf); prev != nil {
		bitmap.Recycle(s.cfg.Recycler, prev)
	}
	s.publish(t)
}

// publish records a rendered tile. A tile whose key was published by
// another object in the meantime gives its buffer back instead.
func (s *Stream) publish(t *tile.Tile) {
	s.mu.Lock()
	if other, ok := s.rendered.Get(t.Key()); ok && other != t {
		s.mu.Unlock()
		bitmap.Recycle(s.cfg.Recycler, t.Release())
		return
	}
	s.rendered.Add(t)
	s.stats.Rendered++
	s.mu.Unlock()

	if s.cfg.Dirty != nil {
		s.cfg.Dirty.Mark(t.Page())
	}
	if s.cfg.OnPublish != nil {
		s.cfg.OnPublish(t)
	}
}

func (s *Stream) fail(key tile.Key, err error) {
	s.mu.Lock()
	s.stats.Failed++
	s.mu.Unlock()

	terr := &TileError{Page: key.Page, Bounds: key.Bounds, Err: err}
	slogger().Warn("render: tile failed", "stream", s.cfg.Name, "page", key.Page, "bounds", key.Bounds, "err", err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(terr)
	}
}

// finish retires b and returns the continuation to run next, already
// reconciled, or nil when the stream becomes idle.
func (s *Stream) finish(b *batch, outcome Outcome) *batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Batches++
	if outcome == Cancelled {
		s.stats.Cancelled++
	}
	s.current = nil

	next := s.pending
	s.pending = nil
	if next == nil || s.closed {
		s.markIdle()
		return nil
	}

	s.adopt(next.tiles)
	s.reconcile(next.tiles)
	s.start(next)
	slogger().Debug("render: continuation started", "stream", s.cfg.Name, "after", b.gen, "gen", next.gen)
	return next
}

// adopt moves buffers from published tiles into requested tiles that share
// their key and makes the requested objects the published ones.
// Caller must hold s.mu.
func (s *Stream) adopt(tiles []*tile.Tile) {
	for _, t := range tiles {
		old, ok := s.rendered.Get(t.Key())
		if !ok || old == t {
			continue
		}
		t.Adopt(old)
		s.rendered.Remove(old.Key())
		s.rendered.Add(t)
	}
}

// reconcile recycles every published tile not in tiles.
// Caller must hold s.mu.
func (s *Stream) reconcile(tiles []*tile.Tile) {
	want := make(map[tile.Key]struct{}, len(tiles))
	for _, t := range tiles {
		want[t.Key()] = struct{}{}
	}
	removed := s.rendered.Retain(func(t *tile.Tile) bool {
		_, ok := want[t.Key()]
		return ok
	})
	for _, t := range removed {
		bitmap.Recycle(s.cfg.Recycler, t.Release())
	}
	s.stats.Recycled += uint64(len(removed))
	if len(removed) > 0 {
		slogger().Debug("render: recycled tiles", "stream", s.cfg.Name, "count", len(removed))
	}
}

// Caller must hold s.mu.
func (s *Stream) start(b *batch) {
	select {
	case <-s.idle:
		s.idle = make(chan struct{})
	default:
	}
	s.current = b
	s.stats.Submitted++
}

// Caller must hold s.mu.
func (s *Stream) markIdle() {
	select {
	case <-s.idle:
	default:
		close(s.idle)
	}
}

func sameTiles(a, b []*tile.Tile) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// StreamStats counts stream activity.
type StreamStats struct {
	// Submitted is the number of batches handed to the worker pool,
	// including continuations.
	Submitted uint64
	// Batches is the number of batches that ended.
	Batches uint64
	// Cancelled is the number of batches that ended early.
	Cancelled uint64
	// Superseded is the number of pending requests replaced before they
	// could start.
	Superseded uint64
	// Rendered is the number of tiles published.
	Rendered uint64
	// Failed is the number of tiles that could not be rendered.
	Failed uint64
	// Recycled is the number of published tiles given back on reconcile.
	Recycled uint64
	// Published is the number of tiles currently held.
	Published int
}

// Stats returns stream statistics.
func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Published = s.rendered.Len()
	return st
}
