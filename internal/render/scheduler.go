package render

import (
	"context"

	"github.com/gogpu/pdfview/internal/bitmap"
	"github.com/gogpu/pdfview/internal/tile"
)

// Config configures a Scheduler.
type Config struct {
	// Pages is the document page count, used to size the dirty tracker.
	Pages int
	// Workers is the worker count of each stream's pool.
	Workers int
	// Rasterizer renders tiles of both streams.
	Rasterizer Rasterizer
	// Thumbnails and Details recycle the buffers of each stream.
	Thumbnails bitmap.Recycler
	Details    bitmap.Recycler
	// OnPublish is called after each published tile of either stream.
	OnPublish func(t *tile.Tile)
	// OnError is called for each failed tile of either stream.
	OnError func(err *TileError)
}

// Scheduler owns the thumbnail and detail streams of one document. The
// streams share nothing but the rasterizer, the callbacks and the dirty
// tracker.
type Scheduler struct {
	thumbs  *Stream
	details *Stream
	dirty   *DirtyPages
}

// NewScheduler creates both streams.
func NewScheduler(cfg Config) *Scheduler {
	dirty := NewDirtyPages(cfg.Pages)
	stream := func(name string, r bitmap.Recycler) *Stream {
		return NewStream(StreamConfig{
			Name:       name,
			Workers:    cfg.Workers,
			Rasterizer: cfg.Rasterizer,
			Recycler:   r,
			Dirty:      dirty,
			OnPublish:  cfg.OnPublish,
			OnError:    cfg.OnError,
		})
	}
	return &Scheduler{
		thumbs:  stream("thumbnail", cfg.Thumbnails),
		details: stream("detail", cfg.Details),
		dirty:   dirty,
	}
}

// Thumbnails returns the thumbnail stream.
func (s *Scheduler) Thumbnails() *Stream { return s.thumbs }

// Details returns the detail stream.
func (s *Scheduler) Details() *Stream { return s.details }

// Dirty returns the tracker of pages with newly published tiles.
func (s *Scheduler) Dirty() *DirtyPages { return s.dirty }

// Busy reports whether either stream is running a batch.
func (s *Scheduler) Busy() bool {
	return s.thumbs.Busy() || s.details.Busy()
}

// Wait blocks until both streams are idle or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	for _, st := range []*Stream{s.thumbs, s.details} {
		select {
		case <-st.Idle():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close closes both streams.
func (s *Scheduler) Close() {
	s.thumbs.Close()
	s.details.Close()
}

// Stats holds per-stream statistics.
type Stats struct {
	Thumbnails StreamStats
	Details    StreamStats
}

// Stats returns statistics of both streams.
func (s *Scheduler) Stats() Stats {
	return Stats{Thumbnails: s.thumbs.Stats(), Details: s.details.Stats()}
}
