package render

import (
	"math/bits"
	"sync/atomic"
)

// DirtyPages records which pages received newly published tiles since the
// view last asked. One bit per page, packed into atomic words, so workers
// can mark without locking.
type DirtyPages struct {
	words []atomic.Uint64
	pages int
}

// NewDirtyPages creates a clean tracker for the given page count.
func NewDirtyPages(pages int) *DirtyPages {
	pages = max(pages, 0)
	return &DirtyPages{
		words: make([]atomic.Uint64, (pages+63)/64),
		pages: pages,
	}
}

// Mark flags page as dirty. Out-of-range pages are ignored.
func (d *DirtyPages) Mark(page int) {
	if page < 0 || page >= d.pages {
		return
	}
	d.words[page/64].Or(1 << (page & 63))
}

// GetAndClear returns the flagged pages in ascending order and clears them.
// Each word is swapped atomically, so a concurrent Mark is either returned
// now or kept for the next call.
func (d *DirtyPages) GetAndClear() []int {
	var pages []int
	for wi := range d.words {
		word := d.words[wi].Swap(0)
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			pages = append(pages, wi*64+bit)
			word &= word - 1
		}
	}
	return pages
}
