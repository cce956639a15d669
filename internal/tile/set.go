package tile

import "slices"

// Set is an insertion-ordered set of tiles indexed by Key.
// The zero value is an empty set ready to use.
//
// Set is not thread-safe.
type Set struct {
	index map[Key]*Tile
	order []*Tile
}

// Len returns the number of tiles.
func (s *Set) Len() int {
	return len(s.order)
}

// Add inserts t unless a tile with the same Key is present.
// It reports whether t was inserted.
func (s *Set) Add(t *Tile) bool {
	if s.index == nil {
		s.index = make(map[Key]*Tile)
	}
	if _, ok := s.index[t.key]; ok {
		return false
	}
	s.index[t.key] = t
	s.order = append(s.order, t)
	return true
}

// Get returns the tile stored under k.
func (s *Set) Get(k Key) (*Tile, bool) {
	t, ok := s.index[k]
	return t, ok
}

// Contains reports whether a tile with Key k is present.
func (s *Set) Contains(k Key) bool {
	_, ok := s.index[k]
	return ok
}

// ContainsAll reports whether every tile in tiles has a member with the
// same Key.
func (s *Set) ContainsAll(tiles []*Tile) bool {
	for _, t := range tiles {
		if !s.Contains(t.key) {
			return false
		}
	}
	return true
}

// Remove deletes and returns the tile stored under k.
func (s *Set) Remove(k Key) (*Tile, bool) {
	t, ok := s.index[k]
	if !ok {
		return nil, false
	}
	delete(s.index, k)
	s.order = slices.DeleteFunc(s.order, func(o *Tile) bool { return o == t })
	return t, true
}

// Tiles returns the members in insertion order. The slice is a copy.
func (s *Set) Tiles() []*Tile {
	return slices.Clone(s.order)
}

// Retain keeps the tiles for which keep returns true and returns the rest
// in insertion order.
func (s *Set) Retain(keep func(*Tile) bool) []*Tile {
	var removed []*Tile
	kept := s.order[:0]
	for _, t := range s.order {
		if keep(t) {
			kept = append(kept, t)
			continue
		}
		removed = append(removed, t)
		delete(s.index, t.key)
	}
	clear(s.order[len(kept):])
	s.order = kept
	return removed
}

// Clear empties the set and returns the former members in insertion order.
func (s *Set) Clear() []*Tile {
	removed := s.order
	s.order = nil
	s.index = nil
	return removed
}
