// Package alloctable maps disjoint address extents to allocation metadata,
// so a checker can resolve an arbitrary address to the allocation containing
// it. Extents are keyed by base address in a radix tree; inserting over an
// existing extent punches a hole first, splitting or truncating whatever it
// overlaps.
package alloctable

import (
	"log"

	"github.com/akmistry/go-util/radix-tree"
)

// Extent is an address range [Base, Base+Size) carrying one value.
type Extent[V comparable] struct {
	Base, Size uint64
	Value      V
}

// Key implements radix.Item.
func (e *Extent[V]) Key() uint64 {
	return e.Base
}

func (e *Extent[V]) End() uint64 {
	return e.Base + e.Size
}

func (e *Extent[V]) Contains(addr uint64) bool {
	return addr >= e.Base && addr < e.End()
}

func (e *Extent[V]) overlaps(base, size uint64) bool {
	return e.Contains(base) || (base <= e.Base && (base+size) > e.Base)
}

// Table is a sparse map from address extents to values. The zero value is an
// empty table ready for use. Not safe for concurrent use.
type Table[V comparable] struct {
	tree radix.Tree
}

// Begin returns the base of the lowest extent.
func (t *Table[V]) Begin() (base uint64, ok bool) {
	t.tree.Ascend(func(i radix.Item) bool {
		base = i.(*Extent[V]).Base
		ok = true
		return false
	})
	return
}

// End returns one past the highest mapped address, or 0 if the table is
// empty.
func (t *Table[V]) End() (end uint64) {
	t.tree.Descend(func(i radix.Item) bool {
		end = i.(*Extent[V]).End()
		return false
	})
	return
}

func (t *Table[V]) overlapping(base, size uint64) []*Extent[V] {
	end := base + size
	var extents []*Extent[V]
	t.tree.DescendLessOrEqualI(end, func(i radix.Item) bool {
		e := i.(*Extent[V])
		if e.Base == end {
			// Touching, not overlapping.
			return true
		} else if !e.overlaps(base, size) {
			return false
		}
		extents = append(extents, e)
		return true
	})
	return extents
}

// Find returns the extent containing |addr|, if any.
func (t *Table[V]) Find(addr uint64) (ext Extent[V], ok bool) {
	t.tree.DescendLessOrEqualI(addr, func(i radix.Item) bool {
		e := i.(*Extent[V])
		if e.Contains(addr) {
			ext = *e
			ok = true
		}
		return false
	})
	return
}

// NextMapped returns the lowest mapped address at or after |addr|.
func (t *Table[V]) NextMapped(addr uint64) (next uint64, ok bool) {
	if _, found := t.Find(addr); found {
		return addr, true
	}

	t.tree.AscendGreaterOrEqualI(addr, func(i radix.Item) bool {
		next = i.(*Extent[V]).Base
		ok = true
		return false
	})
	return
}

// NextUnmapped returns the lowest unmapped address at or after |addr|. If
// |addr| itself is unmapped, returns |addr|.
func (t *Table[V]) NextUnmapped(addr uint64) (next uint64) {
	next = addr
	t.tree.DescendLessOrEqualI(addr, func(i radix.Item) bool {
		e := i.(*Extent[V])
		if e.Contains(addr) {
			next = e.End()
		}
		return false
	})
	if next == addr {
		return
	}

	// Walk over any extents that begin exactly where the previous one
	// ended.
	t.tree.AscendGreaterOrEqualI(next, func(i radix.Item) bool {
		e := i.(*Extent[V])
		if !e.Contains(next) {
			return false
		}
		next = e.End()
		return true
	})
	return
}

// Remove unmaps [base, base+size), splitting or truncating any extents that
// only partially overlap it.
func (t *Table[V]) Remove(base, size uint64) {
	if size == 0 {
		return
	}

	end := base + size
	for _, e := range t.overlapping(base, size) {
		eEnd := e.End()
		if e.Base < base {
			if eEnd > end {
				// The old extent completely covers the removed range. Keep
				// both the head and a new tail.
				tail := &Extent[V]{
					Base:  end,
					Size:  eEnd - end,
					Value: e.Value,
				}
				if old := t.tree.ReplaceOrInsert(tail); old != nil {
					log.Panicf("alloctable: unexpected old extent: %+v", old)
				}
			}
			// Truncate the old extent in place instead of deleting and
			// re-inserting it.
			e.Size = base - e.Base
			e = nil
		} else if eEnd > end {
			tail := &Extent[V]{
				Base:  end,
				Size:  eEnd - end,
				Value: e.Value,
			}
			if old := t.tree.ReplaceOrInsert(tail); old != nil {
				log.Panicf("alloctable: unexpected old extent: %+v", old)
			}
		}

		if e != nil && t.tree.Delete(e) != e {
			log.Panicf("alloctable: extent not deleted: %+v", e)
		}
	}
}

// Insert maps [base, base+size) to |value|, replacing anything it overlaps.
func (t *Table[V]) Insert(base, size uint64, value V) {
	if size == 0 {
		return
	}

	ext := &Extent[V]{
		Base:  base,
		Size:  size,
		Value: value,
	}
	// Punch a hole, and put the new extent in it.
	t.Remove(base, size)

	if old := t.tree.ReplaceOrInsert(ext); old != nil {
		log.Panicf("alloctable: unexpected old extent: %+v, inserting: %+v", old, ext)
	}
}

// Iterate calls |fn| for every mapped extent intersecting [start, ∞), in
// ascending order, until fn returns false. Contiguous extents with equal
// values are reported as one, and an extent straddling |start| is clipped to
// begin there.
func (t *Table[V]) Iterate(start uint64, fn func(Extent[V]) bool) {
	first := start
	if start > 0 {
		t.tree.DescendLessOrEqualI(start, func(i radix.Item) bool {
			e := i.(*Extent[V])
			if e.Contains(start) {
				first = e.Base
			}
			return false
		})
	}

	var run Extent[V]
	t.tree.AscendGreaterOrEqualI(first, func(item radix.Item) bool {
		e := item.(*Extent[V])
		if e.Base < start {
			run = Extent[V]{Base: start, Size: e.End() - start, Value: e.Value}
			return true
		}

		if run.Size > 0 && run.Value == e.Value && e.Base == run.End() {
			run.Size += e.Size
		} else {
			if run.Size > 0 && !fn(run) {
				run.Size = 0
				return false
			}
			run = *e
		}
		return true
	})
	if run.Size > 0 {
		fn(run)
	}
}
