// Package pagemap provides a sparse map from byte offsets to values, for
// large address spaces where only scattered regions ever carry a value.
// Values are stored in 256-byte pages, each with a presence bitmap, so
// lookups are O(1) and memory is proportional to the populated regions.
//
// The map is monotone: a byte can be set (and overwritten), but never
// cleared. This matches its use as a "which bytes have ever been written"
// style tracker.
//
// A Map is not safe for concurrent use.
package pagemap

import (
	"log"

	"github.com/akmistry/go-util/bitmap"
	"github.com/bits-and-blooms/bitset"
)

const (
	pageShift = 8
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

// Run is a maximal contiguous run of set bytes sharing one value.
type Run[V any] struct {
	Offset, Length uint64
	Value          V
}

func (r Run[V]) End() uint64 {
	return r.Offset + r.Length
}

type page[V any] struct {
	bm    bitmap.Bitmap256
	items *[256]V
}

func (p *page[V]) setRange(start, length int, value V) {
	for i := start; i < start+length; i++ {
		p.items[i] = value
		p.bm.Set(uint8(i))
	}
}

// Map is a sparse per-byte value map. The zero value is an empty map ready
// for use.
type Map[V comparable] struct {
	pages map[uint64]*page[V]

	// Page-level indexes, to skip runs of absent or fully-populated pages
	// without touching every page.
	fullPages bitset.BitSet
	partPages bitset.BitSet
}

func (m *Map[V]) getPage(pageIndex uint64) *page[V] {
	return m.pages[pageIndex]
}

func (m *Map[V]) getOrCreatePage(pageIndex uint64) *page[V] {
	if m.pages == nil {
		m.pages = make(map[uint64]*page[V])
	}
	p := m.pages[pageIndex]
	if p == nil {
		p = &page[V]{items: new([256]V)}
		m.pages[pageIndex] = p
	}
	return p
}

// Set maps every byte in [offset, offset+length) to |value|.
func (m *Map[V]) Set(offset, length uint64, value V) {
	end := offset + length
	for offset < end {
		pageIndex := offset >> pageShift
		p := m.getOrCreatePage(pageIndex)

		count := pageSize - (offset & pageMask)
		if count > (end - offset) {
			count = end - offset
		}
		if p.bm.Empty() {
			m.partPages.Set(uint(pageIndex))
		}
		p.setRange(int(offset&pageMask), int(count), value)
		offset += count

		if p.bm.Full() {
			m.fullPages.Set(uint(pageIndex))
		}
	}
}

// Get returns the value mapped at |offset|, if any.
func (m *Map[V]) Get(offset uint64) (value V, ok bool) {
	p := m.getPage(offset >> pageShift)
	if p == nil || !p.bm.Get(uint8(offset&pageMask)) {
		return
	}
	return p.items[uint8(offset)], true
}

// Begin returns the offset of the first set byte.
func (m *Map[V]) Begin() (uint64, bool) {
	return m.NextSet(0)
}

// End returns one past the offset of the last set byte, or 0 if the map is
// empty.
func (m *Map[V]) End() uint64 {
	lastPage := int(m.partPages.Len()) - 1
	for ; lastPage >= 0 && !m.partPages.Test(uint(lastPage)); lastPage-- {
	}
	if lastPage < 0 {
		return 0
	}
	p := m.getPage(uint64(lastPage))
	for i := pageSize - 1; i >= 0; i-- {
		if p.bm.Get(uint8(i)) {
			return uint64(i) + (uint64(lastPage) << pageShift) + 1
		}
	}

	// An indexed page should never be empty. If it is, the index is
	// corrupt.
	log.Panicf("pagemap: unexpected empty page %d", lastPage)
	return 0
}

// NextSet returns the offset of the first set byte at or after |offset|.
func (m *Map[V]) NextSet(offset uint64) (uint64, bool) {
	p := m.getPage(offset >> pageShift)
	if p != nil {
		next := p.bm.FindNextSet(uint8(offset & pageMask))
		if next < pageSize {
			return (offset &^ pageMask) + uint64(next), true
		}
	}

	nextPart, ok := m.partPages.NextSet(uint(offset>>pageShift) + 1)
	if !ok {
		return 0, false
	}
	p = m.getPage(uint64(nextPart))
	ffs := p.bm.FindFirstSet()
	if ffs >= pageSize {
		log.Panicf("pagemap: unexpected empty page %d", nextPart)
	}
	return (uint64(nextPart) << pageShift) + uint64(ffs), true
}

// NextUnset returns the offset of the first unset byte at or after |offset|.
// If |offset| itself is unset, returns |offset|.
func (m *Map[V]) NextUnset(offset uint64) uint64 {
	p := m.getPage(offset >> pageShift)
	if p == nil {
		return offset
	}
	next := p.bm.FindNextClear(uint8(offset & pageMask))
	if next < pageSize {
		return (offset &^ pageMask) + uint64(next)
	}

	// The rest of this page is set. Skip over fully-populated pages using
	// the index, then finish within the first non-full page.
	searchStart := uint(offset>>pageShift) + 1
	nextNonFull, ok := m.fullPages.NextClear(searchStart)
	if !ok {
		if searchStart < m.fullPages.Len() {
			nextNonFull = m.fullPages.Len()
		} else {
			nextNonFull = searchStart
		}
	}

	nextOff := uint64(nextNonFull) << pageShift
	p = m.getPage(uint64(nextNonFull))
	if p == nil {
		return nextOff
	}
	if p.bm.Full() {
		log.Panicf("pagemap: page %d full but not indexed as full", nextNonFull)
	}
	return nextOff + uint64(p.bm.FindFirstClear())
}

// IterateRuns calls |fn| for every maximal run of contiguous equal-valued
// set bytes at or after |start|, in ascending order, until fn returns false.
func (m *Map[V]) IterateRuns(start uint64, fn func(Run[V]) bool) {
	off := start
	var r Run[V]
	for {
		p := m.getPage(off >> pageShift)
		if p == nil {
			next, ok := m.NextSet(off)
			if !ok {
				break
			}
			off = next
			continue
		}

		for i := int(off & pageMask); i < pageSize; i++ {
			if !p.bm.Get(uint8(i)) {
				off++
				continue
			}
			v := p.items[i]
			if r.Length > 0 && r.Value == v && r.End() == off {
				// Extend the current run.
				r.Length++
			} else {
				if r.Length > 0 && !fn(r) {
					return
				}
				r = Run[V]{Offset: off, Length: 1, Value: v}
			}
			off++
		}
	}
	if r.Length > 0 {
		fn(r)
	}
}
