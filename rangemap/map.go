// Package rangemap provides a compact map from byte offsets to values,
// covering a fixed-size address space. Rather than storing a value for every
// byte, runs of adjacent bytes sharing a value are stored as a single
// segment, so the cost of the map is proportional to the number of distinct
// runs rather than the size of the space.
//
// Segments are split as necessary (e.g. when [0, 5) is first associated with
// X, and then [1, 2) is mutated), and adjacent equal-valued segments are
// opportunistically re-merged. Callers MUST NOT depend on whether a run is
// coalesced into one segment or several, even though this is observable
// through the iteration APIs.
//
// A Map is not safe for concurrent use.
package rangemap

import (
	"log"
	"slices"
)

// Range is a contiguous byte range [Offset, Offset+Length).
type Range struct {
	Offset, Length uint64
}

func (r Range) End() uint64 {
	return r.Offset + r.Length
}

func (r Range) Contains(off uint64) bool {
	return off >= r.Offset && off < (r.Offset+r.Length)
}

// Initial merge attempt budget for a single IterMut call. Misses (runs of
// length one) decrement it, successful merges credit it with the number of
// segments removed. Scanning for the window extent continues after the
// budget is exhausted, but no further merging is attempted, so adversarially
// alternating values can't turn the extent scan into anything worse.
const mergeBudget = 3

type segment[V any] struct {
	// Covered range [start, end). Never empty.
	start, end uint64
	data       V
}

// Map tracks one value of type V for every byte of a fixed-size address
// space [0, size). Internally it is an ordered slice of non-overlapping,
// non-empty segments that exactly tile the space.
type Map[V comparable] struct {
	segs []segment[V]
	size uint64
}

// New returns a Map covering [0, size), with every byte mapped to init.
// A size of 0 is valid and produces a map with no segments (and no valid
// offsets).
func New[V comparable](size uint64, init V) *Map[V] {
	m := &Map[V]{size: size}
	if size > 0 {
		m.segs = append(m.segs, segment[V]{start: 0, end: size, data: init})
	}
	return m
}

// Size returns the size of the tracked address space, in bytes.
func (m *Map[V]) Size() uint64 {
	return m.size
}

// SegmentCount returns the number of stored segments. Exposed for stats and
// tests; callers must not rely on any particular count (see package doc).
func (m *Map[V]) SegmentCount() int {
	return len(m.segs)
}

func (m *Map[V]) checkRange(offset, length uint64) {
	end := offset + length
	if end < offset || end > m.size {
		log.Panicf("rangemap: range [%d, %d) outside space [0, %d)",
			offset, end, m.size)
	}
}

// findOffset returns the index of the segment containing |offset|.
// |offset| MUST be less than Size().
func (m *Map[V]) findOffset(offset uint64) int {
	// Binary search. The tiling invariant guarantees exactly one segment
	// contains any in-bounds offset.
	left := 0            // inclusive
	right := len(m.segs) // exclusive
	for {
		if debugChecks && left >= right {
			log.Panicf("rangemap: findOffset(%d) out of bounds", offset)
		}
		candidate := (left + right) / 2
		seg := &m.segs[candidate]
		if offset < seg.start {
			// Too far right, offset is further left.
			right = candidate
		} else if offset >= seg.end {
			// Too far left, offset is further right.
			left = candidate + 1
		} else {
			return candidate
		}
	}
}

// Get returns the value mapped at |offset|, which MUST be less than Size().
func (m *Map[V]) Get(offset uint64) V {
	if debugChecks {
		m.checkRange(offset, 1)
	}
	return m.segs[m.findOffset(offset)].data
}

// splitAt splits the segment at |index| such that the second half starts at
// |splitOffset|, copying the value into both halves. Does nothing if a
// segment boundary already falls there. Returns whether a split happened.
func (m *Map[V]) splitAt(index int, splitOffset uint64) bool {
	seg := &m.segs[index]
	if splitOffset == seg.start || splitOffset == seg.end {
		return false
	}
	if debugChecks && (splitOffset < seg.start || splitOffset > seg.end) {
		log.Panicf("rangemap: split offset %d outside segment [%d, %d)",
			splitOffset, seg.start, seg.end)
	}

	second := segment[V]{start: splitOffset, end: seg.end, data: seg.data}
	seg.end = splitOffset
	m.segs = slices.Insert(m.segs, index+1, second)
	return true
}

// Iter calls |fn| for every segment intersecting [offset, offset+length), in
// ascending range order, until fn returns false. Segments that only
// partially overlap the queried range are yielded whole, with their full
// Range. Iter never modifies the map, so repeated calls over the same range
// are cheap.
//
// A length of 0 yields nothing, for any offset up to and including Size().
// Otherwise the range MUST lie within [0, Size()).
func (m *Map[V]) Iter(offset, length uint64, fn func(r Range, v V) bool) {
	if length == 0 {
		// Don't even yield the segment surrounding this position.
		return
	}
	if debugChecks {
		m.checkRange(offset, length)
	}
	end := offset + length
	for i := m.findOffset(offset); i < len(m.segs); i++ {
		seg := &m.segs[i]
		if seg.start >= end {
			break
		}
		if !fn(Range{Offset: seg.start, Length: seg.end - seg.start}, seg.data) {
			return
		}
	}
}

// IterMut calls |fn| with a pointer to the stored value of every segment in
// [offset, offset+length), until fn returns false. As a side effect,
// segments only partially covered by the range are first split at the range
// boundaries, so every yielded segment lies entirely within the range and
// mutating its value cannot leak outside it.
//
// IterMut also opportunistically merges adjacent equal-valued segments
// within the range, to stop the map growing without bound when a caller
// repeatedly writes the same value over many small sub-ranges. Merging is
// budgeted (see mergeBudget) and happens before fn is first called, so
// stopping iteration early never leaves the map inconsistent.
//
// A length of 0 yields nothing and performs no splitting or merging.
// Otherwise the range MUST lie within [0, Size()).
func (m *Map[V]) IterMut(offset, length uint64, fn func(r Range, v *V) bool) {
	if length == 0 {
		return
	}
	if debugChecks {
		m.checkRange(offset, length)
	}
	end := offset + length

	// Make sure we have a clean beginning.
	first := m.findOffset(offset)
	if m.splitAt(first, offset) {
		// The newly created second half is ours.
		first++
	}

	// Find the end of the affected run. This is a linear scan, but the
	// iteration below is doing the same linear scan anyway, so the overall
	// complexity is unchanged. The scan doubles as a merge pass over runs
	// of equal-valued segments.
	budget := mergeBudget
	runStart := first
	i := first
	for {
		// Whether segs[i] is the last segment we need to look at. It can't
		// need a split at |end| yet; that happens below, after the scan.
		done := m.segs[i].end >= end
		// segs[i] is definitely included, so move past it.
		i++
		if debugChecks && !done && i >= len(m.segs) {
			log.Panicf("rangemap: scan for end offset %d ran past %d segments",
				end, len(m.segs))
		}
		if budget > 0 {
			if done || m.segs[i].data != m.segs[runStart].data {
				// Close the run [runStart, i). Everything in it is equal;
				// collapse it into a single segment if it has more than one.
				removed := i - runStart - 1
				if removed > 0 {
					m.segs[runStart].end = m.segs[i-1].end
					m.segs = slices.Delete(m.segs, runStart+1, i)
					i -= removed
					budget += removed
				} else {
					budget--
				}
				runStart = i
			}
		}
		if done {
			break
		}
	}
	last := i - 1

	// Make sure we have a clean end as well. Even if this splits, we only
	// care about the first half, so |last| needs no adjustment.
	m.splitAt(last, end)

	for j := first; j <= last; j++ {
		seg := &m.segs[j]
		if !fn(Range{Offset: seg.start, Length: seg.end - seg.start}, &seg.data) {
			return
		}
	}
}

// IterMutAll calls |fn| with a pointer to every stored value, in ascending
// range order, until fn returns false. No locating, splitting or merging is
// performed.
func (m *Map[V]) IterMutAll(fn func(v *V) bool) {
	for i := range m.segs {
		if !fn(&m.segs[i].data) {
			return
		}
	}
}
