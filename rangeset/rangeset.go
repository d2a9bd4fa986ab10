// Package rangeset implements a disjoint, non-adjacent set of half-open
// u64 ranges, used for AckSpans, SendWindow's acks/retransmits, and
// RecvWindow's received-offsets bookkeeping (spec §3, §4.10).
//
// The reference implementation (original_source/rrdt-lib/src/utils/
// range_set.rs) backs this with a BTreeMap keyed by range start. No
// ordered-map or interval-tree library appears anywhere in the example
// corpus, so this is implemented directly on a sorted slice with binary
// search via the standard library's sort package (see DESIGN.md).
package rangeset

import "sort"

// Range is a half-open interval [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

// Len reports the number of elements in the range.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether the range contains no elements.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Set is a disjoint, non-adjacent, sorted collection of Ranges.
//
// Invariant: for i < j, ranges[i].End < ranges[j].Start (strictly: not
// overlapping and not touching; adjacent ranges are merged on Insert).
type Set struct {
	ranges []Range
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

// Len returns the number of disjoint ranges currently stored.
func (s *Set) Len() int {
	return len(s.ranges)
}

// Empty reports whether the set stores no ranges.
func (s *Set) Empty() bool {
	return len(s.ranges) == 0
}

// Ranges returns the stored ranges in ascending order. The returned slice
// must not be mutated by the caller.
func (s *Set) Ranges() []Range {
	return s.ranges
}

// search returns the index of the first range whose End is >= v, i.e. the
// first range that could possibly contain or follow v.
func (s *Set) search(v uint64) int {
	return sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End >= v
	})
}

// Insert adds r to the set, merging it with any overlapping or adjacent
// existing ranges.
func (s *Set) Insert(r Range) {
	if r.Empty() {
		return
	}
	i := s.search(r.Start)
	j := i
	for j < len(s.ranges) && s.ranges[j].Start <= r.End {
		if s.ranges[j].Start < r.Start {
			r.Start = s.ranges[j].Start
		}
		if s.ranges[j].End > r.End {
			r.End = s.ranges[j].End
		}
		j++
	}
	merged := append([]Range{}, s.ranges[:i]...)
	merged = append(merged, r)
	merged = append(merged, s.ranges[j:]...)
	s.ranges = merged
}

// InsertOne adds the single element v.
func (s *Set) InsertOne(v uint64) {
	s.Insert(Range{Start: v, End: v + 1})
}

// Remove deletes every element of r from the set, splitting ranges as
// needed.
func (s *Set) Remove(r Range) {
	if r.Empty() || len(s.ranges) == 0 {
		return
	}
	out := make([]Range, 0, len(s.ranges)+1)
	for _, existing := range s.ranges {
		if existing.End <= r.Start || existing.Start >= r.End {
			out = append(out, existing)
			continue
		}
		if existing.Start < r.Start {
			out = append(out, Range{Start: existing.Start, End: r.Start})
		}
		if existing.End > r.End {
			out = append(out, Range{Start: r.End, End: existing.End})
		}
	}
	s.ranges = out
}

// RemoveOne deletes the single element v.
func (s *Set) RemoveOne(v uint64) {
	s.Remove(Range{Start: v, End: v + 1})
}

// Contains reports whether v is a member of the set.
func (s *Set) Contains(v uint64) bool {
	i := s.search(v)
	return i < len(s.ranges) && s.ranges[i].Start <= v && v < s.ranges[i].End
}

// ContainsRange reports whether r lies entirely inside a single stored
// range (used by SendWindow.ack to detect "already treated as lost").
func (s *Set) ContainsRange(r Range) bool {
	if r.Empty() {
		return false
	}
	i := s.search(r.Start)
	if i >= len(s.ranges) {
		return false
	}
	return s.ranges[i].Start <= r.Start && s.ranges[i].End >= r.End
}

// Smallest returns the lowest-start range in the set.
func (s *Set) Smallest() (Range, bool) {
	if len(s.ranges) == 0 {
		return Range{}, false
	}
	return s.ranges[0], true
}

// PopSmallest removes and returns the lowest-start range.
func (s *Set) PopSmallest() (Range, bool) {
	r, ok := s.Smallest()
	if !ok {
		return Range{}, false
	}
	s.ranges = s.ranges[1:]
	return r, true
}

// SmallestStartingAt returns the smallest range if and only if it starts
// exactly at v, used by RecvWindow.read and SendWindow's retransmit drain.
func (s *Set) SmallestStartingAt(v uint64) (Range, bool) {
	r, ok := s.Smallest()
	if !ok || r.Start != v {
		return Range{}, false
	}
	return r, true
}
