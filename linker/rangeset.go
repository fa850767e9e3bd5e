package linker

import "sort"

// span is an inclusive byte range.
type span struct {
	lo, hi int
}

// rangeSet is a union of disjoint inclusive ranges kept sorted by lo. Touching ranges are merged, so the slice stays
// as short as the number of separately visited regions.
type rangeSet struct {
	spans []span
}

// search returns the index of the first span whose hi is at least pos-1, which is the first span that could contain
// or touch pos.
func (s *rangeSet) search(pos int) int {
	return sort.Search(len(s.spans), func(i int) bool { return s.spans[i].hi >= pos-1 })
}

// Contains is true when pos was inserted.
func (s *rangeSet) Contains(pos int) bool {
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].hi >= pos })
	return i < len(s.spans) && s.spans[i].lo <= pos
}

// Insert adds [lo, hi]. It is a no-op when hi < lo.
func (s *rangeSet) Insert(lo, hi int) {
	if hi < lo {
		return
	}
	i := s.search(lo)
	j := i
	for j < len(s.spans) && s.spans[j].lo <= hi+1 {
		if s.spans[j].lo < lo {
			lo = s.spans[j].lo
		}
		if s.spans[j].hi > hi {
			hi = s.spans[j].hi
		}
		j++
	}
	if i == j {
		s.spans = append(s.spans, span{})
		copy(s.spans[i+1:], s.spans[i:])
		s.spans[i] = span{lo, hi}
		return
	}
	s.spans[i] = span{lo, hi}
	s.spans = append(s.spans[:i+1], s.spans[j:]...)
}

// Len is the count of disjoint ranges.
func (s *rangeSet) Len() int {
	return len(s.spans)
}

// Size is the count of positions covered.
func (s *rangeSet) Size() int {
	n := 0
	for _, sp := range s.spans {
		n += sp.hi - sp.lo + 1
	}
	return n
}
