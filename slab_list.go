package slabcache

// listKind names the cache list a slab is kept in
type listKind uint8

const (
	listNone listKind = iota
	listEmpty
	listPartial
	listFull
)

func (k listKind) String() string {
	switch k {
	case listEmpty:
		return "empty"
	case listPartial:
		return "partial"
	case listFull:
		return "full"
	default:
		return "none"
	}
}

// slabList is an unordered set of slabs that all share one occupancy
// category. Every slab knows its own position in the list, so pushing,
// removing and taking the head are all O(1)
type slabList struct {
	kind  listKind
	slabs []*slab
}

func newSlabList(kind listKind) slabList {
	return slabList{kind: kind}
}

func (l *slabList) len() int {
	return len(l.slabs)
}

// head returns the most recently pushed slab, or nil if the list is empty
func (l *slabList) head() *slab {
	if len(l.slabs) == 0 {
		return nil
	}
	return l.slabs[len(l.slabs)-1]
}

// push adds a slab that is currently in no list
func (l *slabList) push(s *slab) {
	if s.list != listNone {
		panic("slabcache: pushing slab that is still in the " + s.list.String() + " list")
	}
	s.list = l.kind
	s.pos = len(l.slabs)
	l.slabs = append(l.slabs, s)
}

// remove takes a slab out of this list by moving the last slab into its
// position
func (l *slabList) remove(s *slab) {
	if s.list != l.kind || s.pos < 0 || s.pos >= len(l.slabs) || l.slabs[s.pos] != s {
		panic("slabcache: removing slab that is not in the " + l.kind.String() + " list")
	}

	last := len(l.slabs) - 1
	moved := l.slabs[last]
	l.slabs[s.pos] = moved
	moved.pos = s.pos
	l.slabs[last] = nil
	l.slabs = l.slabs[:last]

	s.list = listNone
	s.pos = -1
}

// move transfers a slab from this list to another one
func (l *slabList) move(s *slab, to *slabList) {
	l.remove(s)
	to.push(s)
}
