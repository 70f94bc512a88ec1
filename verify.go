package slabcache

import "github.com/pkg/errors"

// Verify walks all slabs of the cache and checks their bookkeeping: every
// slab's free list must reach exactly as many slots as its free count
// says, none of them allocated, and the slab must be in the list matching
// its free count. The lookup table must hold every slab exactly once in
// descending address order.
// On failure the returned error wraps ErrCorrupted
func (c *Cache) Verify() error {
	if err := c.ready(); err != nil {
		return err
	}

	listed := 0
	for _, l := range c.lists() {
		for pos, s := range l.slabs {
			if s.list != l.kind || s.pos != pos {
				return errors.Wrapf(ErrCorrupted, "slab %#x at %s[%d] claims to be at %s[%d]", s.addr(), l.kind, pos, s.list, s.pos)
			}
			if err := s.verify(); err != nil {
				return err
			}
			if want := s.category(); want != l.kind {
				return errors.Wrapf(ErrCorrupted, "slab %#x with %d of %d slots free is in the %s list instead of %s", s.addr(), s.freeCount(), s.capacity(), l.kind, want)
			}
			if uintptr(len(s.data)) != c.slabSize || s.stride() != c.stride || uintptr(s.capacity()) != c.capacity {
				return errors.Wrapf(ErrCorrupted, "slab %#x has a different geometry than its cache", s.addr())
			}
			listed++
		}
	}

	if listed != len(c.lookupTable) {
		return errors.Wrapf(ErrCorrupted, "%d slabs in lists but %d in the lookup table", listed, len(c.lookupTable))
	}
	for i, s := range c.lookupTable {
		if s.list == listNone {
			return errors.Wrapf(ErrCorrupted, "slab %#x is in the lookup table but in no list", s.addr())
		}
		if i > 0 && c.lookupTable[i-1].addr() <= s.addr() {
			return errors.Wrapf(ErrCorrupted, "lookup table is not sorted at position %d", i)
		}
	}

	return nil
}
