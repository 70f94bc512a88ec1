package slabcache

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/willf/bitset"
)

// noFreeSlot terminates the free list of a slab
const noFreeSlot = math.MaxUint32

// slabHeader occupies the first headerSize bytes of every slab mapping.
// The object slots follow directly after it
type slabHeader struct {
	stride    uint32
	capacity  uint32
	freeCount uint32
	freeHead  uint32
}

// slab is one mapped memory region divided into object slots of equal
// size. Free slots are chained through their first 4 bytes, which hold
// the index of the next free slot. Those bytes belong to the caller as
// soon as the slot is allocated, so the allocator keeps the allocated
// state of every slot in the used bitset instead of inside the slot
type slab struct {
	data []byte
	used *bitset.BitSet

	// list is the kind of cache list this slab is in and pos is its
	// position inside that list
	list listKind
	pos  int
}

// newSlab maps a new slab of size bytes holding objects of the given
// stride and chains all of its slots into the free list.
// On failure the returned error wraps ErrOutOfMemory
func newSlab(stride, size uintptr) (*slab, error) {
	data, err := mapRegion(int(size))
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "mapping slab of %d bytes: %v", size, err)
	}

	capacity := slabCapacity(size, stride)
	s := &slab{
		data: data,
		used: bitset.New(uint(capacity)),
		pos:  -1,
	}

	h := s.header()
	h.stride = uint32(stride)
	h.capacity = uint32(capacity)
	s.initFreeList()

	return s, nil
}

// initFreeList links slot i to slot i+1 for every slot but the last one,
// which terminates the list
func (s *slab) initFreeList() {
	h := s.header()
	last := h.capacity - 1
	for i := uint32(0); i < last; i++ {
		s.setNext(i, i+1)
	}
	s.setNext(last, noFreeSlot)

	h.freeHead = 0
	h.freeCount = h.capacity
}

// release returns the slab's memory to the OS. The slab must not be used
// afterwards, even if unmapping failed
func (s *slab) release() error {
	data := s.data
	s.data = nil
	if err := unmapRegion(data); err != nil {
		return errors.Wrapf(ErrReleaseFailed, "unmapping slab of %d bytes: %v", len(data), err)
	}
	return nil
}

// header returns the header at the start of the slab's mapping
func (s *slab) header() *slabHeader {
	return (*slabHeader)(unsafe.Pointer(&s.data[0]))
}

// addr returns the address of the slab's first byte
func (s *slab) addr() SlabAddr {
	return SlabAddr(unsafe.Pointer(&s.data[0]))
}

// contains reports whether the address lies within the slab's mapping
func (s *slab) contains(addr uintptr) bool {
	base := s.addr()
	return addr >= base && addr < base+uintptr(len(s.data))
}

func (s *slab) stride() uintptr {
	return uintptr(s.header().stride)
}

func (s *slab) capacity() uint32 {
	return s.header().capacity
}

func (s *slab) freeCount() uint32 {
	return s.header().freeCount
}

// category returns the list a slab with its current free count belongs to
func (s *slab) category() listKind {
	h := s.header()
	switch h.freeCount {
	case h.capacity:
		return listEmpty
	case 0:
		return listFull
	default:
		return listPartial
	}
}

// offset returns the offset of the slot at idx from the slab start
func (s *slab) offset(idx uint32) uintptr {
	return headerSize + uintptr(idx)*s.stride()
}

// slot returns the bytes of the slot at idx
func (s *slab) slot(idx uint32) []byte {
	off := s.offset(idx)
	end := off + s.stride()
	return s.data[off:end:end]
}

// objAddr returns the address of the slot at idx
func (s *slab) objAddr(idx uint32) ObjAddr {
	return s.addr() + s.offset(idx)
}

// next reads the free list link stored in the free slot at idx
func (s *slab) next(idx uint32) uint32 {
	return binary.NativeEndian.Uint32(s.data[s.offset(idx):])
}

// setNext stores a free list link in the free slot at idx
func (s *slab) setNext(idx, next uint32) {
	binary.NativeEndian.PutUint32(s.data[s.offset(idx):], next)
}

// pop takes the first slot off the free list and marks it as used.
// The slab must have at least one free slot
func (s *slab) pop(zero bool) uint32 {
	h := s.header()
	idx := h.freeHead
	h.freeHead = s.next(idx)
	h.freeCount--
	s.used.Set(uint(idx))

	if zero {
		clear(s.slot(idx))
	}

	return idx
}

// push puts the used slot at idx back onto the free list
func (s *slab) push(idx uint32) {
	h := s.header()
	s.used.Clear(uint(idx))
	s.setNext(idx, h.freeHead)
	h.freeHead = idx
	h.freeCount++
}

// slotIndex takes an object address within this slab and returns the
// index of the slot starting at it.
// On failure the returned error wraps ErrInvalidPointer
func (s *slab) slotIndex(obj ObjAddr) (uint32, error) {
	off := obj - s.addr()
	if off < headerSize {
		return 0, errors.Wrapf(ErrInvalidPointer, "address %#x points into the header of slab %#x", obj, s.addr())
	}

	rel := off - headerSize
	stride := s.stride()
	if rel%stride != 0 {
		return 0, errors.Wrapf(ErrInvalidPointer, "address %#x is not at a slot boundary of slab %#x", obj, s.addr())
	}

	idx := rel / stride
	if idx >= uintptr(s.capacity()) {
		return 0, errors.Wrapf(ErrInvalidPointer, "address %#x is beyond the last slot of slab %#x", obj, s.addr())
	}

	return uint32(idx), nil
}

// verify checks that the free list and the used bitset agree with the
// header's free count.
// On failure the returned error wraps ErrCorrupted
func (s *slab) verify() error {
	h := s.header()
	if h.freeCount > h.capacity {
		return errors.Wrapf(ErrCorrupted, "slab %#x: free count %d exceeds capacity %d", s.addr(), h.freeCount, h.capacity)
	}

	seen := bitset.New(uint(h.capacity))
	var reachable uint32
	for idx := h.freeHead; idx != noFreeSlot; idx = s.next(idx) {
		if idx >= h.capacity {
			return errors.Wrapf(ErrCorrupted, "slab %#x: free list links to slot %d of %d", s.addr(), idx, h.capacity)
		}
		if seen.Test(uint(idx)) {
			return errors.Wrapf(ErrCorrupted, "slab %#x: free list loops at slot %d", s.addr(), idx)
		}
		// the bytes of an allocated slot belong to the caller, so the
		// chain must not be followed through it
		if s.used.Test(uint(idx)) {
			return errors.Wrapf(ErrCorrupted, "slab %#x: allocated slot %d is on the free list", s.addr(), idx)
		}
		seen.Set(uint(idx))
		reachable++
	}

	if reachable != h.freeCount {
		return errors.Wrapf(ErrCorrupted, "slab %#x: %d slots reachable from free list, free count is %d", s.addr(), reachable, h.freeCount)
	}
	if used := s.used.Count(); used+uint(h.freeCount) != uint(h.capacity) {
		return errors.Wrapf(ErrCorrupted, "slab %#x: %d used and %d free slots don't add up to capacity %d", s.addr(), used, h.freeCount, h.capacity)
	}

	return nil
}

// String creates a multi-line string which illustrates the slab in a
// human-readable format
func (s *slab) String() string {
	var b strings.Builder
	h := s.header()

	fmt.Fprintf(&b, "-------------------------------\n")
	fmt.Fprintf(&b, "Slab Addr: %#x\n", s.addr())
	fmt.Fprintf(&b, "Slab Size: %d\n", len(s.data))
	fmt.Fprintf(&b, "Object Size: %d\n", h.stride)
	fmt.Fprintf(&b, "Objects Per Slab: %d\n", h.capacity)
	fmt.Fprintf(&b, "Free Objects: %d\n", h.freeCount)
	fmt.Fprintf(&b, "List: %s\n", s.list)

	bitSetBytes := s.used.Bytes()
	for i := 0; i < len(bitSetBytes); i++ {
		fmt.Fprintf(&b, "used[%d]: %064b\n", i, bitSetBytes[i])
	}

	fmt.Fprintf(&b, "Free List:")
	for idx, n := h.freeHead, uint32(0); idx < h.capacity && n < h.freeCount; idx, n = s.next(idx), n+1 {
		fmt.Fprintf(&b, " %d", idx)
	}
	fmt.Fprintf(&b, "\n")

	return b.String()
}
