package slabcache

import (
	"log/slog"
	"math"
	"sort"
	"unsafe"

	"github.com/pkg/errors"
)

// ObjAddr is a uintptr used for storing the addresses of objects in slabs
type ObjAddr = uintptr

// SlabAddr is a uintptr used for storing the memory addresses of slabs
type SlabAddr = uintptr

type cacheState uint8

const (
	stateUninitialized cacheState = iota
	stateReady
	stateDestroyed
)

// Cache hands out objects of one fixed size from slabs of memory that are
// mapped from the OS. Every slab is kept in exactly one of three lists
// depending on how many of its slots are free: empty (all of them),
// partial (some) or full (none).
//
// A Cache is not safe for concurrent use.
type Cache struct {
	stride   uintptr
	slabSize uintptr
	capacity uintptr
	zero     bool

	empty   slabList
	partial slabList
	full    slabList

	// lookupTable holds every slab of the cache. It is kept sorted by
	// slab address in descending order to find the slab owning an
	// object address with a binary search
	lookupTable []*slab

	log   *slog.Logger
	state cacheState
}

// CacheStats describes the current occupancy of a cache
type CacheStats struct {
	ObjectSize     uintptr
	SlabSize       uintptr
	ObjectsPerSlab uintptr
	EmptySlabs     int
	PartialSlabs   int
	FullSlabs      int
	Allocated      uint
}

// Create initializes a new cache for objects of the given size using the
// package-level Config
func Create(size uint16) (*Cache, error) {
	return CreateWithConfig(size, Config)
}

// CreateWithConfig initializes a new cache for objects of the given size.
// No memory is mapped until the first object is allocated.
// On failure the returned error wraps ErrConfig
func CreateWithConfig(size uint16, cfg CacheConfig) (*Cache, error) {
	if size == 0 {
		return nil, errors.Wrap(ErrConfig, "object size must be at least 1 byte")
	}
	if cfg.ObjectsPerSlabHint < 2 {
		return nil, errors.Wrapf(ErrConfig, "objects per slab hint %d is below 2", cfg.ObjectsPerSlabHint)
	}

	pageSize, err := resolvePageSize(cfg.PageSize)
	if err != nil {
		return nil, err
	}

	stride := objectStride(uintptr(size))
	if uint64(cfg.ObjectsPerSlabHint) > math.MaxUint32/uint64(stride) {
		return nil, errors.Wrapf(ErrConfig, "objects per slab hint %d is too large", cfg.ObjectsPerSlabHint)
	}

	slabSize := slabByteSize(stride, pageSize, uintptr(cfg.ObjectsPerSlabHint))
	capacity := slabCapacity(slabSize, stride)
	if capacity < 2 || uint64(capacity) >= noFreeSlot {
		return nil, errors.Wrapf(ErrConfig, "%d objects of %d bytes per slab", capacity, stride)
	}

	c := &Cache{
		stride:   stride,
		slabSize: slabSize,
		capacity: capacity,
		zero:     cfg.ZeroObjects,
		empty:    newSlabList(listEmpty),
		partial:  newSlabList(listPartial),
		full:     newSlabList(listFull),
		log:      cfg.logger(),
		state:    stateReady,
	}

	c.log.Debug("cache created",
		slog.Int("object_size", int(size)),
		slog.Uint64("stride", uint64(stride)),
		slog.Uint64("slab_size", uint64(slabSize)),
		slog.Uint64("objects_per_slab", uint64(capacity)))

	return c, nil
}

// resolvePageSize returns the configured page size if there is one,
// otherwise the process-wide OS page size
func resolvePageSize(configured int) (uintptr, error) {
	if configured == 0 {
		return osPageSize.get()
	}
	if configured < 0 {
		return 0, errors.Wrapf(ErrConfig, "negative page size %d", configured)
	}
	if err := checkPageSize(uintptr(configured)); err != nil {
		return 0, err
	}
	return uintptr(configured), nil
}

// ready returns an error if the cache can't be used
func (c *Cache) ready() error {
	switch c.state {
	case stateReady:
		return nil
	case stateDestroyed:
		return ErrDestroyed
	default:
		return ErrNotInitialized
	}
}

// Allocate takes a free object slot from the cache and returns its
// address. The object is ObjectSize bytes long and belongs to the
// caller until it is passed to Release.
// On failure the returned error wraps ErrOutOfMemory
func (c *Cache) Allocate() (ObjAddr, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}

	var s *slab
	switch {
	case c.partial.len() > 0:
		s = c.partial.head()
	case c.empty.len() > 0:
		s = c.empty.head()
	default:
		var err error
		s, err = c.addSlab()
		if err != nil {
			return 0, err
		}
	}

	idx := s.pop(c.zero)
	c.reclassify(s)

	return s.objAddr(idx), nil
}

// Release returns an object obtained from Allocate to the cache.
// The caller must not access the object afterwards.
// If the address is not the start of an object slot of this cache the
// returned error wraps ErrInvalidPointer, if the object is already free
// it wraps ErrDoubleRelease. In both cases the cache is left unchanged
func (c *Cache) Release(obj ObjAddr) error {
	if err := c.ready(); err != nil {
		return err
	}

	s, idx, err := c.locate(obj)
	if err != nil {
		return err
	}
	if !s.used.Test(uint(idx)) {
		return errors.Wrapf(ErrDoubleRelease, "object %#x", obj)
	}

	s.push(idx)
	c.reclassify(s)

	return nil
}

// Get returns the bytes of an allocated object as a byte slice
// On failure it returns an error as the second value
func (c *Cache) Get(obj ObjAddr) ([]byte, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	s, idx, err := c.locate(obj)
	if err != nil {
		return nil, err
	}
	if !s.used.Test(uint(idx)) {
		return nil, errors.Wrapf(ErrNotAllocated, "object %#x", obj)
	}

	return s.slot(idx), nil
}

// AddrOf takes an object as returned by Get and returns its address.
// An empty slice has no address, so 0 is returned for it
func AddrOf(obj []byte) ObjAddr {
	if len(obj) == 0 {
		return 0
	}
	return ObjAddr(unsafe.Pointer(&obj[0]))
}

// Destroy unmaps all slabs of the cache. Objects that have not been
// released become invalid. Unmapping continues after a failure, the
// first error that occurred is returned and wraps ErrReleaseFailed.
// The cache can't be used anymore after Destroy, even if it failed
func (c *Cache) Destroy() error {
	if err := c.ready(); err != nil {
		return err
	}

	var first error
	var released int
	for _, l := range c.lists() {
		for _, s := range l.slabs {
			addr := s.addr()
			if err := s.release(); err != nil {
				c.log.Warn("slab release failed",
					slog.Uint64("slab", uint64(addr)),
					slog.String("list", l.kind.String()),
					slog.Any("error", err))
				if first == nil {
					first = err
				}
				continue
			}
			released++
		}
		l.slabs = nil
	}

	c.lookupTable = nil
	c.state = stateDestroyed

	c.log.Debug("cache destroyed", slog.Int("slabs_released", released))

	return first
}

// ObjectSize returns the size of the objects handed out by the cache,
// which is the requested size rounded up to the pointer width
func (c *Cache) ObjectSize() uintptr {
	return c.stride
}

// Stats returns the current occupancy of the cache
func (c *Cache) Stats() CacheStats {
	stats := CacheStats{
		ObjectSize:     c.stride,
		SlabSize:       c.slabSize,
		ObjectsPerSlab: c.capacity,
		EmptySlabs:     c.empty.len(),
		PartialSlabs:   c.partial.len(),
		FullSlabs:      c.full.len(),
	}
	for _, s := range c.lookupTable {
		stats.Allocated += s.used.Count()
	}
	return stats
}

// lists returns the three slab lists in the order they are torn down
func (c *Cache) lists() []*slabList {
	return []*slabList{&c.empty, &c.partial, &c.full}
}

// list returns the slab list of the given kind
func (c *Cache) list(kind listKind) *slabList {
	switch kind {
	case listEmpty:
		return &c.empty
	case listPartial:
		return &c.partial
	case listFull:
		return &c.full
	default:
		panic("slabcache: no slab list of kind " + kind.String())
	}
}

// reclassify moves a slab into the list matching its free count
func (c *Cache) reclassify(s *slab) {
	want := s.category()
	if s.list == want {
		return
	}
	c.list(s.list).move(s, c.list(want))
}

// addSlab maps a new slab, registers it in the lookup table and puts it
// into the empty list
func (c *Cache) addSlab() (*slab, error) {
	s, err := newSlab(c.stride, c.slabSize)
	if err != nil {
		c.log.Debug("slab allocation failed", slog.Any("error", err))
		return nil, err
	}

	newSlabAddr := s.addr()

	// find the right location to insert the new slab
	// note that the lookup table must remain sorted
	insertAt := sort.Search(len(c.lookupTable), func(i int) bool { return c.lookupTable[i].addr() < newSlabAddr })
	c.lookupTable = append(c.lookupTable, nil)
	copy(c.lookupTable[insertAt+1:], c.lookupTable[insertAt:])
	c.lookupTable[insertAt] = s

	c.empty.push(s)

	c.log.Debug("slab mapped",
		slog.Uint64("slab", uint64(newSlabAddr)),
		slog.Int("slabs", len(c.lookupTable)))

	return s, nil
}

// locate finds the slab containing the given object address and the
// index of the object's slot within it.
// On failure the returned error wraps ErrInvalidPointer
func (c *Cache) locate(obj ObjAddr) (*slab, uint32, error) {
	// the first slab starting at or below the object address is the only
	// one that can contain it
	i := sort.Search(len(c.lookupTable), func(i int) bool { return c.lookupTable[i].addr() <= obj })
	if i == len(c.lookupTable) || !c.lookupTable[i].contains(obj) {
		return nil, 0, errors.Wrapf(ErrInvalidPointer, "address %#x is not managed by this cache", obj)
	}

	s := c.lookupTable[i]
	idx, err := s.slotIndex(obj)
	if err != nil {
		return nil, 0, err
	}

	return s, idx, nil
}
