package slabcache

import "github.com/pkg/errors"

var (
	// ErrConfig indicates that no cache can be built for the requested
	// object size with the available page size.
	ErrConfig = errors.New("slabcache: unusable configuration")

	// ErrOutOfMemory indicates that the OS declined to map a new slab.
	ErrOutOfMemory = errors.New("slabcache: out of memory")

	// ErrReleaseFailed indicates that the OS failed to unmap a slab.
	ErrReleaseFailed = errors.New("slabcache: slab release failed")

	// ErrInvalidPointer indicates an address that is not the start of an
	// object slot managed by the cache.
	ErrInvalidPointer = errors.New("slabcache: invalid object address")

	// ErrDoubleRelease indicates the release of an object slot that is
	// already free.
	ErrDoubleRelease = errors.New("slabcache: object already released")

	// ErrNotAllocated indicates access to an object slot that is free.
	ErrNotAllocated = errors.New("slabcache: object not allocated")

	// ErrDestroyed indicates use of a cache after Destroy.
	ErrDestroyed = errors.New("slabcache: cache destroyed")

	// ErrNotInitialized indicates use of a cache that was not built by Create.
	ErrNotInitialized = errors.New("slabcache: cache not initialized")

	// ErrCorrupted indicates broken slab bookkeeping found by Verify.
	ErrCorrupted = errors.New("slabcache: bookkeeping corrupted")
)
