// Package slabcache implements a cache for objects of one fixed size.
//
// Memory is mapped from the OS in slabs, each slab being a whole number of
// pages. A slab starts with a small header followed by equally sized
// object slots. Free slots are chained into a per-slab free list whose
// links live in the free slots themselves, so a slab needs no memory
// besides its mapping apart from one bit per slot that records which
// slots are allocated.
//
// A Cache sorts its slabs into three lists: empty slabs have no allocated
// objects, partial slabs have some and full slabs have no free slot left.
// Allocate prefers partial slabs, then empty ones, and only maps a new
// slab when neither is available. Release finds the slab owning an object
// with a binary search over all slabs ordered by address. Slabs are only
// unmapped by Destroy.
//
// A Cache is not safe for concurrent use. Use one Cache per goroutine or
// guard each Cache with a mutex.
//
//	c, err := slabcache.Create(16)
//	if err != nil {
//		return err
//	}
//	defer c.Destroy()
//
//	obj, err := c.Allocate()
//	if err != nil {
//		return err
//	}
//	buf, _ := c.Get(obj)
//	copy(buf, "hello")
//	err = c.Release(obj)
package slabcache
