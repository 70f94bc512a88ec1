package slabcache

import "unsafe"

// pointerWidth is the alignment every object stride is rounded up to
const pointerWidth = unsafe.Sizeof(uintptr(0))

// headerSize is the number of bytes at the start of each slab that are
// occupied by the slab header
const headerSize = unsafe.Sizeof(slabHeader{})

// align returns the smallest multiple of boundary that is >= value.
// boundary must be a power of two
func align(value, boundary uintptr) uintptr {
	return (value + boundary - 1) &^ (boundary - 1)
}

// isPowerOfTwo reports whether v is a power of two
func isPowerOfTwo(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

// objectStride returns the size of one object slot for objects of the
// requested size
func objectStride(size uintptr) uintptr {
	return align(size, pointerWidth)
}

// slabByteSize returns the size of a slab for the given stride. The hint
// only seeds a minimum size, the number of slots a slab really holds is
// computed from the result by slabCapacity
func slabByteSize(stride, pageSize, hint uintptr) uintptr {
	return align(headerSize+stride*hint, pageSize)
}

// slabCapacity returns how many slots of the given stride fit into a slab
// of slabSize bytes after the header
func slabCapacity(slabSize, stride uintptr) uintptr {
	return (slabSize - headerSize) / stride
}
