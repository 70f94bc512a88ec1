//go:build unix

package slabcache

import "golang.org/x/sys/unix"

// mapRegion maps size bytes of fresh zeroed anonymous memory
var mapRegion = func(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// unmapRegion returns a region obtained from mapRegion to the OS
var unmapRegion = func(data []byte) error {
	return unix.Munmap(data)
}

// probePageSize asks the OS for its page size
var probePageSize = func() (int, error) {
	return unix.Getpagesize(), nil
}
