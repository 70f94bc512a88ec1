//go:build !unix

package slabcache

import "github.com/pkg/errors"

var errNoMmap = errors.New("anonymous memory mappings are not supported on this platform")

// mapRegion maps size bytes of fresh zeroed anonymous memory
var mapRegion = func(size int) ([]byte, error) {
	return nil, errNoMmap
}

// unmapRegion returns a region obtained from mapRegion to the OS
var unmapRegion = func(data []byte) error {
	return errNoMmap
}

// probePageSize always fails so that Create reports ErrConfig
// instead of handing out a cache that can never map a slab
var probePageSize = func() (int, error) {
	return 0, errNoMmap
}
