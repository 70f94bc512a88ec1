package slabcache

import (
	"sync"

	"github.com/pkg/errors"
)

// osPageSize is the process-wide page size. It is probed by the first
// successful Create that does not configure a page size explicitly and
// reused by every later one.
var osPageSize = &pageSizeGate{}

type pageSizeGate struct {
	mu   sync.Mutex
	size uintptr
}

// get returns the cached page size, probing the OS on first use.
// A failed probe is not cached, so the next call probes again.
func (g *pageSizeGate) get() (uintptr, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.size != 0 {
		return g.size, nil
	}

	size, err := probePageSize()
	if err != nil {
		return 0, errors.Wrapf(ErrConfig, "page size probe: %v", err)
	}
	if err := checkPageSize(uintptr(size)); err != nil {
		return 0, err
	}

	g.size = uintptr(size)
	return g.size, nil
}

// reset forgets the cached page size
func (g *pageSizeGate) reset() {
	g.mu.Lock()
	g.size = 0
	g.mu.Unlock()
}

// checkPageSize rejects page sizes that the size arithmetic can't use
// or that could never hold the header plus a single object
func checkPageSize(size uintptr) error {
	if !isPowerOfTwo(size) {
		return errors.Wrapf(ErrConfig, "page size %d is not a power of two", size)
	}
	if size < objectStride(1) {
		return errors.Wrapf(ErrConfig, "page size %d is smaller than the minimum object stride %d", size, objectStride(1))
	}
	return nil
}
