package slabcache

import (
	"io"
	"log/slog"
)

// Config provides a CacheConfig with default settings.
var Config = NewConfig()

// CacheConfig is used by Create when setting up a new cache.
type CacheConfig struct {
	// ObjectsPerSlabHint seeds the slab size: a slab is at least large
	// enough for this many objects plus the header, rounded up to whole
	// pages. The real number of objects per slab is derived from the
	// rounded slab size afterwards.
	ObjectsPerSlabHint uint

	// PageSize overrides the OS page size when non-zero. It must be a
	// power of two.
	PageSize int

	// ZeroObjects clears an object's bytes before it is handed out.
	ZeroObjects bool

	// Logger receives slab lifecycle events. Nil discards them.
	Logger *slog.Logger
}

// NewConfig returns a new cache configuration with default settings.
func NewConfig() CacheConfig {
	return CacheConfig{
		ObjectsPerSlabHint: 8,
		ZeroObjects:        true,
	}
}

// logger returns the configured logger or one that discards everything
func (c CacheConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
