// Package cache provides key-value caching for header probes and other
// derived data that is expensive to recompute across runs.
//
// Two backends are provided: [FileCache] for CLI and server use, and
// [NullCache] when caching is disabled. Keys are produced by a [Keyer] so the
// key layout stays in one place.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TTLs for cached data.
const (
	// TTLDimensions is how long a header probe result is trusted. Entries are
	// keyed by size and modification time, so staleness only wastes space.
	TTLDimensions = 30 * 24 * time.Hour
)

// Cache is a byte-oriented key-value store with expiration.
type Cache interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// DimensionsKey identifies the probed dimensions of a file version.
	DimensionsKey(path string, size int64, modTime time.Time) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard key layout.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// DimensionsKey hashes the file identity so keys are safe filenames. The
// format is "dims:<sha256 hex>".
func (DefaultKeyer) DimensionsKey(path string, size int64, modTime time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%d", path, size, modTime.UnixNano()))
	return "dims:" + hex.EncodeToString(sum[:])
}

// ScopedKeyer wraps a Keyer with a prefix, isolating batches or tenants that
// share one cache directory.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// DimensionsKey generates a prefixed key.
func (k *ScopedKeyer) DimensionsKey(path string, size int64, modTime time.Time) string {
	return k.prefix + k.inner.DimensionsKey(path, size, modTime)
}

func (k *ScopedKeyer) String() string {
	return fmt.Sprintf("scoped(%s)", k.prefix)
}
