// Package cache defines the key/value store used to keep introspected
// metadata (entity field lists) between lookups.
package cache

import (
	"context"
	"time"
)

// Cache is the interface for the metadata cache store.
// Keys are entity type names; values are whatever the caller stored.
type Cache interface {
	// Get loads a value from cache.
	// Returns the value and true on a hit, or nil and false on a miss or expiry.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set saves a value with TTL. A non-positive TTL uses the store default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries from cache.
	Clear(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error

	// Metrics returns cache statistics.
	Metrics() *Metrics
}

// Metrics holds cache statistics.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
