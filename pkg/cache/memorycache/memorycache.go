package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/asakaida/modelchain/pkg/cache"
)

// SizeFunc estimates the memory cost of one entry in bytes
type SizeFunc func(key string, value interface{}) int64

// DefaultSize charges a flat 100 bytes plus the key length
func DefaultSize(key string, _ interface{}) int64 {
	return int64(100 + len(key))
}

type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time // zero means no expiry
	size      int64
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is an in-process LRU cache bounded by estimated size, with optional TTL.
// Get refreshes recency, so entries read on every request are never evicted first.
type Cache struct {
	mu sync.Mutex

	items map[string]*list.Element
	order *list.List // front = most recently used

	maxSize     int64
	currentSize int64
	defaultTTL  time.Duration
	sizeOf      SizeFunc
	now         func() time.Time

	metrics *cache.Metrics
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxSizeBytes bounds the summed SizeFunc cost. Zero or less means unbounded.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a non-positive TTL.
	// Zero keeps entries until evicted.
	DefaultTTL time.Duration

	// Size estimates entry cost; DefaultSize when nil.
	Size SizeFunc

	// EnableMetrics enables hit/miss/eviction counters.
	EnableMetrics bool
}

// New creates a new memory cache with the given configuration.
func New(config *Config) (*Cache, error) {
	c := &Cache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    config.MaxSizeBytes,
		defaultTTL: config.DefaultTTL,
		sizeOf:     config.Size,
		now:        time.Now,
	}
	if c.sizeOf == nil {
		c.sizeOf = DefaultSize
	}
	if config.EnableMetrics {
		c.metrics = &cache.Metrics{}
	}
	return c, nil
}

// Get loads a value and marks it most recently used.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.countMiss()
		return nil, false
	}

	ent := elem.Value.(*entry)
	if ent.expired(c.now()) {
		c.remove(elem)
		c.countMiss()
		return nil, false
	}

	c.order.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.Hits++
	}
	return ent.value, true
}

// Set saves a value, evicting least recently used entries while over capacity.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	size := c.sizeOf(key, value)

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		c.currentSize += size - ent.size
		ent.value, ent.expiresAt, ent.size = value, expiresAt, size
		c.order.MoveToFront(elem)
	} else {
		c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt, size: size})
		c.currentSize += size
		if c.metrics != nil {
			c.metrics.KeysAdded++
		}
	}

	for c.maxSize > 0 && c.currentSize > c.maxSize && c.order.Len() > 1 {
		c.remove(c.order.Back())
		if c.metrics != nil {
			c.metrics.KeysEvicted++
		}
	}

	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.currentSize = 0
	return nil
}

// Close releases resources (no-op for memory cache).
func (c *Cache) Close() error {
	return nil
}

// Metrics returns a snapshot of cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metrics == nil {
		return &cache.Metrics{}
	}
	snapshot := *c.metrics
	return &snapshot
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Size returns the current estimated size in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// remove must be called with c.mu held.
func (c *Cache) remove(elem *list.Element) {
	ent := c.order.Remove(elem).(*entry)
	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

func (c *Cache) countMiss() {
	if c.metrics != nil {
		c.metrics.Misses++
	}
}

var _ cache.Cache = (*Cache)(nil)
