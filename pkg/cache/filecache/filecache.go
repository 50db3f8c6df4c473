// Package filecache persists cache entries as msgpack files, one per key,
// so introspected field lists survive process restarts.
package filecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/asakaida/modelchain/pkg/cache"
	"github.com/vmihailenco/msgpack/v5"
)

// Extension is the file suffix of every cache entry
const Extension = ".dat"

// Config holds configuration for the file cache.
type Config struct {
	// Dir is created on New when missing.
	Dir string

	// DefaultTTL applies when Set is called with a non-positive TTL.
	// Zero keeps entries until deleted.
	DefaultTTL time.Duration

	// NewValue returns a pointer to decode a stored payload into, e.g.
	// func() interface{} { return new([]*entities.FieldMeta) }.
	// Get returns the pointed-to value. Required.
	NewValue func() interface{}

	// EnableMetrics enables hit/miss counters.
	EnableMetrics bool
}

type envelope struct {
	ExpiresAt time.Time   `msgpack:"expires_at"`
	Payload   interface{} `msgpack:"payload"`
}

type rawEnvelope struct {
	ExpiresAt time.Time          `msgpack:"expires_at"`
	Payload   msgpack.RawMessage `msgpack:"payload"`
}

// Cache stores each key in <Dir>/<key>.dat
type Cache struct {
	dir        string
	defaultTTL time.Duration
	newValue   func() interface{}
	now        func() time.Time

	mu      sync.Mutex
	metrics *cache.Metrics
}

// New creates a file cache rooted at config.Dir.
func New(config *Config) (*Cache, error) {
	if config.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if config.NewValue == nil {
		return nil, errors.New("value constructor is required")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:        config.Dir,
		defaultTTL: config.DefaultTTL,
		newValue:   config.NewValue,
		now:        time.Now,
	}
	if config.EnableMetrics {
		c.metrics = &cache.Metrics{}
	}
	return c, nil
}

// Get decodes the entry for key. Unreadable or expired files count as misses.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	path, err := c.path(key)
	if err != nil {
		c.record(false)
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.record(false)
		return nil, false
	}

	var env rawEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		c.record(false)
		return nil, false
	}
	if !env.ExpiresAt.IsZero() && c.now().After(env.ExpiresAt) {
		os.Remove(path)
		c.record(false)
		return nil, false
	}

	target := c.newValue()
	if err := msgpack.Unmarshal(env.Payload, target); err != nil {
		c.record(false)
		return nil, false
	}

	c.record(true)
	return reflect.ValueOf(target).Elem().Interface(), true
}

// Set encodes value and replaces the entry file atomically.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	env := envelope{Payload: value}
	if ttl > 0 {
		env.ExpiresAt = c.now().Add(ttl).UTC()
	}

	data, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	if c.metrics != nil {
		c.mu.Lock()
		c.metrics.KeysAdded++
		c.mu.Unlock()
	}
	return nil
}

// Delete removes the entry file for key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// Clear removes every entry file in the cache directory.
func (c *Cache) Clear(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+Extension))
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear cache entry %s: %w", m, err)
		}
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
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

func (c *Cache) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid cache key: %q", key)
	}
	return filepath.Join(c.dir, key+Extension), nil
}

func (c *Cache) record(hit bool) {
	if c.metrics == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.metrics.Hits++
	} else {
		c.metrics.Misses++
	}
}

var _ cache.Cache = (*Cache)(nil)
