package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/asakaida/modelchain/pkg/cache"
	"github.com/asakaida/modelchain/pkg/cache/memorycache"
)

// Recorder receives the data-access events emitted by the schema service and
// the relation resolver.
type Recorder interface {
	RecordQuery(table string, durationSeconds float64, failed bool)
	RecordFieldCache(entity string, hit bool)
}

// Recorders fans every event out to each member.
type Recorders []Recorder

// RecordQuery implements Recorder.
func (rs Recorders) RecordQuery(table string, durationSeconds float64, failed bool) {
	for _, r := range rs {
		if r != nil {
			r.RecordQuery(table, durationSeconds, failed)
		}
	}
}

// RecordFieldCache implements Recorder.
func (rs Recorders) RecordFieldCache(entity string, hit bool) {
	for _, r := range rs {
		if r != nil {
			r.RecordFieldCache(entity, hit)
		}
	}
}

// Collector collects and aggregates metrics for the application.
type Collector struct {
	// API metrics
	apiRequests sync.Map // map[string]*uint64 - method -> count
	apiErrors   sync.Map // map[string]*uint64 - method -> error count
	apiDuration sync.Map // map[string]*durationValue - method -> total duration in seconds

	// Query metrics, keyed by table
	queries       sync.Map // map[string]*uint64
	queryErrors   sync.Map // map[string]*uint64
	queryDuration sync.Map // map[string]*durationValue

	// Field-list lookups answered by the cache store vs. introspection
	fieldCacheHits   uint64
	fieldCacheMisses uint64

	// Cache reference (optional, for querying cache-specific metrics)
	cache cache.Cache
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

func (d *durationValue) add(seconds float64) {
	d.mu.Lock()
	d.totalSeconds += seconds
	d.mu.Unlock()
}

func (d *durationValue) load() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalSeconds
}

// CacheMetrics holds field-list cache metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	MemoryBytes int64
	Evictions   uint64
}

// APIMetrics holds API request metrics.
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// QueryMetrics holds executed query metrics per table.
type QueryMetrics struct {
	QueryCounts          map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the cache instance for collecting cache metrics.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordRequest records an API request.
func (c *Collector) RecordRequest(method string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.apiRequests, method), 1)
}

// RecordError records an API error.
func (c *Collector) RecordError(method string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.apiErrors, method), 1)
}

// RecordDuration records the duration of an API call in seconds.
func (c *Collector) RecordDuration(method string, durationSeconds float64) {
	c.getOrCreateDuration(&c.apiDuration, method).add(durationSeconds)
}

// RecordQuery records one executed query against table.
func (c *Collector) RecordQuery(table string, durationSeconds float64, failed bool) {
	atomic.AddUint64(c.getOrCreateCounter(&c.queries, table), 1)
	c.getOrCreateDuration(&c.queryDuration, table).add(durationSeconds)
	if failed {
		atomic.AddUint64(c.getOrCreateCounter(&c.queryErrors, table), 1)
	}
}

// RecordFieldCache records whether an entity's field list came from the cache.
func (c *Collector) RecordFieldCache(entity string, hit bool) {
	if hit {
		atomic.AddUint64(&c.fieldCacheHits, 1)
	} else {
		atomic.AddUint64(&c.fieldCacheMisses, 1)
	}
}

// GetCacheMetrics returns current field-list cache metrics.
// Hits and misses are counted at lookup time; keys and memory come from
// the attached store when it is a memory cache.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	result := &CacheMetrics{
		Hits:   atomic.LoadUint64(&c.fieldCacheHits),
		Misses: atomic.LoadUint64(&c.fieldCacheMisses),
	}
	if total := result.Hits + result.Misses; total > 0 {
		result.HitRate = float64(result.Hits) / float64(total)
	}

	if c.cache == nil {
		return result
	}
	if metrics := c.cache.Metrics(); metrics != nil {
		result.Evictions = metrics.KeysEvicted
	}
	if memCache, ok := c.cache.(*memorycache.Cache); ok {
		result.KeysCurrent = int64(memCache.Len())
		result.MemoryBytes = memCache.Size()
	}

	return result
}

// GetAPIMetrics returns current API metrics.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	return &APIMetrics{
		RequestCounts:        loadCounters(&c.apiRequests),
		ErrorCounts:          loadCounters(&c.apiErrors),
		TotalDurationSeconds: loadDurations(&c.apiDuration),
	}
}

// GetQueryMetrics returns current query metrics.
func (c *Collector) GetQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		QueryCounts:          loadCounters(&c.queries),
		ErrorCounts:          loadCounters(&c.queryErrors),
		TotalDurationSeconds: loadDurations(&c.queryDuration),
	}
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}

func (c *Collector) getOrCreateDuration(m *sync.Map, key string) *durationValue {
	val, _ := m.LoadOrStore(key, &durationValue{})
	return val.(*durationValue)
}

func loadCounters(m *sync.Map) map[string]uint64 {
	out := make(map[string]uint64)
	m.Range(func(key, value interface{}) bool {
		out[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	return out
}

func loadDurations(m *sync.Map) map[string]float64 {
	out := make(map[string]float64)
	m.Range(func(key, value interface{}) bool {
		out[key.(string)] = value.(*durationValue).load()
		return true
	})
	return out
}

var _ Recorder = (*Collector)(nil)
