package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	fieldCacheHits        prometheus.Counter
	fieldCacheMisses      prometheus.Counter
	fieldCacheHitRate     prometheus.Gauge
	fieldCacheKeys        prometheus.Gauge
	fieldCacheMemoryBytes prometheus.Gauge
	queries               *prometheus.CounterVec
	queryDuration         *prometheus.HistogramVec
	queryErrors           *prometheus.CounterVec
	grpcRequests          *prometheus.CounterVec
	grpcDuration          *prometheus.HistogramVec
	grpcErrors            *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter registered on reg.
// A nil reg uses the default registerer.
func NewPrometheusExporter(collector *Collector, reg prometheus.Registerer) *PrometheusExporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusExporter{
		collector: collector,
		fieldCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "modelchain_field_cache_hits_total",
			Help: "Total number of entity field lists served from the cache store",
		}),
		fieldCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "modelchain_field_cache_misses_total",
			Help: "Total number of entity field lists loaded by schema introspection",
		}),
		fieldCacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modelchain_field_cache_hit_rate",
			Help: "Current field list cache hit rate (0.0 to 1.0)",
		}),
		fieldCacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modelchain_field_cache_keys_current",
			Help: "Current number of entity field lists in the memory cache",
		}),
		fieldCacheMemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modelchain_field_cache_memory_bytes",
			Help: "Estimated memory usage of the field list cache in bytes",
		}),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelchain_queries_total",
				Help: "Total number of queries issued by the relation resolver",
			},
			[]string{"table"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelchain_query_duration_seconds",
				Help:    "Duration of resolver queries in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"table"},
		),
		queryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelchain_query_errors_total",
				Help: "Total number of failed resolver queries",
			},
			[]string{"table"},
		),
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelchain_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelchain_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		grpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelchain_grpc_errors_total",
				Help: "Total number of gRPC errors",
			},
			[]string{"method"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// Counters are updated as events happen, so only gauges are refreshed here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.fieldCacheHitRate.Set(cacheMetrics.HitRate)
	e.fieldCacheKeys.Set(float64(cacheMetrics.KeysCurrent))
	e.fieldCacheMemoryBytes.Set(float64(cacheMetrics.MemoryBytes))
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.grpcRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(method string) {
	e.grpcErrors.WithLabelValues(method).Inc()
}

// RecordQuery records one resolver query in Prometheus.
func (e *PrometheusExporter) RecordQuery(table string, durationSeconds float64, failed bool) {
	e.queries.WithLabelValues(table).Inc()
	e.queryDuration.WithLabelValues(table).Observe(durationSeconds)
	if failed {
		e.queryErrors.WithLabelValues(table).Inc()
	}
}

// RecordFieldCache records a field list cache hit or miss.
func (e *PrometheusExporter) RecordFieldCache(_ string, hit bool) {
	if hit {
		e.fieldCacheHits.Inc()
	} else {
		e.fieldCacheMisses.Inc()
	}
}

var _ Recorder = (*PrometheusExporter)(nil)
