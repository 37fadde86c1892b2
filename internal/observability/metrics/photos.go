package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PhotoMetrics contains all Prometheus metrics related to photo library API
// operations.
type PhotoMetrics struct {
	APICalls    prometheus.Counter
	APIErrors   prometheus.Counter
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	APIDuration prometheus.Histogram
	registry    *prometheus.Registry
}

// NewPhotoMetrics creates a new instance of PhotoMetrics registered on the
// given registry.
func NewPhotoMetrics(registry *prometheus.Registry) (*PhotoMetrics, error) {
	m := &PhotoMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register photo metrics: %w", err)
	}
	return m, nil
}

func (m *PhotoMetrics) initMetrics() {
	m.APICalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photos_api_calls_total",
		Help: "Total number of photo library API calls.",
	})
	m.APIErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photos_api_errors_total",
		Help: "Total number of photo library API failures.",
	})
	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photos_detail_cache_hits_total",
		Help: "Total number of media item detail cache hits.",
	})
	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photos_detail_cache_misses_total",
		Help: "Total number of media item detail cache misses.",
	})
	m.APIDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "photos_api_duration_seconds",
		Help:    "Duration of photo library API calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
}

// Describe implements the prometheus.Collector interface.
func (m *PhotoMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.APICalls.Describe(ch)
	m.APIErrors.Describe(ch)
	m.CacheHits.Describe(ch)
	m.CacheMisses.Describe(ch)
	m.APIDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PhotoMetrics) Collect(ch chan<- prometheus.Metric) {
	m.APICalls.Collect(ch)
	m.APIErrors.Collect(ch)
	m.CacheHits.Collect(ch)
	m.CacheMisses.Collect(ch)
	m.APIDuration.Collect(ch)
}
