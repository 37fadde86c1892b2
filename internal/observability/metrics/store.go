package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics contains all Prometheus metrics related to the key-value
// store.
type StoreMetrics struct {
	Reads        prometheus.Counter
	Writes       prometheus.Counter
	Deletes      prometheus.Counter
	Errors       prometheus.Counter
	ExpiredPurge prometheus.Counter
	registry     *prometheus.Registry
}

// NewStoreMetrics creates a new instance of StoreMetrics registered on the
// given registry.
func NewStoreMetrics(registry *prometheus.Registry) (*StoreMetrics, error) {
	m := &StoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register store metrics: %w", err)
	}
	return m, nil
}

func (m *StoreMetrics) initMetrics() {
	m.Reads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kvstore_reads_total",
		Help: "Total number of key-value store reads.",
	})
	m.Writes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kvstore_writes_total",
		Help: "Total number of key-value store writes.",
	})
	m.Deletes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kvstore_deletes_total",
		Help: "Total number of key-value store deletes.",
	})
	m.Errors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kvstore_errors_total",
		Help: "Total number of key-value store operation failures.",
	})
	m.ExpiredPurge = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kvstore_expired_purged_total",
		Help: "Total number of expired entries purged on read.",
	})
}

// Describe implements the prometheus.Collector interface.
func (m *StoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Reads.Describe(ch)
	m.Writes.Describe(ch)
	m.Deletes.Describe(ch)
	m.Errors.Describe(ch)
	m.ExpiredPurge.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *StoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Reads.Collect(ch)
	m.Writes.Collect(ch)
	m.Deletes.Collect(ch)
	m.Errors.Collect(ch)
	m.ExpiredPurge.Collect(ch)
}
