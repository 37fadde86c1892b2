// Package metrics provides custom Prometheus metrics for the application
// components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IdentifyMetrics contains all Prometheus metrics related to plant
// identification operations.
type IdentifyMetrics struct {
	Requests       prometheus.Counter
	Rejected       prometheus.Counter
	APICalls       prometheus.Counter
	APIErrors      prometheus.Counter
	GroupsCreated  prometheus.Counter
	ManualResults  prometheus.Counter
	DeletedResults prometheus.Counter
	APIDuration    prometheus.Histogram
	registry       *prometheus.Registry
}

// NewIdentifyMetrics creates a new instance of IdentifyMetrics registered on
// the given registry.
func NewIdentifyMetrics(registry *prometheus.Registry) (*IdentifyMetrics, error) {
	m := &IdentifyMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register identify metrics: %w", err)
	}
	return m, nil
}

func (m *IdentifyMetrics) initMetrics() {
	m.Requests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identify_requests_total",
		Help: "Total number of identification requests received.",
	})
	m.Rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identify_rejected_total",
		Help: "Total number of identification requests rejected before submission.",
	})
	m.APICalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identify_api_calls_total",
		Help: "Total number of calls to the identification API.",
	})
	m.APIErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identify_api_errors_total",
		Help: "Total number of identification API failures.",
	})
	m.GroupsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identify_groups_created_total",
		Help: "Total number of identification groups persisted.",
	})
	m.ManualResults = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identify_manual_results_total",
		Help: "Total number of user entered identification results.",
	})
	m.DeletedResults = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identify_deleted_results_total",
		Help: "Total number of deleted identification results.",
	})
	m.APIDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "identify_api_duration_seconds",
		Help:    "Duration of identification API calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
}

// Describe implements the prometheus.Collector interface.
func (m *IdentifyMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.Rejected.Describe(ch)
	m.APICalls.Describe(ch)
	m.APIErrors.Describe(ch)
	m.GroupsCreated.Describe(ch)
	m.ManualResults.Describe(ch)
	m.DeletedResults.Describe(ch)
	m.APIDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *IdentifyMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.Rejected.Collect(ch)
	m.APICalls.Collect(ch)
	m.APIErrors.Collect(ch)
	m.GroupsCreated.Collect(ch)
	m.ManualResults.Collect(ch)
	m.DeletedResults.Collect(ch)
	m.APIDuration.Collect(ch)
}
