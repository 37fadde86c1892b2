// Package observability provides metrics and monitoring capabilities for the
// application.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plantframe/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Identify *metrics.IdentifyMetrics
	Photos   *metrics.PhotoMetrics
	Store    *metrics.StoreMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors on a dedicated registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	identifyMetrics, err := metrics.NewIdentifyMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create identify metrics: %w", err)
	}

	photoMetrics, err := metrics.NewPhotoMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo metrics: %w", err)
	}

	storeMetrics, err := metrics.NewStoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create store metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Identify: identifyMetrics,
		Photos:   photoMetrics,
		Store:    storeMetrics,
	}, nil
}

// Handler returns an http.Handler exposing the registry in Prometheus text
// format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
