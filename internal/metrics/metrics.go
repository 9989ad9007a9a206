// Package metrics exposes Prometheus instrumentation for the search
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonesrussell/pricescout/internal/domain"
)

// Metrics holds the collectors for search and vendor activity. A nil
// *Metrics is valid and records nothing, which keeps instrumentation
// optional in tests.
type Metrics struct {
	searchesTotal  *prometheus.CounterVec
	searchDuration prometheus.Histogram
	vendorOutcomes *prometheus.CounterVec
	productsFound  *prometheus.CounterVec
	fetchRetries   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricescout",
			Name:      "searches_total",
			Help:      "Searches reaching a terminal status, by status.",
		}, []string{"status"}),
		searchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pricescout",
			Name:      "search_duration_seconds",
			Help:      "Wall time from search start to terminal status.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		vendorOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricescout",
			Name:      "vendor_outcomes_total",
			Help:      "Per-vendor search outcomes, by vendor and result.",
		}, []string{"vendor", "result"}),
		productsFound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricescout",
			Name:      "products_found_total",
			Help:      "Products collected from vendors.",
		}, []string{"vendor"}),
		fetchRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricescout",
			Name:      "fetch_retries_total",
			Help:      "HTTP fetch attempts retried after a transient failure.",
		}, []string{"vendor"}),
	}
}

// SearchFinished records a search reaching terminal status.
func (m *Metrics) SearchFinished(status domain.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(string(status)).Inc()
	m.searchDuration.Observe(d.Seconds())
}

// FetchRetried records one retried fetch attempt for a vendor.
func (m *Metrics) FetchRetried(vendorID string) {
	if m == nil {
		return
	}
	m.fetchRetries.WithLabelValues(vendorID).Inc()
}

// VendorSettled records one vendor's outcome within a search.
func (m *Metrics) VendorSettled(o domain.VendorOutcome) {
	if m == nil {
		return
	}
	result := "success"
	if !o.Success {
		result = string(o.Reason)
	}
	m.vendorOutcomes.WithLabelValues(o.VendorID, result).Inc()
	if o.ProductCount > 0 {
		m.productsFound.WithLabelValues(o.VendorID).Add(float64(o.ProductCount))
	}
}
