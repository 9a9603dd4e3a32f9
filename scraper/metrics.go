package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ProductsTotal     prometheus.Counter
	PagesUnavailable  *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	LastRunTotalPrice prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_products_total",
			Help: "Total number of product records assembled.",
		},
	)
	unavailable := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_unavailable_total",
			Help: "Pages that answered without usable content, by reason.",
		},
		[]string{"phase", "reason"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of transport errors by type.",
		},
		[]string{"error_type"},
	)
	lastTotal := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_last_run_total_price",
			Help: "Total unit price reported by the most recent run.",
		},
	)

	registry.MustRegister(requests, requestDuration, products, unavailable, errorsTotal, lastTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ProductsTotal:     products,
		PagesUnavailable:  unavailable,
		ErrorsTotal:       errorsTotal,
		LastRunTotalPrice: lastTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncProducts increments the assembled products counter.
func (m *Metrics) IncProducts() {
	if m == nil {
		return
	}
	m.ProductsTotal.Inc()
}

// IncUnavailable counts a page that produced no content.
func (m *Metrics) IncUnavailable(phase, reason string) {
	if m == nil {
		return
	}
	m.PagesUnavailable.WithLabelValues(phase, reason).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetTotal records the total of the last completed run.
func (m *Metrics) SetTotal(total float64) {
	if m == nil {
		return
	}
	m.LastRunTotalPrice.Set(total)
}
