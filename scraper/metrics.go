package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the statistics scraper.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	CompaniesTotal      *prometheus.CounterVec
	MetricsExtracted    prometheus.Histogram
	ThrottleWaitSeconds prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asx_scraper_requests_total",
			Help: "Statistics page requests by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asx_scraper_request_duration_seconds",
			Help:    "Statistics page request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	companies := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asx_scraper_companies_total",
			Help: "Companies processed, by outcome.",
		},
		[]string{"outcome"},
	)
	extracted := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asx_scraper_metrics_per_company",
			Help:    "Number of statistics extracted per company.",
			Buckets: []float64{0, 5, 10, 20, 30, 40, 60},
		},
	)
	throttleWait := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asx_scraper_throttle_wait_seconds_total",
			Help: "Time spent waiting on the request budget and jitter.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asx_scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, companies, extracted, throttleWait, errorsTotal)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		CompaniesTotal:      companies,
		MetricsExtracted:    extracted,
		ThrottleWaitSeconds: throttleWait,
		ErrorsTotal:         errorsTotal,
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

// ObserveCompany records the outcome of one company and its metric count.
func (m *Metrics) ObserveCompany(outcome string, extracted int) {
	if m == nil {
		return
	}
	m.CompaniesTotal.WithLabelValues(outcome).Inc()
	m.MetricsExtracted.Observe(float64(extracted))
}

// AddThrottleWait accumulates time spent in the throttle.
func (m *Metrics) AddThrottleWait(d time.Duration) {
	if m == nil {
		return
	}
	m.ThrottleWaitSeconds.Add(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
