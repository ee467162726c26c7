package browser

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the downloader.
type Metrics struct {
	Registry     *prometheus.Registry
	Downloads    *prometheus.CounterVec
	WaitDuration prometheus.Histogram
	SkippedRows  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asx_downloader_row_pairs_total",
			Help: "Row pairs processed, by download status.",
		},
		[]string{"status"},
	)
	wait := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asx_downloader_wait_seconds",
			Help:    "Time spent polling for a downloaded file.",
			Buckets: []float64{1, 2, 5, 10, 20, 30},
		},
	)
	skipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asx_downloader_skipped_rows_total",
			Help: "Rows left without a partner row.",
		},
	)

	registry.MustRegister(downloads, wait, skipped)

	return &Metrics{
		Registry:     registry,
		Downloads:    downloads,
		WaitDuration: wait,
		SkippedRows:  skipped,
	}
}

// IncDownload counts a processed row pair.
func (m *Metrics) IncDownload(status string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(status).Inc()
}

// ObserveWait records how long a download was polled for.
func (m *Metrics) ObserveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.WaitDuration.Observe(d.Seconds())
}

// IncSkipped counts an unpaired row.
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.SkippedRows.Inc()
}
