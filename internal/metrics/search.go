// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the search pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements search telemetry over Prometheus collectors.
type Recorder struct {
	searchesTotal  *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	indexSize      prometheus.Gauge
}

// NewRecorder registers the search collectors and returns a recorder.
func NewRecorder() *Recorder {
	r := &Recorder{
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kensaku",
				Name:      "searches_total",
				Help:      "Total number of searches by interpretation mode",
			},
			[]string{"mode"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kensaku",
				Name:      "search_duration_seconds",
				Help:      "Search execution duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"mode"},
		),
		indexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kensaku",
				Name:      "index_records",
				Help:      "Number of records in the current index snapshot",
			},
		),
	}
	prometheus.MustRegister(r.searchesTotal, r.searchDuration, r.indexSize)
	return r
}

// ObserveSearch records one completed search.
func (r *Recorder) ObserveSearch(mode string, elapsed time.Duration) {
	r.searchesTotal.WithLabelValues(mode).Inc()
	r.searchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// SetIndexSize publishes the current snapshot size.
func (r *Recorder) SetIndexSize(n int) {
	r.indexSize.Set(float64(n))
}
