package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds image fetch metrics.
type Metrics struct {
	ImageFetches        *prometheus.CounterVec
	ImageFetchDuration  prometheus.Histogram
	ImageCandidates     prometheus.Histogram
	ImageProxyResponses *prometheus.CounterVec
}

// New creates and registers image metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ImageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagefetch",
			Subsystem: "tmdb",
			Name:      "fetches_total",
			Help:      "Image lookups by outcome.",
		}, []string{"outcome"}),
		ImageFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imagefetch",
			Subsystem: "tmdb",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of image lookups, including failed ones.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ImageCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imagefetch",
			Subsystem: "tmdb",
			Name:      "candidates",
			Help:      "Image candidates returned per successful lookup.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		ImageProxyResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagefetch",
			Subsystem: "proxy",
			Name:      "responses_total",
			Help:      "Proxied image downloads by upstream status class.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ImageFetches,
		m.ImageFetchDuration,
		m.ImageCandidates,
		m.ImageProxyResponses,
	)

	return m
}

// ObserveFetch records one image lookup.
func (m *Metrics) ObserveFetch(outcome string, candidates int, elapsed time.Duration) {
	m.ImageFetches.WithLabelValues(outcome).Inc()
	m.ImageFetchDuration.Observe(elapsed.Seconds())
	if outcome == "success" {
		m.ImageCandidates.Observe(float64(candidates))
	}
}

// ObserveProxy records one proxied image download.
func (m *Metrics) ObserveProxy(statusCode int) {
	class := "error"
	switch {
	case statusCode >= 500:
		class = "5xx"
	case statusCode >= 400:
		class = "4xx"
	case statusCode >= 300:
		class = "3xx"
	case statusCode >= 200:
		class = "2xx"
	}
	m.ImageProxyResponses.WithLabelValues(class).Inc()
}
