package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches      *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	analyses     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	paths        prometheus.Counter
	lastPrice    *prometheus.GaugeVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_price_fetches_total",
				Help: "Price series fetches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_price_cache_lookups_total",
				Help: "Price cache lookups by result",
			},
			[]string{"result"},
		),
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_analyses_total",
				Help: "Analyses run by kind and error kind",
			},
			[]string{"kind", "error"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantlab_analysis_duration_seconds",
				Help:    "Duration of analyses in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		paths: f.NewCounter(
			prometheus.CounterOpts{
				Name: "quantlab_montecarlo_paths_total",
				Help: "Monte Carlo paths simulated",
			},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantlab_last_close",
				Help: "Last close seen for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordFetch counts a provider fetch.
func (r *Recorder) RecordFetch(provider, outcome string) {
	r.fetches.WithLabelValues(provider, outcome).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordAnalysis records one finished analysis. errKind is empty on success.
func (r *Recorder) RecordAnalysis(kind string, seconds float64, errKind string) {
	if errKind == "" {
		errKind = "none"
	}
	r.analyses.WithLabelValues(kind, errKind).Inc()
	r.latency.WithLabelValues(kind).Observe(seconds)
}

// RecordPaths adds simulated Monte Carlo paths.
func (r *Recorder) RecordPaths(n int) {
	r.paths.Add(float64(n))
}

// RecordLastPrice records the last close for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordFetch(string, string)             {}
func (Noop) RecordCacheLookup(bool)                 {}
func (Noop) RecordAnalysis(string, float64, string) {}
func (Noop) RecordPaths(int)                        {}
func (Noop) RecordLastPrice(string, float64)        {}
