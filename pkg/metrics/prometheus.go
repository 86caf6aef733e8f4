package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsGenerated *prometheus.CounterVec
	resolutions      *prometheus.CounterVec
	skippedPairs     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	activeSignals    prometheus.Gauge
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigforge_signals_generated_total",
				Help: "Total number of signals generated",
			},
			[]string{"strategy", "asset"},
		),
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigforge_resolutions_total",
				Help: "Total number of signal resolutions by outcome",
			},
			[]string{"outcome"},
		),
		skippedPairs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigforge_skipped_pairs_total",
				Help: "Pairs skipped during a tick by reason",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sigforge_last_price",
				Help: "Last observed price for an asset",
			},
			[]string{"asset"},
		),
		activeSignals: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sigforge_active_signals",
				Help: "Number of currently active signals",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigforge_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignalGenerated counts a newly created signal.
func (r *Recorder) RecordSignalGenerated(strategy, asset string) {
	r.signalsGenerated.WithLabelValues(strategy, asset).Inc()
}

// RecordResolution counts a terminal resolution by outcome.
func (r *Recorder) RecordResolution(outcome string) {
	r.resolutions.WithLabelValues(outcome).Inc()
}

// RecordSkippedPair counts a skipped (strategy, asset) pair.
func (r *Recorder) RecordSkippedPair(reason string) {
	r.skippedPairs.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for an asset.
func (r *Recorder) RecordLastPrice(asset string, price float64) {
	r.lastPrice.WithLabelValues(asset).Set(price)
}

// RecordActiveSignals sets the active signal gauge.
func (r *Recorder) RecordActiveSignals(n int) {
	r.activeSignals.Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
