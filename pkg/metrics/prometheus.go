package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder backs domain.repository.Metrics with Prometheus collectors
// registered on the default registry.
type Recorder struct {
	barsStored *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	backtests  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	lastClose  *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
}

// New registers the quantlab metric families and returns the recorder.
func New() *Recorder {
	return &Recorder{
		barsStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_bars_stored_total",
				Help: "Total number of bars routed to a backend",
			},
			[]string{"backend", "symbol"},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_decisions_total",
				Help: "Total number of fused trading decisions",
			},
			[]string{"symbol", "action"},
		),
		backtests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_backtests_total",
				Help: "Total number of backtest runs",
			},
			[]string{"strategy", "status"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantlab_last_close",
				Help: "Last observed close price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantlab_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBarStored records a bar routed to a backend.
func (r *Recorder) RecordBarStored(backend, symbol string) {
	r.barsStored.WithLabelValues(backend, symbol).Inc()
}

// RecordDecision records a fused decision by action.
func (r *Recorder) RecordDecision(symbol, action string) {
	r.decisions.WithLabelValues(symbol, action).Inc()
}

// RecordBacktest records a completed or failed backtest run.
func (r *Recorder) RecordBacktest(strategy, status string) {
	r.backtests.WithLabelValues(strategy, status).Inc()
}

// RecordError counts one error of the given kind.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLastClose records the last close price for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordLatency observes how long an operation took, in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
