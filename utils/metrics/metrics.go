package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// NewRegistry returns the bot's private metrics registry, exposed by the
// operator API when Prometheus is enabled.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ArbitrageMetrics covers the evaluation and execution pipeline.
type ArbitrageMetrics struct {
	Evaluations *prometheus.CounterVec
	Attempts    *prometheus.CounterVec
	// RealizedProfit is a gauge: loss-making attempts subtract from it, so
	// it must accept negative deltas.
	RealizedProfit prometheus.Gauge
	SpreadRatio    prometheus.Histogram
	CycleLatency   prometheus.Histogram
	SuccessRate    prometheus.Gauge

	successes prometheus.Counter
	total     prometheus.Counter
}

// NewArbitrageMetrics registers the pipeline metrics on the given registry.
func NewArbitrageMetrics(reg prometheus.Registerer) *ArbitrageMetrics {
	factory := promauto.With(reg)
	return &ArbitrageMetrics{
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crossarb_evaluations_total",
			Help: "Evaluation cycles by outcome",
		}, []string{"outcome"}),
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crossarb_attempts_total",
			Help: "Arbitrage attempts by terminal status",
		}, []string{"status"}),
		RealizedProfit: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_realized_profit",
			Help: "Cumulative realized profit in asset units, negative on net loss",
		}),
		SpreadRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crossarb_spread_ratio",
			Help:    "Observed spread ratios per evaluation",
			Buckets: prometheus.LinearBuckets(1.0, 0.005, 12),
		}),
		CycleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crossarb_cycle_latency_seconds",
			Help:    "Latency of one evaluate-and-execute cycle",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		SuccessRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crossarb_attempt_success_rate",
			Help: "Fraction of attempts reaching success",
		}),
		successes: factory.NewCounter(prometheus.CounterOpts{
			Name: "crossarb_attempt_successes_total",
			Help: "Attempts that reached success",
		}),
		total: factory.NewCounter(prometheus.CounterOpts{
			Name: "crossarb_attempts_terminal_total",
			Help: "Attempts that reached any terminal status",
		}),
	}
}

// RecordAttempt updates the per-status counters and the success rate gauge.
func (m *ArbitrageMetrics) RecordAttempt(status string, success bool) {
	m.Attempts.WithLabelValues(status).Inc()
	m.total.Inc()
	if success {
		m.successes.Inc()
	}
	if total := CounterValue(m.total); total > 0 {
		m.SuccessRate.Set(CounterValue(m.successes) / total)
	}
}

// CounterValue reads the current value of a counter through the collector
// interface.
func CounterValue(c prometheus.Counter) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	metric := <-ch
	if metric == nil {
		return 0
	}
	out := &dto.Metric{}
	if err := metric.Write(out); err != nil || out.Counter == nil {
		return 0
	}
	return *out.Counter.Value
}
