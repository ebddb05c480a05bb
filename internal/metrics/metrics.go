// Package metrics exposes Prometheus metrics and a /healthz probe for the
// evaluation services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the evaluator.
type Metrics struct {
	// Pipeline
	EvaluationsTotal *prometheus.CounterVec   // labels: policy, span, outcome
	PipelineDur      *prometheus.HistogramVec // labels: policy
	TradesTotal      prometheus.Counter
	PerformancePct   *prometheus.GaugeVec // labels: ticker, policy, span

	// Series acquisition
	SeriesFetchDur *prometheus.HistogramVec // labels: source
	BarsFetched    prometheus.Counter

	// Result cache
	CacheLookups             *prometheus.CounterVec // labels: result=hit|miss|error
	RedisCircuitBreakerState prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	// Batch runner
	BatchRunsTotal prometheus.Counter
	BatchDur       prometheus.Histogram

	// Delivery
	AlertsSent *prometheus.CounterVec // labels: level
	WSClients  prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbench_evaluations_total",
			Help: "Pipeline runs by policy, span and outcome (ok, error)",
		}, []string{"policy", "span", "outcome"}),
		PipelineDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalbench_pipeline_duration_seconds",
			Help:    "Indicator → evaluation latency per ticker",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"policy"}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbench_trades_total",
			Help: "Matched orders across all evaluations",
		}),
		PerformancePct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalbench_performance_pct",
			Help: "Latest performance percent per ticker",
		}, []string{"ticker", "policy", "span"}),

		SeriesFetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalbench_series_fetch_duration_seconds",
			Help:    "Price series acquisition latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		BarsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbench_bars_fetched_total",
			Help: "Daily bars pulled from remote sources",
		}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbench_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbench_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbench_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbench_redis_buffered_writes_total",
			Help: "Summaries buffered locally while the Redis circuit was open",
		}),

		BatchRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbench_batch_runs_total",
			Help: "Completed batch runs",
		}),
		BatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbench_batch_duration_seconds",
			Help:    "Wall time of a batch run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),

		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbench_alerts_sent_total",
			Help: "Recent-signal alerts delivered by level",
		}, []string{"level"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbench_ws_clients",
			Help: "Connected WebSocket clients",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.PipelineDur,
		m.TradesTotal,
		m.PerformancePct,
		m.SeriesFetchDur,
		m.BarsFetched,
		m.CacheLookups,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.BatchRunsTotal,
		m.BatchDur,
		m.AlertsSent,
		m.WSClients,
	)
	return m
}

// ObserveEvaluation records one successful pipeline run.
func (m *Metrics) ObserveEvaluation(ticker, policy, span string, trades int, pct float64, dur time.Duration) {
	m.EvaluationsTotal.WithLabelValues(policy, span, "ok").Inc()
	m.PipelineDur.WithLabelValues(policy).Observe(dur.Seconds())
	m.TradesTotal.Add(float64(trades))
	m.PerformancePct.WithLabelValues(ticker, policy, span).Set(pct)
}

// ObserveFailure records a failed pipeline run.
func (m *Metrics) ObserveFailure(policy, span string) {
	m.EvaluationsTotal.WithLabelValues(policy, span, "error").Inc()
}

// ObserveFetch records a series acquisition.
func (m *Metrics) ObserveFetch(source string, bars int, dur time.Duration) {
	m.SeriesFetchDur.WithLabelValues(source).Observe(dur.Seconds())
	m.BarsFetched.Add(float64(bars))
}
