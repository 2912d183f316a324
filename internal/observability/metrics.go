// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	CacheLookups       *prometheus.CounterVec

	// Optimizer metrics
	OptimizationsTotal *prometheus.CounterVec
	CandidatesPerRun   prometheus.Histogram

	// Walk-forward metrics
	PeriodsTotal      *prometheus.CounterVec
	WalkForwardRuns   *prometheus.CounterVec
	WalkForwardTime   prometheus.Histogram
	ActiveRuns        prometheus.Gauge
	MonteCarloDraws   prometheus.Counter
	RiskAdjustedScore *prometheus.GaugeVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "hypothesis_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Evaluation metrics
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Total number of parameter evaluations by outcome",
		}, []string{"outcome"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of one generate+backtest round trip",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "cache_lookups_total",
			Help:      "Evaluation cache lookups by result",
		}, []string{"result"}),

		// Optimizer metrics
		OptimizationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "optimizations_total",
			Help:      "Total number of optimizations by status",
		}, []string{"method", "status"}),
		CandidatesPerRun: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "candidates",
			Help:      "Number of candidate assignments per optimization",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		// Walk-forward metrics
		PeriodsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "periods_total",
			Help:      "Total number of walk-forward periods by status",
		}, []string{"status"}),
		WalkForwardRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "runs_total",
			Help:      "Total number of walk-forward runs by status",
		}, []string{"policy", "status"}),
		WalkForwardTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "run_duration_seconds",
			Help:      "Duration of a walk-forward run",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "active_runs",
			Help:      "Number of walk-forward runs in progress",
		}),
		MonteCarloDraws: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "simulations_total",
			Help:      "Total number of bootstrap simulations",
		}),
		RiskAdjustedScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "risk_adjusted_score",
			Help:      "Latest risk-adjusted score per strategy",
		}, []string{"strategy_id"}),

		// Pipeline metrics
		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by phase and status",
		}, []string{"phase", "status"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline duration in seconds by phase",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"phase"}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulPipeline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordEvaluation records one evaluation outcome and its duration.
func RecordEvaluation(outcome string, seconds float64) {
	DefaultMetrics.EvaluationsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.EvaluationDuration.Observe(seconds)
}

// RecordCacheLookup records an evaluation cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// RecordOptimization records a finished optimization.
func RecordOptimization(method, status string, candidates int) {
	DefaultMetrics.OptimizationsTotal.WithLabelValues(method, status).Inc()
	DefaultMetrics.CandidatesPerRun.Observe(float64(candidates))
}

// RecordPeriod records a finished walk-forward period.
func RecordPeriod(status string) {
	DefaultMetrics.PeriodsTotal.WithLabelValues(status).Inc()
}

// RecordWalkForwardRun records a finished walk-forward run.
func RecordWalkForwardRun(policy, status string, durationSeconds float64) {
	DefaultMetrics.WalkForwardRuns.WithLabelValues(policy, status).Inc()
	DefaultMetrics.WalkForwardTime.Observe(durationSeconds)
}

// RecordMonteCarlo records the number of bootstrap simulations drawn.
func RecordMonteCarlo(simulations int) {
	DefaultMetrics.MonteCarloDraws.Add(float64(simulations))
}

// RecordAssessment records the latest risk-adjusted score for a strategy.
func RecordAssessment(strategyID string, score float64) {
	DefaultMetrics.RiskAdjustedScore.WithLabelValues(strategyID).Set(score)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}
