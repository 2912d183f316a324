package domain

import "time"

// MonteCarloResult summarizes a bootstrap of annual returns. CAGR figures are percent.
type MonteCarloResult struct {
	Simulations       int
	Years             int
	SampleSize        int // number of annual returns resampled
	MeanCAGR          float64
	MedianCAGR        float64
	P5CAGR            float64
	P95CAGR           float64
	ProbPositive      float64 // fraction of simulations with CAGR > 0
	ProbBeatBenchmark float64 // fraction of simulations with CAGR > BenchmarkReturn
	BenchmarkReturn   float64
	BestCAGR          float64
	WorstCAGR         float64
}

// RecoveryRating classifies the year following a stress period.
type RecoveryRating string

const (
	RecoveryStrong   RecoveryRating = "strong"
	RecoveryModerate RecoveryRating = "moderate"
	RecoveryWeak     RecoveryRating = "weak"
	RecoveryUnknown  RecoveryRating = "unknown"
)

// StressPeriodResult is the realized performance during a named stress year.
type StressPeriodResult struct {
	Name            string
	Year            int
	Return          *float64 // OOS CAGR, percent
	Sharpe          *float64
	MaxDrawdown     *float64
	Recovery        RecoveryRating
	FollowingReturn *float64
}

// ConfidenceLevel is the closed set of assessment confidence levels.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Assessment is the risk-adjusted verdict.
type Assessment struct {
	RiskAdjustedScore float64
	Confidence        ConfidenceLevel
	Recommendation    string
	Concerns          []string
}

// WalkForwardSummary is the part of a walk-forward result carried into Phase 3.
type WalkForwardSummary struct {
	TotalPeriods           int
	SuccessfulPeriods      int
	BestParams             Assignment // params of the most recent successful period
	BestSharpe             *float64   // in-sample sharpe of that period
	Aggregate              AggregateMetrics
	OverlappingTestWindows bool
	Error                  string
}

// Phase3Result combines walk-forward, Monte Carlo and stress findings into one assessment.
type Phase3Result struct {
	RunID       string
	StrategyID  string
	WalkForward WalkForwardSummary
	Periods     []WalkForwardPeriod
	MonteCarlo  *MonteCarloResult // nil when no annual returns were available
	StressTests []StressPeriodResult
	Assessment  Assessment
	Warnings    []string // data sufficiency failures not counted as concerns
	Timestamp   time.Time
}
