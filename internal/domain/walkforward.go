package domain

import "time"

// WindowPolicy controls how the optimize window moves between periods.
type WindowPolicy string

const (
	// WindowExpanding anchors every optimize window at the configured start year.
	WindowExpanding WindowPolicy = "expanding"
	// WindowRolling keeps the optimize window at a fixed length.
	WindowRolling WindowPolicy = "rolling"
)

// Valid reports whether p is a known policy.
func (p WindowPolicy) Valid() bool {
	return p == WindowExpanding || p == WindowRolling
}

// WalkForwardConfig describes the year grid of a walk-forward run.
type WalkForwardConfig struct {
	StartYear         int
	EndYear           int
	InitialTrainYears int
	TestYears         int
	Policy            WindowPolicy
	MaxEvaluations    int
	Method            SearchMethod
	Objective         ObjectiveMetric
}

// DefaultWalkForwardConfig returns the defaults used by the CLIs.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		StartYear:         2010,
		EndYear:           2023,
		InitialTrainYears: 3,
		TestYears:         1,
		Policy:            WindowExpanding,
		MaxEvaluations:    50,
		Method:            SearchMethodGrid,
		Objective:         ObjectiveSharpe,
	}
}

// WalkForwardPeriod is one optimize/test step.
type WalkForwardPeriod struct {
	Index    int // 1-based, chronological
	Optimize DateRange
	Test     DateRange

	Params            Assignment // optimized assignment, nil if optimization failed
	InSampleObjective *float64
	InSampleSharpe    *float64

	OOSSharpe      *float64
	OOSCAGR        *float64 // percent
	OOSMaxDrawdown *float64 // percent

	Evaluated  int
	Successful int
	Success    bool
	Error      string
}

// TestYear returns the first calendar year of the test window.
func (p WalkForwardPeriod) TestYear() int { return p.Test.Start.Year() }

// AggregateMetrics summarizes successful periods. Nil means undefined.
type AggregateMetrics struct {
	AvgOOSSharpe             *float64
	WorstOOSSharpe           *float64
	AvgOOSCAGR               *float64
	WorstOOSDrawdown         *float64
	Consistency              *float64 // fraction of periods with positive OOS CAGR
	Degradation              *float64 // (avg IS sharpe - avg OOS sharpe) / avg IS sharpe
	ParameterStability       *float64
	ParameterStabilityByName map[string]float64
}

// WalkForwardResult is the outcome of a full walk-forward run.
type WalkForwardResult struct {
	RunID      string
	StrategyID string
	Config     WalkForwardConfig
	Periods    []WalkForwardPeriod
	Aggregate  AggregateMetrics

	TotalPeriods           int
	SuccessfulPeriods      int
	OverlappingTestWindows bool
	Cancelled              bool
	Success                bool
	Error                  string
	Timestamp              time.Time
}

// SuccessfulPeriodList returns only the successful periods, in order.
func (r *WalkForwardResult) SuccessfulPeriodList() []WalkForwardPeriod {
	var out []WalkForwardPeriod
	for _, p := range r.Periods {
		if p.Success {
			out = append(out, p)
		}
	}
	return out
}
