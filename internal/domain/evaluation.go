package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date format exchanged with the backtest engine.
const DateLayout = "2006-01-02"

// SearchMethod selects how candidate assignments are generated.
type SearchMethod string

const (
	SearchMethodGrid   SearchMethod = "grid"
	SearchMethodRandom SearchMethod = "random"
)

// Valid reports whether m is a known search method.
func (m SearchMethod) Valid() bool {
	return m == SearchMethodGrid || m == SearchMethodRandom
}

// ObjectiveMetric is the metric maximized by the optimizer.
type ObjectiveMetric string

const (
	ObjectiveSharpe ObjectiveMetric = "sharpe"
	ObjectiveCAGR   ObjectiveMetric = "cagr"
)

// Valid reports whether o is a known objective.
func (o ObjectiveMetric) Valid() bool {
	return o == ObjectiveSharpe || o == ObjectiveCAGR
}

// DateRange is an inclusive calendar date range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// YearRange builds [startYear-01-01, endYear-12-31] in UTC.
func YearRange(startYear, endYear int) DateRange {
	return DateRange{
		Start: time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// StartDate returns the start as YYYY-MM-DD.
func (r DateRange) StartDate() string { return r.Start.Format(DateLayout) }

// EndDate returns the end as YYYY-MM-DD.
func (r DateRange) EndDate() string { return r.End.Format(DateLayout) }

// String formats the range as "start..end".
func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.StartDate(), r.EndDate())
}

// Overlaps reports whether two inclusive ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.End.Before(o.Start) && !o.End.Before(r.Start)
}

// ParameterEvaluation is the outcome of one backtest for one assignment.
type ParameterEvaluation struct {
	Params      Assignment
	Sharpe      *float64 // nil when the backtest did not report it
	CAGR        *float64 // percent
	MaxDrawdown *float64 // percent, non-negative magnitude
	Success     bool
	Error       string // set when Success is false
	Duration    time.Duration
	Cached      bool // served from the evaluation cache
}

// Objective returns the value of the given objective metric, nil if absent.
func (e ParameterEvaluation) Objective(m ObjectiveMetric) *float64 {
	if m == ObjectiveCAGR {
		return e.CAGR
	}
	return e.Sharpe
}

// OptimizationResult is the outcome of searching one parameter space on one date range.
type OptimizationResult struct {
	StrategyID     string
	Range          DateRange
	BestParams     Assignment // nil when no evaluation succeeded
	BestObjective  *float64
	BestSharpe     *float64
	BestCAGR       *float64
	BestDrawdown   *float64
	Evaluations    []ParameterEvaluation // in candidate order
	TotalEvaluated int
	Successful     int
	Method         SearchMethod
	Objective      ObjectiveMetric
	Success        bool
	Error          string
}
