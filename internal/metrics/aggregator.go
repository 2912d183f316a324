// Package metrics aggregates walk-forward periods into stability, consistency
// and degradation metrics.
package metrics

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"hypothesis-lab/internal/domain"
)

// ErrMsgNoSuccessfulPeriods is recorded when every period failed.
const ErrMsgNoSuccessfulPeriods = "no successful periods"

// Aggregate computes aggregate metrics over the successful periods.
// Metrics whose inputs are missing are nil.
func Aggregate(periods []domain.WalkForwardPeriod) domain.AggregateMetrics {
	ok := lo.Filter(periods, func(p domain.WalkForwardPeriod, _ int) bool { return p.Success })

	sharpes := present(ok, func(p domain.WalkForwardPeriod) *float64 { return p.OOSSharpe })
	cagrs := present(ok, func(p domain.WalkForwardPeriod) *float64 { return p.OOSCAGR })
	drawdowns := present(ok, func(p domain.WalkForwardPeriod) *float64 { return p.OOSMaxDrawdown })
	isSharpes := present(ok, func(p domain.WalkForwardPeriod) *float64 { return p.InSampleSharpe })

	agg := domain.AggregateMetrics{}
	if len(sharpes) > 0 {
		agg.AvgOOSSharpe = ptr(Mean(sharpes))
		agg.WorstOOSSharpe = ptr(lo.Min(sharpes))
	}
	if len(cagrs) > 0 {
		agg.AvgOOSCAGR = ptr(Mean(cagrs))
		agg.Consistency = Consistency(cagrs)
	}
	if len(drawdowns) > 0 {
		agg.WorstOOSDrawdown = ptr(lo.Max(drawdowns))
	}
	agg.Degradation = Degradation(isSharpes, sharpes)
	agg.ParameterStability, agg.ParameterStabilityByName = ParameterStability(ok)
	return agg
}

// Consistency returns the fraction of returns above zero, nil when empty.
func Consistency(returns []float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	positive := lo.CountBy(returns, func(r float64) bool { return r > 0 })
	return ptr(float64(positive) / float64(len(returns)))
}

// Degradation returns (avgIS - avgOOS) / avgIS. It is defined only when both
// series have the same non-zero length and the in-sample average is positive.
func Degradation(inSample, outOfSample []float64) *float64 {
	if len(inSample) == 0 || len(inSample) != len(outOfSample) {
		return nil
	}
	avgIS := Mean(inSample)
	if avgIS <= 0 {
		return nil
	}
	return ptr((avgIS - Mean(outOfSample)) / avgIS)
}

// ParameterStability scores how much each numeric parameter moved across periods.
// A parameter qualifies when it has numeric values in at least two periods:
// identical values score 1.0, otherwise max(0, 1 - popStd/(max-min)).
// The overall score is the mean over qualifying parameters, nil when none qualify.
func ParameterStability(periods []domain.WalkForwardPeriod) (*float64, map[string]float64) {
	values := make(map[string][]float64)
	for _, p := range periods {
		for name, v := range p.Params {
			if n, ok := v.Float64(); ok {
				values[name] = append(values[name], n)
			}
		}
	}

	names := make([]string, 0, len(values))
	for name, vals := range values {
		if len(vals) >= 2 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	byName := make(map[string]float64, len(names))
	scores := make([]float64, 0, len(names))
	for _, name := range names {
		vals := values[name]
		spread := lo.Max(vals) - lo.Min(vals)
		score := 1.0
		if spread > 0 {
			score = math.Max(0, 1-PopulationStddev(vals)/spread)
		}
		byName[name] = score
		scores = append(scores, score)
	}
	return ptr(Mean(scores)), byName
}

// HasOverlappingTests reports whether any two test windows share a day.
func HasOverlappingTests(periods []domain.WalkForwardPeriod) bool {
	for i := 1; i < len(periods); i++ {
		if periods[i-1].Test.Overlaps(periods[i].Test) {
			return true
		}
	}
	return false
}

// NonOverlapping keeps periods whose test window starts after the previously
// kept one ends, scanning chronologically.
func NonOverlapping(periods []domain.WalkForwardPeriod) []domain.WalkForwardPeriod {
	var out []domain.WalkForwardPeriod
	for _, p := range periods {
		if len(out) > 0 && out[len(out)-1].Test.Overlaps(p.Test) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// AnnualReturns returns the OOS CAGR of successful periods, skipping periods
// that overlap an earlier kept one so no calendar year is counted twice.
func AnnualReturns(periods []domain.WalkForwardPeriod) []float64 {
	ok := lo.Filter(periods, func(p domain.WalkForwardPeriod, _ int) bool { return p.Success })
	return present(NonOverlapping(ok), func(p domain.WalkForwardPeriod) *float64 { return p.OOSCAGR })
}

func present(periods []domain.WalkForwardPeriod, get func(domain.WalkForwardPeriod) *float64) []float64 {
	return lo.FilterMap(periods, func(p domain.WalkForwardPeriod, _ int) (float64, bool) {
		v := get(p)
		if v == nil {
			return 0, false
		}
		return *v, true
	})
}

func ptr(v float64) *float64 { return &v }
