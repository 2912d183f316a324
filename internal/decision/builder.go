package decision

import (
	"hypothesis-lab/internal/domain"
)

// BuildInput collects assessment inputs from the stage results.
// mc may be nil when no annual returns were available.
func BuildInput(wf *domain.WalkForwardResult, mc *domain.MonteCarloResult, stress []domain.StressPeriodResult, extraConcerns []string) *Input {
	in := &Input{
		StressTests:   stress,
		ExtraConcerns: extraConcerns,
	}
	if wf != nil {
		in.StrategyID = wf.StrategyID
		in.Sharpe = wf.Aggregate.AvgOOSSharpe
		in.Consistency = wf.Aggregate.Consistency
		in.WorstDrawdown = wf.Aggregate.WorstOOSDrawdown
	}
	if mc != nil {
		p, tail := mc.ProbPositive, mc.P5CAGR
		in.ProbPositive = &p
		in.P5CAGR = &tail
	}
	return in
}
