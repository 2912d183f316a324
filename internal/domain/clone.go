package domain

// Clone returns a deep copy of the evaluation.
func (e ParameterEvaluation) Clone() ParameterEvaluation {
	out := e
	out.Params = e.Params.Clone()
	out.Sharpe = copyFloat(e.Sharpe)
	out.CAGR = copyFloat(e.CAGR)
	out.MaxDrawdown = copyFloat(e.MaxDrawdown)
	return out
}

// Clone returns a deep copy of the period.
func (p WalkForwardPeriod) Clone() WalkForwardPeriod {
	out := p
	out.Params = p.Params.Clone()
	out.InSampleObjective = copyFloat(p.InSampleObjective)
	out.InSampleSharpe = copyFloat(p.InSampleSharpe)
	out.OOSSharpe = copyFloat(p.OOSSharpe)
	out.OOSCAGR = copyFloat(p.OOSCAGR)
	out.OOSMaxDrawdown = copyFloat(p.OOSMaxDrawdown)
	return out
}

// Clone returns a deep copy of the aggregate.
func (a AggregateMetrics) Clone() AggregateMetrics {
	out := AggregateMetrics{
		AvgOOSSharpe:       copyFloat(a.AvgOOSSharpe),
		WorstOOSSharpe:     copyFloat(a.WorstOOSSharpe),
		AvgOOSCAGR:         copyFloat(a.AvgOOSCAGR),
		WorstOOSDrawdown:   copyFloat(a.WorstOOSDrawdown),
		Consistency:        copyFloat(a.Consistency),
		Degradation:        copyFloat(a.Degradation),
		ParameterStability: copyFloat(a.ParameterStability),
	}
	if a.ParameterStabilityByName != nil {
		out.ParameterStabilityByName = make(map[string]float64, len(a.ParameterStabilityByName))
		for k, v := range a.ParameterStabilityByName {
			out.ParameterStabilityByName[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the result.
func (r *WalkForwardResult) Clone() *WalkForwardResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Periods = clonePeriods(r.Periods)
	out.Aggregate = r.Aggregate.Clone()
	return &out
}

// Clone returns a deep copy of the result.
func (r *Phase3Result) Clone() *Phase3Result {
	if r == nil {
		return nil
	}
	out := *r
	out.WalkForward.BestParams = r.WalkForward.BestParams.Clone()
	out.WalkForward.BestSharpe = copyFloat(r.WalkForward.BestSharpe)
	out.WalkForward.Aggregate = r.WalkForward.Aggregate.Clone()
	out.Periods = clonePeriods(r.Periods)
	if r.MonteCarlo != nil {
		mc := *r.MonteCarlo
		out.MonteCarlo = &mc
	}
	if r.StressTests != nil {
		out.StressTests = make([]StressPeriodResult, len(r.StressTests))
		for i, s := range r.StressTests {
			s.Return = copyFloat(s.Return)
			s.Sharpe = copyFloat(s.Sharpe)
			s.MaxDrawdown = copyFloat(s.MaxDrawdown)
			s.FollowingReturn = copyFloat(s.FollowingReturn)
			out.StressTests[i] = s
		}
	}
	out.Assessment.Concerns = append([]string(nil), r.Assessment.Concerns...)
	return &out
}

func clonePeriods(in []WalkForwardPeriod) []WalkForwardPeriod {
	if in == nil {
		return nil
	}
	out := make([]WalkForwardPeriod, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
