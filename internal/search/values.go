package search

import (
	"math"

	"hypothesis-lab/internal/domain"
)

// floatDecimals bounds the precision of generated float candidates.
const floatDecimals = 8

// CandidateValues returns the values a parameter can take, in ascending order.
// Every kind except boolean falls back to the default when no range is usable.
func CandidateValues(p domain.TunableParameter) []domain.Value {
	switch p.Kind {
	case domain.ParameterKindBoolean:
		return []domain.Value{domain.BoolValue(true), domain.BoolValue(false)}
	case domain.ParameterKindChoice:
		if len(p.Choices) == 0 {
			return []domain.Value{p.ZeroValue()}
		}
		return append([]domain.Value(nil), p.Choices...)
	case domain.ParameterKindInteger:
		if vals := integerRange(p); len(vals) > 0 {
			return vals
		}
	case domain.ParameterKindFloat:
		if vals := floatRange(p); len(vals) > 0 {
			return vals
		}
	}
	return []domain.Value{p.ZeroValue()}
}

func integerRange(p domain.TunableParameter) []domain.Value {
	if !p.HasRange() || *p.Step <= 0 || *p.Min > *p.Max {
		return nil
	}
	lo, hi := int64(*p.Min), int64(*p.Max)
	step := int64(*p.Step)
	if step < 1 {
		step = 1
	}
	var vals []domain.Value
	for v := lo; v <= hi; v += step {
		vals = append(vals, domain.IntValue(v))
	}
	return vals
}

func floatRange(p domain.TunableParameter) []domain.Value {
	if !p.HasRange() || *p.Step <= 0 || *p.Min > *p.Max {
		return nil
	}
	lo, hi, step := *p.Min, *p.Max, *p.Step
	// Tolerance keeps an inclusive max reachable despite accumulated error.
	eps := step * 1e-9
	var vals []domain.Value
	for i := 0; ; i++ {
		v := lo + float64(i)*step
		if v > hi+eps {
			break
		}
		vals = append(vals, domain.FloatValue(domain.RoundFloat(math.Min(v, hi), floatDecimals)))
	}
	return vals
}

// SpaceSize returns the number of distinct assignments in the space.
// The product saturates at math.MaxInt.
func SpaceSize(space domain.ParameterSpace) int {
	if space.Empty() {
		return 0
	}
	size := 1
	for _, p := range space.Parameters {
		n := len(CandidateValues(p))
		if n == 0 {
			return 0
		}
		if size > math.MaxInt/n {
			return math.MaxInt
		}
		size *= n
	}
	return size
}

func candidateLists(space domain.ParameterSpace) [][]domain.Value {
	lists := make([][]domain.Value, len(space.Parameters))
	for i, p := range space.Parameters {
		lists[i] = CandidateValues(p)
	}
	return lists
}
