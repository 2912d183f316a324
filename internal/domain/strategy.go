package domain

// StrategyDocument is a strategy hypothesis with its tunable parameters.
// Assigned holds the concrete values injected for one evaluation.
type StrategyDocument struct {
	ID          string
	Name        string
	Hypothesis  string
	Instruments []string
	Timeframe   string            // e.g. "1d"
	Rules       map[string]string // entry/exit rule text keyed by rule name

	Parameters []TunableParameter
	Assigned   Assignment // nil until a variant is built
}

// Space returns the document's parameter space.
func (d StrategyDocument) Space() ParameterSpace {
	return ParameterSpace{Parameters: d.Parameters}
}

// Clone returns a deep copy of the document.
func (d StrategyDocument) Clone() StrategyDocument {
	out := d
	if d.Instruments != nil {
		out.Instruments = append([]string(nil), d.Instruments...)
	}
	if d.Rules != nil {
		out.Rules = make(map[string]string, len(d.Rules))
		for k, v := range d.Rules {
			out.Rules[k] = v
		}
	}
	if d.Parameters != nil {
		out.Parameters = make([]TunableParameter, len(d.Parameters))
		for i, p := range d.Parameters {
			out.Parameters[i] = p.clone()
		}
	}
	out.Assigned = d.Assigned.Clone()
	return out
}

// WithAssignment returns a variant of the document with values injected.
// The receiver is left unchanged.
func (d StrategyDocument) WithAssignment(a Assignment) StrategyDocument {
	out := d.Clone()
	out.Assigned = a.Clone()
	return out
}

// EffectiveValues returns the assigned value for every declared parameter,
// falling back to the parameter default.
func (d StrategyDocument) EffectiveValues() Assignment {
	out := make(Assignment, len(d.Parameters))
	for _, p := range d.Parameters {
		if v, ok := d.Assigned[p.Name]; ok {
			out[p.Name] = v
			continue
		}
		out[p.Name] = p.ZeroValue()
	}
	for name, v := range d.Assigned {
		if _, ok := out[name]; !ok {
			out[name] = v
		}
	}
	return out
}

func (p TunableParameter) clone() TunableParameter {
	out := p
	out.Min = copyFloat(p.Min)
	out.Max = copyFloat(p.Max)
	out.Step = copyFloat(p.Step)
	if p.Choices != nil {
		out.Choices = append([]Value(nil), p.Choices...)
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
