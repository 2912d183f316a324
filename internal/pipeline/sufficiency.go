package pipeline

import (
	"fmt"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/metrics"
)

// SufficiencyConfig holds the thresholds a walk-forward run must meet
// before its assessment is trusted.
type SufficiencyConfig struct {
	MinSuccessfulPeriods     int
	MinAnnualReturns         int     // non-overlapping returns needed for Monte Carlo
	MinEvaluationSuccessRate float64 // 0-1, over optimize evaluations

	// AsConcerns adds failed checks to the assessment concerns, where they
	// count toward confidence. Otherwise they are reported as warnings only.
	AsConcerns bool
}

// DefaultSufficiencyConfig returns the default thresholds.
func DefaultSufficiencyConfig() SufficiencyConfig {
	return SufficiencyConfig{
		MinSuccessfulPeriods:     3,
		MinAnnualReturns:         2,
		MinEvaluationSuccessRate: 0.5,
	}
}

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// Warnings describes every failed check.
func (r *SufficiencyResult) Warnings() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Pass {
			out = append(out, fmt.Sprintf("Insufficient data: %s is %s (need %s)", c.Name, c.Actual, c.Threshold))
		}
	}
	return out
}

// SufficiencyChecker validates that a walk-forward run carries enough evidence.
type SufficiencyChecker struct {
	cfg SufficiencyConfig
}

// NewSufficiencyChecker creates a new sufficiency checker.
func NewSufficiencyChecker(cfg SufficiencyConfig) *SufficiencyChecker {
	return &SufficiencyChecker{cfg: cfg}
}

// Check performs all sufficiency checks against wf.
func (c *SufficiencyChecker) Check(wf *domain.WalkForwardResult) *SufficiencyResult {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 4),
		AllPass: true,
	}
	add := func(check SufficiencyCheck) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	// Check 1: enough successful periods
	add(SufficiencyCheck{
		Name:      "successful periods",
		Threshold: fmt.Sprintf(">= %d", c.cfg.MinSuccessfulPeriods),
		Actual:    fmt.Sprintf("%d of %d", wf.SuccessfulPeriods, wf.TotalPeriods),
		Pass:      wf.SuccessfulPeriods >= c.cfg.MinSuccessfulPeriods,
	})

	// Check 2: enough non-overlapping annual returns to resample
	returns := len(metrics.AnnualReturns(wf.Periods))
	add(SufficiencyCheck{
		Name:      "annual returns",
		Threshold: fmt.Sprintf(">= %d", c.cfg.MinAnnualReturns),
		Actual:    fmt.Sprintf("%d", returns),
		Pass:      returns >= c.cfg.MinAnnualReturns,
	})

	// Check 3: the backtest collaborator mostly succeeded
	evaluated, successful := 0, 0
	for _, p := range wf.Periods {
		evaluated += p.Evaluated
		successful += p.Successful
	}
	rate := 0.0
	if evaluated > 0 {
		rate = float64(successful) / float64(evaluated)
	}
	add(SufficiencyCheck{
		Name:      "evaluation success rate",
		Threshold: fmt.Sprintf(">= %.0f%%", c.cfg.MinEvaluationSuccessRate*100),
		Actual:    fmt.Sprintf("%.0f%% (%d of %d)", rate*100, successful, evaluated),
		Pass:      evaluated > 0 && rate >= c.cfg.MinEvaluationSuccessRate,
	})

	// Check 4: every scheduled period ran
	actual := "completed"
	if wf.Cancelled {
		actual = fmt.Sprintf("cancelled after %d of %d periods", len(wf.Periods), wf.TotalPeriods)
	}
	add(SufficiencyCheck{
		Name:      "run completion",
		Threshold: "completed",
		Actual:    actual,
		Pass:      !wf.Cancelled,
	})

	return result
}

// AsConcerns reports whether failed checks join the assessment concerns.
func (c *SufficiencyChecker) AsConcerns() bool {
	return c.cfg.AsConcerns
}
