package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/domain"
)

func okPeriod(year int, cagr float64) domain.WalkForwardPeriod {
	return domain.WalkForwardPeriod{
		Test:       domain.YearRange(year, year),
		OOSCAGR:    &cagr,
		Evaluated:  4,
		Successful: 4,
		Success:    true,
	}
}

func TestSufficiencyChecker_AllPass(t *testing.T) {
	wf := &domain.WalkForwardResult{
		TotalPeriods:      3,
		SuccessfulPeriods: 3,
		Periods:           []domain.WalkForwardPeriod{okPeriod(2015, 5), okPeriod(2016, -2), okPeriod(2017, 8)},
	}

	res := NewSufficiencyChecker(DefaultSufficiencyConfig()).Check(wf)
	assert.True(t, res.AllPass)
	require.Len(t, res.Checks, 4)
	assert.Empty(t, res.Warnings())
	assert.Equal(t, "100% (12 of 12)", res.Checks[2].Actual)
}

func TestSufficiencyChecker_Failures(t *testing.T) {
	failed := domain.WalkForwardPeriod{Test: domain.YearRange(2016, 2016), Evaluated: 4, Successful: 0}
	wf := &domain.WalkForwardResult{
		TotalPeriods:      3,
		SuccessfulPeriods: 1,
		Cancelled:         true,
		Periods:           []domain.WalkForwardPeriod{okPeriod(2015, 5), failed},
	}

	res := NewSufficiencyChecker(DefaultSufficiencyConfig()).Check(wf)
	assert.False(t, res.AllPass)
	assert.Equal(t, []string{
		"Insufficient data: successful periods is 1 of 3 (need >= 3)",
		"Insufficient data: annual returns is 1 (need >= 2)",
		"Insufficient data: run completion is cancelled after 2 of 3 periods (need completed)",
	}, res.Warnings())
	assert.True(t, res.Checks[2].Pass, "4 of 8 evaluations meets the 50% floor")
}

func TestSufficiencyChecker_NoEvaluations(t *testing.T) {
	res := NewSufficiencyChecker(DefaultSufficiencyConfig()).Check(&domain.WalkForwardResult{})
	assert.False(t, res.Checks[2].Pass)
	assert.Equal(t, "0% (0 of 0)", res.Checks[2].Actual)
}
