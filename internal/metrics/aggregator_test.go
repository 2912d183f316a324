package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/domain"
)

func f(v float64) *float64 { return &v }

func period(year int, sharpe, cagr, dd float64, params domain.Assignment) domain.WalkForwardPeriod {
	return domain.WalkForwardPeriod{
		Test:           domain.YearRange(year, year),
		Params:         params,
		InSampleSharpe: f(sharpe + 0.5),
		OOSSharpe:      f(sharpe),
		OOSCAGR:        f(cagr),
		OOSMaxDrawdown: f(dd),
		Success:        true,
	}
}

func TestAggregate_Basic(t *testing.T) {
	periods := []domain.WalkForwardPeriod{
		period(2013, 1.0, 10, 8, nil),
		period(2014, 0.5, -5, 20, nil),
		period(2015, 1.5, 12, 5, nil),
		period(2016, 1.0, 3, 10, nil),
		{Test: domain.YearRange(2017, 2017), Error: "All parameter combinations failed"},
	}

	agg := Aggregate(periods)
	require.NotNil(t, agg.AvgOOSSharpe)
	assert.InDelta(t, 1.0, *agg.AvgOOSSharpe, 1e-12)
	assert.InDelta(t, 0.5, *agg.WorstOOSSharpe, 1e-12)
	assert.InDelta(t, 5.0, *agg.AvgOOSCAGR, 1e-12)
	assert.InDelta(t, 20.0, *agg.WorstOOSDrawdown, 1e-12)
	assert.InDelta(t, 0.75, *agg.Consistency, 1e-12)
	// avg IS 1.5, avg OOS 1.0
	assert.InDelta(t, 1.0/3.0, *agg.Degradation, 1e-12)
	assert.Nil(t, agg.ParameterStability)
}

func TestAggregate_NothingSuccessful(t *testing.T) {
	agg := Aggregate([]domain.WalkForwardPeriod{{Error: "x"}})
	assert.Nil(t, agg.AvgOOSSharpe)
	assert.Nil(t, agg.WorstOOSSharpe)
	assert.Nil(t, agg.AvgOOSCAGR)
	assert.Nil(t, agg.WorstOOSDrawdown)
	assert.Nil(t, agg.Consistency)
	assert.Nil(t, agg.Degradation)
	assert.Nil(t, agg.ParameterStability)
}

func TestDegradation(t *testing.T) {
	assert.Nil(t, Degradation(nil, nil))
	assert.Nil(t, Degradation([]float64{1, 2}, []float64{1}), "mismatched counts")
	assert.Nil(t, Degradation([]float64{-1, 0}, []float64{1, 1}), "non-positive in-sample average")
	got := Degradation([]float64{2, 2}, []float64{1, 1})
	require.NotNil(t, got)
	assert.InDelta(t, 0.5, *got, 1e-12)
}

func TestParameterStability(t *testing.T) {
	withWindow := func(vals ...int64) []domain.WalkForwardPeriod {
		var out []domain.WalkForwardPeriod
		for i, v := range vals {
			out = append(out, period(2013+i, 1, 1, 1, domain.Assignment{
				"window": domain.IntValue(v),
				"mode":   domain.StringValue("fast"),
				"short":  domain.BoolValue(i%2 == 0),
			}))
		}
		return out
	}

	t.Run("identical values", func(t *testing.T) {
		s, byName := ParameterStability(withWindow(20, 20, 20))
		require.NotNil(t, s)
		assert.Equal(t, 1.0, *s)
		assert.Equal(t, map[string]float64{"window": 1.0}, byName, "non-numeric parameters are excluded")
	})

	t.Run("varying values", func(t *testing.T) {
		s, _ := ParameterStability(withWindow(10, 20))
		require.NotNil(t, s)
		// popStd 5, range 10
		assert.InDelta(t, 0.5, *s, 1e-12)
		assert.Less(t, *s, 1.0)
	})

	t.Run("single period is undefined", func(t *testing.T) {
		s, byName := ParameterStability(withWindow(10))
		assert.Nil(t, s)
		assert.Nil(t, byName)
	})

	t.Run("mean over parameters", func(t *testing.T) {
		periods := []domain.WalkForwardPeriod{
			period(2013, 1, 1, 1, domain.Assignment{"a": domain.IntValue(1), "b": domain.FloatValue(0.1)}),
			period(2014, 1, 1, 1, domain.Assignment{"a": domain.IntValue(1), "b": domain.FloatValue(0.3)}),
		}
		s, byName := ParameterStability(periods)
		require.NotNil(t, s)
		assert.Equal(t, 1.0, byName["a"])
		assert.InDelta(t, 0.5, byName["b"], 1e-12)
		assert.InDelta(t, 0.75, *s, 1e-12)
	})
}

func TestNonOverlappingAndAnnualReturns(t *testing.T) {
	mk := func(start, end int, cagr float64) domain.WalkForwardPeriod {
		return domain.WalkForwardPeriod{Test: domain.YearRange(start, end), OOSCAGR: f(cagr), Success: true}
	}
	periods := []domain.WalkForwardPeriod{
		mk(2015, 2016, 10),
		mk(2016, 2017, 20),
		mk(2017, 2018, 30),
		mk(2018, 2018, 40),
	}

	assert.True(t, HasOverlappingTests(periods))
	kept := NonOverlapping(periods)
	require.Len(t, kept, 2)
	assert.Equal(t, 2015, kept[0].TestYear())
	assert.Equal(t, 2017, kept[1].TestYear())
	assert.Equal(t, []float64{10, 30}, AnnualReturns(periods))

	single := []domain.WalkForwardPeriod{mk(2015, 2015, 1), mk(2016, 2016, 2)}
	assert.False(t, HasOverlappingTests(single))
	assert.Equal(t, []float64{1, 2}, AnnualReturns(single))
}
