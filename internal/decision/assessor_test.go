package decision

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/domain"
)

func f(v float64) *float64 { return &v }

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func strongInput() Input {
	return Input{
		StrategyID:    "mom-1",
		Sharpe:        f(1.6),
		Consistency:   f(0.9),
		WorstDrawdown: f(10),
		ProbPositive:  f(0.95),
		P5CAGR:        f(4),
	}
}

func TestAssess_Deploy(t *testing.T) {
	res, err := NewAssessor(quietLogger()).Assess(strongInput())
	require.NoError(t, err)

	// 0.3*80 + 0.2*90 + 0.2*80 + 0.15*95 + 0.15*54
	assert.InDelta(t, 80.35, res.Assessment.RiskAdjustedScore, 1e-9)
	assert.Equal(t, domain.ConfidenceHigh, res.Assessment.Confidence)
	assert.Empty(t, res.Assessment.Concerns)
	assert.Equal(t, RecommendationDeploy, res.Assessment.Recommendation)
	assert.Len(t, res.Components, 5)
}

func TestAssess_ConcernOrder(t *testing.T) {
	in := Input{
		StrategyID:    "weak",
		Sharpe:        f(0.2),
		Consistency:   f(0.4),
		WorstDrawdown: f(45),
		ProbPositive:  f(0.55),
		P5CAGR:        f(-12),
		StressTests: []domain.StressPeriodResult{
			{Name: "2020 COVID Crash", Year: 2020, Return: f(-31), Recovery: domain.RecoveryWeak, FollowingReturn: f(3)},
		},
		ExtraConcerns: []string{"Insufficient data: 2 successful periods (minimum 3)"},
	}

	res, err := NewAssessor(quietLogger()).Assess(in)
	require.NoError(t, err)

	require.Len(t, res.Assessment.Concerns, 7)
	assert.Equal(t, "Low walk-forward Sharpe (0.20)", res.Assessment.Concerns[0])
	assert.Equal(t, "Low consistency (40%)", res.Assessment.Concerns[1])
	assert.Equal(t, "High probability of loss (45.0%)", res.Assessment.Concerns[2])
	assert.Equal(t, "Negative 5th percentile CAGR (-12.00%)", res.Assessment.Concerns[3])
	assert.Equal(t, "Severe loss in 2020 COVID Crash (-31.00%)", res.Assessment.Concerns[4])
	assert.Contains(t, res.Assessment.Concerns[5], "Weak recovery after 2020 COVID Crash")
	assert.Equal(t, in.ExtraConcerns[0], res.Assessment.Concerns[6])

	assert.Equal(t, domain.ConfidenceLow, res.Assessment.Confidence)
	assert.Equal(t, RecommendationReject, res.Assessment.Recommendation)
}

func TestAssess_MissingInputsScoreZero(t *testing.T) {
	res, err := NewAssessor(quietLogger()).Assess(Input{StrategyID: "empty"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Assessment.RiskAdjustedScore)
	assert.Empty(t, res.Checks)
	assert.Equal(t, domain.ConfidenceLow, res.Assessment.Confidence)
	assert.Equal(t, RecommendationRework, res.Assessment.Recommendation)
	for _, c := range res.Components {
		assert.Equal(t, "n/a", c.Actual)
	}
}

func TestAssess_Validation(t *testing.T) {
	_, err := NewAssessor(quietLogger()).Assess(Input{})
	assert.ErrorIs(t, err, ErrEmptyStrategyID)

	var in *Input
	assert.ErrorIs(t, in.Validate(), ErrNilInput)
}

func TestScore_Monotonic(t *testing.T) {
	score := func(in Input) float64 {
		total := 0.0
		for _, c := range Components(in) {
			total += c.Contribution()
		}
		return total
	}
	base := Input{
		StrategyID:    "m",
		Sharpe:        f(0.8),
		Consistency:   f(0.5),
		WorstDrawdown: f(20),
		ProbPositive:  f(0.6),
		P5CAGR:        f(-5),
	}
	b := score(base)

	bump := []func(in *Input){
		func(in *Input) { in.Sharpe = f(1.2) },
		func(in *Input) { in.Consistency = f(0.8) },
		func(in *Input) { in.WorstDrawdown = f(10) },
		func(in *Input) { in.ProbPositive = f(0.9) },
		func(in *Input) { in.P5CAGR = f(5) },
	}
	for i, fn := range bump {
		in := base
		fn(&in)
		assert.GreaterOrEqual(t, score(in), b, "component %d", i)
	}

	in := base
	in.Sharpe = f(10)
	assert.InDelta(t, 0.3*100, Components(in)[0].Contribution(), 1e-9, "sharpe points cap at 100")
}

func TestConfidenceAndRecommendation(t *testing.T) {
	tests := []struct {
		score    float64
		concerns int
		conf     domain.ConfidenceLevel
		rec      string
	}{
		{75, 0, domain.ConfidenceHigh, RecommendationDeploy},
		{75, 1, domain.ConfidenceMedium, RecommendationCautiousDeploy},
		{55, 0, domain.ConfidenceMedium, RecommendationCautiousDeploy},
		{55, 2, domain.ConfidenceMedium, RecommendationReview},
		{55, 3, domain.ConfidenceLow, RecommendationReject},
		{40, 0, domain.ConfidenceLow, RecommendationRework},
		{40, 2, domain.ConfidenceLow, RecommendationRework},
		{90, 5, domain.ConfidenceLow, RecommendationReject},
	}
	for _, tt := range tests {
		conf := Confidence(tt.score, tt.concerns)
		assert.Equal(t, tt.conf, conf, "score=%v concerns=%d", tt.score, tt.concerns)
		assert.Equal(t, tt.rec, Recommend(conf, tt.concerns), "score=%v concerns=%d", tt.score, tt.concerns)
	}
}

func TestBuildInput(t *testing.T) {
	wf := &domain.WalkForwardResult{
		StrategyID: "mom-1",
		Aggregate: domain.AggregateMetrics{
			AvgOOSSharpe:     f(1.1),
			Consistency:      f(0.75),
			WorstOOSDrawdown: f(18),
		},
	}
	mc := &domain.MonteCarloResult{ProbPositive: 0.8, P5CAGR: -2}

	in := BuildInput(wf, mc, nil, []string{"x"})
	assert.Equal(t, "mom-1", in.StrategyID)
	assert.Equal(t, 1.1, *in.Sharpe)
	assert.Equal(t, 0.8, *in.ProbPositive)
	assert.Equal(t, -2.0, *in.P5CAGR)
	assert.Equal(t, []string{"x"}, in.ExtraConcerns)

	noMC := BuildInput(wf, nil, nil, nil)
	assert.Nil(t, noMC.ProbPositive)
	assert.Nil(t, noMC.P5CAGR)
}

func TestRenderMarkdown(t *testing.T) {
	in := strongInput()
	in.Sharpe = f(0.3)
	res, err := NewAssessor(quietLogger()).Assess(in)
	require.NoError(t, err)

	md := RenderMarkdown(res)
	assert.Contains(t, md, "# Risk Assessment")
	assert.Contains(t, md, "## Recommendation: "+res.Assessment.Recommendation)
	assert.Contains(t, md, "| 1 | Low walk-forward Sharpe | >= 0.5 | 0.30 | CONCERN |")
	assert.Contains(t, md, "- Low walk-forward Sharpe (0.30)")
}
