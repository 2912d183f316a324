package decision

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/metrics"
	"hypothesis-lab/internal/observability"
)

// Score weights.
const (
	WeightSharpe      = 0.30
	WeightConsistency = 0.20
	WeightDrawdown    = 0.20
	WeightProbability = 0.15
	WeightTail        = 0.15
)

// Concern thresholds.
const (
	MinSharpe             = 0.5
	MinConsistency        = 0.6
	MaxProbLoss           = 0.30
	MinP5CAGR             = 0.0
	SevereStressReturn    = -25.0
	HighConfidenceScore   = 70.0
	MediumConfidenceScore = 50.0
	MaxMediumConcerns     = 2
	RejectConcerns        = 3
)

// Assessor computes assessments.
type Assessor struct {
	log logrus.FieldLogger
}

// NewAssessor creates an assessor.
func NewAssessor(log logrus.FieldLogger) *Assessor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assessor{log: log}
}

// Assess scores input, collects concerns in a fixed order and derives the
// confidence level and recommendation.
func (a *Assessor) Assess(in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	components := Components(in)
	score := 0.0
	for _, c := range components {
		score += c.Contribution()
	}
	score = domain.RoundFloat(score, 2)

	checks := Checks(in)
	var concerns []string
	for _, c := range checks {
		if !c.Pass {
			concerns = append(concerns, c.Name+" ("+c.Actual+")")
		}
	}
	concerns = append(concerns, in.ExtraConcerns...)

	confidence := Confidence(score, len(concerns))
	res := &Result{
		StrategyID: in.StrategyID,
		Assessment: domain.Assessment{
			RiskAdjustedScore: score,
			Confidence:        confidence,
			Recommendation:    Recommend(confidence, len(concerns)),
			Concerns:          concerns,
		},
		Components: components,
		Checks:     checks,
	}

	observability.RecordAssessment(in.StrategyID, score)
	a.log.WithFields(logrus.Fields{
		"strategy_id": in.StrategyID,
		"score":       score,
		"confidence":  confidence,
		"concerns":    len(concerns),
	}).Info("assessment complete")
	return res, nil
}

// Components returns the five weighted score terms. Missing inputs score 0.
func Components(in Input) []ScoreComponent {
	comps := []ScoreComponent{
		{Name: "Walk-forward Sharpe", Weight: WeightSharpe},
		{Name: "Consistency", Weight: WeightConsistency},
		{Name: "Worst drawdown", Weight: WeightDrawdown},
		{Name: "Probability of positive CAGR", Weight: WeightProbability},
		{Name: "5th percentile CAGR", Weight: WeightTail},
	}
	for i := range comps {
		comps[i].Actual = "n/a"
	}

	if in.Sharpe != nil {
		comps[0].Actual = fmt.Sprintf("%.2f", *in.Sharpe)
		comps[0].Points = metrics.Clamp(*in.Sharpe*50, 0, 100)
	}
	if in.Consistency != nil {
		comps[1].Actual = fmt.Sprintf("%.0f%%", *in.Consistency*100)
		comps[1].Points = metrics.Clamp(*in.Consistency*100, 0, 100)
	}
	if in.WorstDrawdown != nil {
		comps[2].Actual = fmt.Sprintf("%.2f%%", *in.WorstDrawdown)
		comps[2].Points = metrics.Clamp(100-2*(*in.WorstDrawdown), 0, 100)
	}
	if in.ProbPositive != nil {
		comps[3].Actual = fmt.Sprintf("%.1f%%", *in.ProbPositive*100)
		comps[3].Points = metrics.Clamp(*in.ProbPositive*100, 0, 100)
	}
	if in.P5CAGR != nil {
		comps[4].Actual = fmt.Sprintf("%.2f%%", *in.P5CAGR)
		comps[4].Points = metrics.Clamp(50+*in.P5CAGR, 0, 100)
	}
	return comps
}

// Checks evaluates the concern checks in reporting order. Checks whose
// input is missing are omitted.
func Checks(in Input) []CriterionResult {
	var checks []CriterionResult

	if in.Sharpe != nil {
		checks = append(checks, CriterionResult{
			Name:      "Low walk-forward Sharpe",
			Threshold: fmt.Sprintf(">= %.1f", MinSharpe),
			Actual:    fmt.Sprintf("%.2f", *in.Sharpe),
			Pass:      *in.Sharpe >= MinSharpe,
		})
	}
	if in.Consistency != nil {
		checks = append(checks, CriterionResult{
			Name:      "Low consistency",
			Threshold: fmt.Sprintf(">= %.0f%%", MinConsistency*100),
			Actual:    fmt.Sprintf("%.0f%%", *in.Consistency*100),
			Pass:      *in.Consistency >= MinConsistency,
		})
	}
	if in.ProbPositive != nil {
		probLoss := 1 - *in.ProbPositive
		checks = append(checks, CriterionResult{
			Name:      "High probability of loss",
			Threshold: fmt.Sprintf("<= %.0f%%", MaxProbLoss*100),
			Actual:    fmt.Sprintf("%.1f%%", probLoss*100),
			Pass:      probLoss <= MaxProbLoss,
		})
	}
	if in.P5CAGR != nil {
		checks = append(checks, CriterionResult{
			Name:      "Negative 5th percentile CAGR",
			Threshold: ">= 0%",
			Actual:    fmt.Sprintf("%.2f%%", *in.P5CAGR),
			Pass:      *in.P5CAGR >= MinP5CAGR,
		})
	}
	for _, s := range in.StressTests {
		if s.Return == nil {
			continue
		}
		checks = append(checks, CriterionResult{
			Name:      "Severe loss in " + s.Name,
			Threshold: fmt.Sprintf(">= %.0f%%", SevereStressReturn),
			Actual:    fmt.Sprintf("%.2f%%", *s.Return),
			Pass:      *s.Return >= SevereStressReturn,
		})
	}
	for _, s := range in.StressTests {
		if s.Recovery == domain.RecoveryUnknown || s.Recovery == "" {
			continue
		}
		actual := string(s.Recovery)
		if s.FollowingReturn != nil {
			actual = fmt.Sprintf("%s, %.2f%% following year", s.Recovery, *s.FollowingReturn)
		}
		checks = append(checks, CriterionResult{
			Name:      "Weak recovery after " + s.Name,
			Threshold: "moderate or strong",
			Actual:    actual,
			Pass:      s.Recovery != domain.RecoveryWeak,
		})
	}
	return checks
}

// Confidence derives the confidence level from the score and concern count.
func Confidence(score float64, concerns int) domain.ConfidenceLevel {
	switch {
	case score >= HighConfidenceScore && concerns == 0:
		return domain.ConfidenceHigh
	case score >= MediumConfidenceScore && concerns <= MaxMediumConcerns:
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceLow
}

// Recommend maps confidence and concern count to a recommendation.
func Recommend(confidence domain.ConfidenceLevel, concerns int) string {
	switch confidence {
	case domain.ConfidenceHigh:
		return RecommendationDeploy
	case domain.ConfidenceMedium:
		if concerns <= 1 {
			return RecommendationCautiousDeploy
		}
		return RecommendationReview
	}
	if concerns >= RejectConcerns {
		return RecommendationReject
	}
	return RecommendationRework
}
