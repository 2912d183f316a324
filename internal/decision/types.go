// Package decision turns walk-forward and Monte Carlo findings into a
// risk-adjusted score, a confidence level and a recommendation.
package decision

import (
	"errors"

	"hypothesis-lab/internal/domain"
)

// Validation errors.
var (
	ErrNilInput        = errors.New("assessment input is nil")
	ErrEmptyStrategyID = errors.New("strategy_id is required")
)

// Recommendation texts, keyed by confidence and number of concerns.
const (
	RecommendationDeploy         = "DEPLOY: Passed walk-forward and Monte Carlo validation with no concerns. Proceed to paper trading."
	RecommendationCautiousDeploy = "CAUTIOUS DEPLOY: Viable with minor concerns. Paper trade with reduced position size."
	RecommendationReview         = "REVIEW: Promising but with notable concerns. Address them before deployment."
	RecommendationRework         = "REWORK: Risk-adjusted performance is too weak. Revisit the hypothesis before further testing."
	RecommendationReject         = "REJECT: Failed robustness validation. Do not deploy."
)

// Input contains the metrics an assessment is computed from.
// Nil metrics were unavailable and contribute nothing to the score.
type Input struct {
	StrategyID string

	// Walk-forward
	Sharpe        *float64 // average out-of-sample Sharpe
	Consistency   *float64 // fraction of profitable periods, 0-1
	WorstDrawdown *float64 // percent, non-negative

	// Monte Carlo
	ProbPositive *float64 // 0-1
	P5CAGR       *float64 // percent

	StressTests []domain.StressPeriodResult

	// Concerns raised before scoring, e.g. data sufficiency failures.
	ExtraConcerns []string
}

// Validate checks that input has the fields the assessor needs.
func (in *Input) Validate() error {
	if in == nil {
		return ErrNilInput
	}
	if in.StrategyID == "" {
		return ErrEmptyStrategyID
	}
	return nil
}

// ScoreComponent is one weighted term of the risk-adjusted score.
type ScoreComponent struct {
	Name   string
	Weight float64
	Actual string  // input as rendered, "n/a" when missing
	Points float64 // 0-100 before weighting
}

// Contribution is the weighted share of the final score.
func (c ScoreComponent) Contribution() float64 {
	return c.Weight * c.Points
}

// CriterionResult represents pass/fail for one concern check.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool // false means the check raised a concern
}

// Result contains the assessment with its score breakdown and checklist.
type Result struct {
	StrategyID string
	Assessment domain.Assessment
	Components []ScoreComponent
	Checks     []CriterionResult
}
