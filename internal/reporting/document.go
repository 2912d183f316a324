package reporting

import (
	"fmt"
	"time"

	"hypothesis-lab/internal/domain"
)

// EvaluationRow is the serialized form of one parameter evaluation.
type EvaluationRow struct {
	Params      domain.Assignment `json:"params"`
	Sharpe      *float64          `json:"sharpe"`
	CAGR        *float64          `json:"cagr"`
	MaxDrawdown *float64          `json:"max_drawdown"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
	Cached      bool              `json:"cached,omitempty"`
}

// OptimizationDocument is the serialized form of one optimizer run.
type OptimizationDocument struct {
	StrategyID      string            `json:"strategy_id"`
	StartDate       string            `json:"start_date"`
	EndDate         string            `json:"end_date"`
	Method          string            `json:"method"`
	Objective       string            `json:"objective"`
	BestParams      domain.Assignment `json:"best_params"`
	BestObjective   *float64          `json:"best_objective"`
	BestSharpe      *float64          `json:"best_sharpe"`
	BestCAGR        *float64          `json:"best_cagr"`
	BestMaxDrawdown *float64          `json:"best_max_drawdown"`
	TotalEvaluated  int               `json:"total_evaluated"`
	Successful      int               `json:"successful"`
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	Evaluations     []EvaluationRow   `json:"evaluations"`
}

// ConfigDocument is the serialized walk-forward configuration.
type ConfigDocument struct {
	StartYear         int    `json:"start_year"`
	EndYear           int    `json:"end_year"`
	InitialTrainYears int    `json:"initial_train_years"`
	TestYears         int    `json:"test_years"`
	Policy            string `json:"policy"`
	MaxEvaluations    int    `json:"max_evaluations"`
	Method            string `json:"method"`
	Objective         string `json:"objective"`
}

// PeriodRow is the serialized form of one walk-forward period.
type PeriodRow struct {
	Index             int               `json:"index"`
	OptimizeStart     string            `json:"optimize_start"`
	OptimizeEnd       string            `json:"optimize_end"`
	TestStart         string            `json:"test_start"`
	TestEnd           string            `json:"test_end"`
	Params            domain.Assignment `json:"params"`
	InSampleObjective *float64          `json:"in_sample_objective"`
	InSampleSharpe    *float64          `json:"in_sample_sharpe"`
	OOSSharpe         *float64          `json:"oos_sharpe"`
	OOSCAGR           *float64          `json:"oos_cagr"`
	OOSMaxDrawdown    *float64          `json:"oos_max_drawdown"`
	Evaluated         int               `json:"evaluated"`
	Successful        int               `json:"successful"`
	Success           bool              `json:"success"`
	Error             string            `json:"error,omitempty"`
}

// AggregateDocument holds the walk-forward aggregates. Undefined values are null.
type AggregateDocument struct {
	AvgOOSSharpe             *float64           `json:"avg_oos_sharpe"`
	WorstOOSSharpe           *float64           `json:"worst_oos_sharpe"`
	AvgOOSCAGR               *float64           `json:"avg_oos_cagr"`
	WorstOOSDrawdown         *float64           `json:"worst_oos_drawdown"`
	Consistency              *float64           `json:"consistency"`
	Degradation              *float64           `json:"degradation"`
	ParameterStability       *float64           `json:"parameter_stability"`
	ParameterStabilityByName map[string]float64 `json:"parameter_stability_by_name,omitempty"`
}

// WalkForwardDocument is the serialized form of a walk-forward run.
type WalkForwardDocument struct {
	RunID                  string            `json:"run_id"`
	StrategyID             string            `json:"strategy_id"`
	Timestamp              time.Time         `json:"timestamp"`
	Config                 ConfigDocument    `json:"config"`
	TotalPeriods           int               `json:"total_periods"`
	SuccessfulPeriods      int               `json:"successful_periods"`
	OverlappingTestWindows bool              `json:"overlapping_test_windows"`
	Cancelled              bool              `json:"cancelled,omitempty"`
	Success                bool              `json:"success"`
	Error                  string            `json:"error,omitempty"`
	BestParams             domain.Assignment `json:"best_params"`
	BestSharpe             *float64          `json:"best_sharpe"`
	AggregateDocument
	Periods []PeriodRow `json:"periods"`
}

// MonteCarloDocument is the serialized Monte Carlo summary.
type MonteCarloDocument struct {
	Simulations       int     `json:"simulations"`
	Years             int     `json:"years"`
	SampleSize        int     `json:"sample_size"`
	MeanCAGR          float64 `json:"mean_cagr"`
	MedianCAGR        float64 `json:"median_cagr"`
	P5CAGR            float64 `json:"p5_cagr"`
	P95CAGR           float64 `json:"p95_cagr"`
	ProbPositive      float64 `json:"prob_positive"`
	ProbBeatBenchmark float64 `json:"prob_beat_benchmark"`
	BenchmarkReturn   float64 `json:"benchmark_return"`
	BestCAGR          float64 `json:"best_cagr"`
	WorstCAGR         float64 `json:"worst_cagr"`
}

// StressRow is the serialized form of one stress period.
type StressRow struct {
	Name            string   `json:"name"`
	Year            int      `json:"year"`
	Return          *float64 `json:"return"`
	Sharpe          *float64 `json:"sharpe"`
	MaxDrawdown     *float64 `json:"max_drawdown"`
	Recovery        string   `json:"recovery"`
	FollowingReturn *float64 `json:"following_return"`
}

// AssessmentDocument is the serialized assessment.
type AssessmentDocument struct {
	RiskAdjustedScore float64  `json:"risk_adjusted_score"`
	ConfidenceLevel   string   `json:"confidence_level"`
	Recommendation    string   `json:"recommendation"`
	Concerns          []string `json:"concerns"`
}

// WalkForwardSummaryDocument is the walk-forward part of a Phase 3 document.
type WalkForwardSummaryDocument struct {
	TotalPeriods           int               `json:"total_periods"`
	SuccessfulPeriods      int               `json:"successful_periods"`
	BestParams             domain.Assignment `json:"best_params"`
	BestSharpe             *float64          `json:"best_sharpe"`
	OverlappingTestWindows bool              `json:"overlapping_test_windows"`
	Error                  string            `json:"error,omitempty"`
	AggregateDocument
}

// Phase3Document is the serialized form of a Phase 3 result.
type Phase3Document struct {
	RunID       string                     `json:"run_id"`
	StrategyID  string                     `json:"strategy_id"`
	Timestamp   time.Time                  `json:"timestamp"`
	WalkForward WalkForwardSummaryDocument `json:"walk_forward"`
	Periods     []PeriodRow                `json:"periods"`
	MonteCarlo  *MonteCarloDocument        `json:"monte_carlo"`
	StressTests []StressRow                `json:"stress_tests"`
	Assessment  AssessmentDocument         `json:"assessment"`
	Warnings    []string                   `json:"warnings"`
}

// NewOptimizationDocument converts an optimizer result.
func NewOptimizationDocument(r *domain.OptimizationResult) *OptimizationDocument {
	doc := &OptimizationDocument{
		StrategyID:      r.StrategyID,
		StartDate:       r.Range.StartDate(),
		EndDate:         r.Range.EndDate(),
		Method:          string(r.Method),
		Objective:       string(r.Objective),
		BestParams:      emptyIfNil(r.BestParams),
		BestObjective:   r.BestObjective,
		BestSharpe:      r.BestSharpe,
		BestCAGR:        r.BestCAGR,
		BestMaxDrawdown: r.BestDrawdown,
		TotalEvaluated:  r.TotalEvaluated,
		Successful:      r.Successful,
		Success:         r.Success,
		Error:           r.Error,
		Evaluations:     make([]EvaluationRow, len(r.Evaluations)),
	}
	for i, e := range r.Evaluations {
		doc.Evaluations[i] = NewEvaluationRow(e)
	}
	return doc
}

// NewEvaluationRow converts one evaluation.
func NewEvaluationRow(e domain.ParameterEvaluation) EvaluationRow {
	return EvaluationRow{
		Params:      emptyIfNil(e.Params),
		Sharpe:      e.Sharpe,
		CAGR:        e.CAGR,
		MaxDrawdown: e.MaxDrawdown,
		Success:     e.Success,
		Error:       e.Error,
		DurationMS:  e.Duration.Milliseconds(),
		Cached:      e.Cached,
	}
}

// NewWalkForwardDocument converts a walk-forward result.
func NewWalkForwardDocument(r *domain.WalkForwardResult) *WalkForwardDocument {
	best, bestSharpe := latestBest(r.Periods)
	return &WalkForwardDocument{
		RunID:      r.RunID,
		StrategyID: r.StrategyID,
		Timestamp:  r.Timestamp,
		Config: ConfigDocument{
			StartYear:         r.Config.StartYear,
			EndYear:           r.Config.EndYear,
			InitialTrainYears: r.Config.InitialTrainYears,
			TestYears:         r.Config.TestYears,
			Policy:            string(r.Config.Policy),
			MaxEvaluations:    r.Config.MaxEvaluations,
			Method:            string(r.Config.Method),
			Objective:         string(r.Config.Objective),
		},
		TotalPeriods:           r.TotalPeriods,
		SuccessfulPeriods:      r.SuccessfulPeriods,
		OverlappingTestWindows: r.OverlappingTestWindows,
		Cancelled:              r.Cancelled,
		Success:                r.Success,
		Error:                  r.Error,
		BestParams:             best,
		BestSharpe:             bestSharpe,
		AggregateDocument:      newAggregateDocument(r.Aggregate),
		Periods:                newPeriodRows(r.Periods),
	}
}

// Result converts the document back into a walk-forward result.
func (d *WalkForwardDocument) Result() (*domain.WalkForwardResult, error) {
	periods, err := periodsFromRows(d.Periods)
	if err != nil {
		return nil, err
	}
	return &domain.WalkForwardResult{
		RunID:      d.RunID,
		StrategyID: d.StrategyID,
		Config: domain.WalkForwardConfig{
			StartYear:         d.Config.StartYear,
			EndYear:           d.Config.EndYear,
			InitialTrainYears: d.Config.InitialTrainYears,
			TestYears:         d.Config.TestYears,
			Policy:            domain.WindowPolicy(d.Config.Policy),
			MaxEvaluations:    d.Config.MaxEvaluations,
			Method:            domain.SearchMethod(d.Config.Method),
			Objective:         domain.ObjectiveMetric(d.Config.Objective),
		},
		Periods:                periods,
		Aggregate:              d.AggregateDocument.aggregate(),
		TotalPeriods:           d.TotalPeriods,
		SuccessfulPeriods:      d.SuccessfulPeriods,
		OverlappingTestWindows: d.OverlappingTestWindows,
		Cancelled:              d.Cancelled,
		Success:                d.Success,
		Error:                  d.Error,
		Timestamp:              d.Timestamp,
	}, nil
}

// NewPhase3Document converts a Phase 3 result.
func NewPhase3Document(r *domain.Phase3Result) *Phase3Document {
	doc := &Phase3Document{
		RunID:      r.RunID,
		StrategyID: r.StrategyID,
		Timestamp:  r.Timestamp,
		WalkForward: WalkForwardSummaryDocument{
			TotalPeriods:           r.WalkForward.TotalPeriods,
			SuccessfulPeriods:      r.WalkForward.SuccessfulPeriods,
			BestParams:             emptyIfNil(r.WalkForward.BestParams),
			BestSharpe:             r.WalkForward.BestSharpe,
			OverlappingTestWindows: r.WalkForward.OverlappingTestWindows,
			Error:                  r.WalkForward.Error,
			AggregateDocument:      newAggregateDocument(r.WalkForward.Aggregate),
		},
		Periods:     newPeriodRows(r.Periods),
		StressTests: make([]StressRow, len(r.StressTests)),
		Assessment: AssessmentDocument{
			RiskAdjustedScore: r.Assessment.RiskAdjustedScore,
			ConfidenceLevel:   string(r.Assessment.Confidence),
			Recommendation:    r.Assessment.Recommendation,
			Concerns:          r.Assessment.Concerns,
		},
	}
	if doc.Assessment.Concerns == nil {
		doc.Assessment.Concerns = []string{}
	}
	doc.Warnings = append([]string{}, r.Warnings...)
	if mc := r.MonteCarlo; mc != nil {
		doc.MonteCarlo = &MonteCarloDocument{
			Simulations:       mc.Simulations,
			Years:             mc.Years,
			SampleSize:        mc.SampleSize,
			MeanCAGR:          mc.MeanCAGR,
			MedianCAGR:        mc.MedianCAGR,
			P5CAGR:            mc.P5CAGR,
			P95CAGR:           mc.P95CAGR,
			ProbPositive:      mc.ProbPositive,
			ProbBeatBenchmark: mc.ProbBeatBenchmark,
			BenchmarkReturn:   mc.BenchmarkReturn,
			BestCAGR:          mc.BestCAGR,
			WorstCAGR:         mc.WorstCAGR,
		}
	}
	for i, s := range r.StressTests {
		doc.StressTests[i] = StressRow{
			Name:            s.Name,
			Year:            s.Year,
			Return:          s.Return,
			Sharpe:          s.Sharpe,
			MaxDrawdown:     s.MaxDrawdown,
			Recovery:        string(s.Recovery),
			FollowingReturn: s.FollowingReturn,
		}
	}
	return doc
}

// Result converts the document back into a Phase 3 result.
func (d *Phase3Document) Result() (*domain.Phase3Result, error) {
	periods, err := periodsFromRows(d.Periods)
	if err != nil {
		return nil, err
	}
	res := &domain.Phase3Result{
		RunID:      d.RunID,
		StrategyID: d.StrategyID,
		Timestamp:  d.Timestamp,
		WalkForward: domain.WalkForwardSummary{
			TotalPeriods:           d.WalkForward.TotalPeriods,
			SuccessfulPeriods:      d.WalkForward.SuccessfulPeriods,
			BestParams:             d.WalkForward.BestParams,
			BestSharpe:             d.WalkForward.BestSharpe,
			Aggregate:              d.WalkForward.AggregateDocument.aggregate(),
			OverlappingTestWindows: d.WalkForward.OverlappingTestWindows,
			Error:                  d.WalkForward.Error,
		},
		Periods: periods,
		Assessment: domain.Assessment{
			RiskAdjustedScore: d.Assessment.RiskAdjustedScore,
			Confidence:        domain.ConfidenceLevel(d.Assessment.ConfidenceLevel),
			Recommendation:    d.Assessment.Recommendation,
			Concerns:          d.Assessment.Concerns,
		},
		Warnings: d.Warnings,
	}
	if mc := d.MonteCarlo; mc != nil {
		res.MonteCarlo = &domain.MonteCarloResult{
			Simulations:       mc.Simulations,
			Years:             mc.Years,
			SampleSize:        mc.SampleSize,
			MeanCAGR:          mc.MeanCAGR,
			MedianCAGR:        mc.MedianCAGR,
			P5CAGR:            mc.P5CAGR,
			P95CAGR:           mc.P95CAGR,
			ProbPositive:      mc.ProbPositive,
			ProbBeatBenchmark: mc.ProbBeatBenchmark,
			BenchmarkReturn:   mc.BenchmarkReturn,
			BestCAGR:          mc.BestCAGR,
			WorstCAGR:         mc.WorstCAGR,
		}
	}
	for _, s := range d.StressTests {
		res.StressTests = append(res.StressTests, domain.StressPeriodResult{
			Name:            s.Name,
			Year:            s.Year,
			Return:          s.Return,
			Sharpe:          s.Sharpe,
			MaxDrawdown:     s.MaxDrawdown,
			Recovery:        domain.RecoveryRating(s.Recovery),
			FollowingReturn: s.FollowingReturn,
		})
	}
	return res, nil
}

// SummarizeWalkForward extracts the Phase 3 walk-forward summary. The best
// params are those of the most recent successful period.
func SummarizeWalkForward(r *domain.WalkForwardResult) domain.WalkForwardSummary {
	best, bestSharpe := latestBest(r.Periods)
	if len(best) == 0 {
		best = nil
	}
	return domain.WalkForwardSummary{
		TotalPeriods:           r.TotalPeriods,
		SuccessfulPeriods:      r.SuccessfulPeriods,
		BestParams:             best,
		BestSharpe:             bestSharpe,
		Aggregate:              r.Aggregate,
		OverlappingTestWindows: r.OverlappingTestWindows,
		Error:                  r.Error,
	}
}

func latestBest(periods []domain.WalkForwardPeriod) (domain.Assignment, *float64) {
	for i := len(periods) - 1; i >= 0; i-- {
		if periods[i].Success {
			return periods[i].Params.Clone(), periods[i].InSampleSharpe
		}
	}
	return domain.Assignment{}, nil
}

func newAggregateDocument(a domain.AggregateMetrics) AggregateDocument {
	return AggregateDocument{
		AvgOOSSharpe:             a.AvgOOSSharpe,
		WorstOOSSharpe:           a.WorstOOSSharpe,
		AvgOOSCAGR:               a.AvgOOSCAGR,
		WorstOOSDrawdown:         a.WorstOOSDrawdown,
		Consistency:              a.Consistency,
		Degradation:              a.Degradation,
		ParameterStability:       a.ParameterStability,
		ParameterStabilityByName: a.ParameterStabilityByName,
	}
}

func (d AggregateDocument) aggregate() domain.AggregateMetrics {
	return domain.AggregateMetrics{
		AvgOOSSharpe:             d.AvgOOSSharpe,
		WorstOOSSharpe:           d.WorstOOSSharpe,
		AvgOOSCAGR:               d.AvgOOSCAGR,
		WorstOOSDrawdown:         d.WorstOOSDrawdown,
		Consistency:              d.Consistency,
		Degradation:              d.Degradation,
		ParameterStability:       d.ParameterStability,
		ParameterStabilityByName: d.ParameterStabilityByName,
	}
}

func newPeriodRows(periods []domain.WalkForwardPeriod) []PeriodRow {
	rows := make([]PeriodRow, len(periods))
	for i, p := range periods {
		rows[i] = PeriodRow{
			Index:             p.Index,
			OptimizeStart:     p.Optimize.StartDate(),
			OptimizeEnd:       p.Optimize.EndDate(),
			TestStart:         p.Test.StartDate(),
			TestEnd:           p.Test.EndDate(),
			Params:            p.Params,
			InSampleObjective: p.InSampleObjective,
			InSampleSharpe:    p.InSampleSharpe,
			OOSSharpe:         p.OOSSharpe,
			OOSCAGR:           p.OOSCAGR,
			OOSMaxDrawdown:    p.OOSMaxDrawdown,
			Evaluated:         p.Evaluated,
			Successful:        p.Successful,
			Success:           p.Success,
			Error:             p.Error,
		}
	}
	return rows
}

func periodsFromRows(rows []PeriodRow) ([]domain.WalkForwardPeriod, error) {
	periods := make([]domain.WalkForwardPeriod, len(rows))
	for i, row := range rows {
		opt, err := parseRange(row.OptimizeStart, row.OptimizeEnd)
		if err != nil {
			return nil, fmt.Errorf("period %d optimize range: %w", row.Index, err)
		}
		test, err := parseRange(row.TestStart, row.TestEnd)
		if err != nil {
			return nil, fmt.Errorf("period %d test range: %w", row.Index, err)
		}
		periods[i] = domain.WalkForwardPeriod{
			Index:             row.Index,
			Optimize:          opt,
			Test:              test,
			Params:            row.Params,
			InSampleObjective: row.InSampleObjective,
			InSampleSharpe:    row.InSampleSharpe,
			OOSSharpe:         row.OOSSharpe,
			OOSCAGR:           row.OOSCAGR,
			OOSMaxDrawdown:    row.OOSMaxDrawdown,
			Evaluated:         row.Evaluated,
			Successful:        row.Successful,
			Success:           row.Success,
			Error:             row.Error,
		}
	}
	return periods, nil
}

func parseRange(start, end string) (domain.DateRange, error) {
	s, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return domain.DateRange{}, err
	}
	e, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.DateRange{Start: s, End: e}, nil
}

func emptyIfNil(a domain.Assignment) domain.Assignment {
	if a == nil {
		return domain.Assignment{}
	}
	return a
}
