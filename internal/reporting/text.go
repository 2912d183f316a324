package reporting

import (
	"fmt"
	"strings"

	"hypothesis-lab/internal/decision"
	"hypothesis-lab/internal/domain"
)

// Walk-forward verdicts.
const (
	VerdictRobust   = "ROBUST"
	VerdictMarginal = "MARGINAL"
	VerdictWeak     = "WEAK"
	VerdictFailed   = "FAILED"
)

// MaxDegradation is the highest in-sample to out-of-sample Sharpe decay
// still considered robust.
const MaxDegradation = 0.5

const rule = "============================================================\n"

// Verdict classifies a walk-forward result from its aggregates.
func Verdict(r *domain.WalkForwardResult) string {
	if !r.Success {
		return VerdictFailed
	}
	a := r.Aggregate
	if a.AvgOOSSharpe == nil || *a.AvgOOSSharpe <= 0 {
		return VerdictWeak
	}
	robust := *a.AvgOOSSharpe >= decision.MinSharpe &&
		a.Consistency != nil && *a.Consistency >= decision.MinConsistency &&
		(a.Degradation == nil || *a.Degradation <= MaxDegradation)
	if robust {
		return VerdictRobust
	}
	return VerdictMarginal
}

// RenderOptimizationText renders a single optimizer run for the terminal.
func RenderOptimizationText(r *domain.OptimizationResult) string {
	var sb strings.Builder
	section(&sb, "OPTIMIZATION")
	sb.WriteString(fmt.Sprintf("Strategy:    %s\n", r.StrategyID))
	sb.WriteString(fmt.Sprintf("Range:       %s\n", r.Range))
	sb.WriteString(fmt.Sprintf("Method:      %s\n", r.Method))
	sb.WriteString(fmt.Sprintf("Objective:   %s\n", r.Objective))
	sb.WriteString(fmt.Sprintf("Evaluated:   %d (%d successful)\n", r.TotalEvaluated, r.Successful))
	sb.WriteString("\n")

	section(&sb, "EVALUATIONS")
	for i, e := range r.Evaluations {
		status := "ok"
		if !e.Success {
			status = "FAILED: " + e.Error
		}
		sb.WriteString(fmt.Sprintf("%3d. %-40s sharpe=%s cagr=%s dd=%s %s\n",
			i+1, e.Params.String(),
			formatFloat(e.Sharpe, "%.2f"), formatFloat(e.CAGR, "%.2f%%"), formatFloat(e.MaxDrawdown, "%.2f%%"),
			status))
	}
	sb.WriteString("\n")

	section(&sb, "RESULT")
	if !r.Success {
		sb.WriteString(fmt.Sprintf("FAILED: %s\n", r.Error))
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Best params: %s\n", r.BestParams.String()))
	sb.WriteString(fmt.Sprintf("Objective:   %s\n", formatFloat(r.BestObjective, "%.4f")))
	sb.WriteString(fmt.Sprintf("Sharpe:      %s\n", formatFloat(r.BestSharpe, "%.2f")))
	sb.WriteString(fmt.Sprintf("CAGR:        %s\n", formatFloat(r.BestCAGR, "%.2f%%")))
	sb.WriteString(fmt.Sprintf("Max DD:      %s\n", formatFloat(r.BestDrawdown, "%.2f%%")))
	return sb.String()
}

// RenderWalkForwardText renders a walk-forward result for the terminal.
// The output depends only on r.
func RenderWalkForwardText(r *domain.WalkForwardResult) string {
	var sb strings.Builder
	writeWalkForward(&sb, r)
	section(&sb, "VERDICT")
	verdict := Verdict(r)
	sb.WriteString(fmt.Sprintf("%s: %d/%d periods succeeded\n", verdict, r.SuccessfulPeriods, r.TotalPeriods))
	if r.Error != "" {
		sb.WriteString(fmt.Sprintf("Note: %s\n", r.Error))
	}
	return sb.String()
}

// RenderPhase3Text renders a Phase 3 result together with its walk-forward run.
func RenderPhase3Text(wf *domain.WalkForwardResult, r *domain.Phase3Result) string {
	var sb strings.Builder
	writeWalkForward(&sb, wf)

	section(&sb, "MONTE CARLO")
	if mc := r.MonteCarlo; mc == nil {
		sb.WriteString("Not run: no annual returns available\n")
	} else {
		sb.WriteString(fmt.Sprintf("Simulations:        %d x %d years (sample of %d returns)\n", mc.Simulations, mc.Years, mc.SampleSize))
		sb.WriteString(fmt.Sprintf("Mean CAGR:          %.2f%%\n", mc.MeanCAGR))
		sb.WriteString(fmt.Sprintf("Median CAGR:        %.2f%%\n", mc.MedianCAGR))
		sb.WriteString(fmt.Sprintf("5th percentile:     %.2f%%\n", mc.P5CAGR))
		sb.WriteString(fmt.Sprintf("95th percentile:    %.2f%%\n", mc.P95CAGR))
		sb.WriteString(fmt.Sprintf("Range:              %.2f%% .. %.2f%%\n", mc.WorstCAGR, mc.BestCAGR))
		sb.WriteString(fmt.Sprintf("P(CAGR > 0):        %.1f%%\n", mc.ProbPositive*100))
		sb.WriteString(fmt.Sprintf("P(CAGR > %.0f%%):      %.1f%%\n", mc.BenchmarkReturn, mc.ProbBeatBenchmark*100))
	}
	sb.WriteString("\n")

	section(&sb, "STRESS TESTS")
	if len(r.StressTests) == 0 {
		sb.WriteString("No stress periods covered by the test windows\n")
	}
	for _, s := range r.StressTests {
		sb.WriteString(fmt.Sprintf("%-30s return=%s sharpe=%s dd=%s recovery=%s\n",
			s.Name, formatFloat(s.Return, "%.2f%%"), formatFloat(s.Sharpe, "%.2f"),
			formatFloat(s.MaxDrawdown, "%.2f%%"), s.Recovery))
	}
	sb.WriteString("\n")

	section(&sb, "ASSESSMENT")
	sb.WriteString(fmt.Sprintf("Risk-adjusted score: %.2f / 100\n", r.Assessment.RiskAdjustedScore))
	sb.WriteString(fmt.Sprintf("Confidence:          %s\n", r.Assessment.Confidence))
	if len(r.Assessment.Concerns) == 0 {
		sb.WriteString("Concerns:            none\n")
	} else {
		sb.WriteString("Concerns:\n")
		for _, c := range r.Assessment.Concerns {
			sb.WriteString(fmt.Sprintf("  - %s\n", c))
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", w))
		}
	}
	sb.WriteString("\n")

	section(&sb, "VERDICT")
	sb.WriteString(r.Assessment.Recommendation + "\n")
	return sb.String()
}

func writeWalkForward(sb *strings.Builder, r *domain.WalkForwardResult) {
	c := r.Config
	section(sb, "CONFIGURATION")
	sb.WriteString(fmt.Sprintf("Strategy:           %s\n", r.StrategyID))
	sb.WriteString(fmt.Sprintf("Run:                %s\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Years:              %d-%d\n", c.StartYear, c.EndYear))
	sb.WriteString(fmt.Sprintf("Training:           %d years (%s)\n", c.InitialTrainYears, c.Policy))
	sb.WriteString(fmt.Sprintf("Test window:        %d years\n", c.TestYears))
	sb.WriteString(fmt.Sprintf("Search:             %s, max %d evaluations, objective %s\n", c.Method, c.MaxEvaluations, c.Objective))
	if r.OverlappingTestWindows {
		sb.WriteString("Warning:            test windows overlap; Monte Carlo and stress review use non-overlapping periods\n")
	}
	sb.WriteString("\n")

	section(sb, "PERIODS")
	if len(r.Periods) == 0 {
		sb.WriteString("No periods were run\n")
	}
	for _, p := range r.Periods {
		if !p.Success {
			sb.WriteString(fmt.Sprintf("%2d. test %s  FAILED: %s\n", p.Index, p.Test, p.Error))
			continue
		}
		sb.WriteString(fmt.Sprintf("%2d. test %s  params {%s}  IS sharpe=%s  OOS sharpe=%s cagr=%s dd=%s\n",
			p.Index, p.Test, p.Params.String(),
			formatFloat(p.InSampleSharpe, "%.2f"), formatFloat(p.OOSSharpe, "%.2f"),
			formatFloat(p.OOSCAGR, "%.2f%%"), formatFloat(p.OOSMaxDrawdown, "%.2f%%")))
	}
	sb.WriteString(fmt.Sprintf("%d/%d periods succeeded\n", r.SuccessfulPeriods, r.TotalPeriods))
	if r.Cancelled {
		sb.WriteString("Run was cancelled before all periods completed\n")
	}
	sb.WriteString("\n")

	a := r.Aggregate
	section(sb, "AGGREGATE METRICS")
	sb.WriteString(fmt.Sprintf("Avg OOS Sharpe:     %s\n", formatFloat(a.AvgOOSSharpe, "%.2f")))
	sb.WriteString(fmt.Sprintf("Worst OOS Sharpe:   %s\n", formatFloat(a.WorstOOSSharpe, "%.2f")))
	sb.WriteString(fmt.Sprintf("Avg OOS CAGR:       %s\n", formatFloat(a.AvgOOSCAGR, "%.2f%%")))
	sb.WriteString(fmt.Sprintf("Worst OOS Drawdown: %s\n", formatFloat(a.WorstOOSDrawdown, "%.2f%%")))
	sb.WriteString("\n")

	section(sb, "QUALITY METRICS")
	sb.WriteString(fmt.Sprintf("Consistency:        %s\n", formatPct(a.Consistency)))
	sb.WriteString(fmt.Sprintf("Degradation:        %s\n", formatPct(a.Degradation)))
	sb.WriteString(fmt.Sprintf("Param stability:    %s\n", formatFloat(a.ParameterStability, "%.2f")))
	for _, name := range sortedKeys(a.ParameterStabilityByName) {
		sb.WriteString(fmt.Sprintf("  %-18s%.2f\n", name+":", a.ParameterStabilityByName[name]))
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(rule)
	sb.WriteString(title + "\n")
	sb.WriteString(rule)
}

func formatFloat(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func formatPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
