package reporting

import (
	"fmt"
	"strings"
	"time"

	"hypothesis-lab/internal/decision"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	res := r.Result

	// Header
	sb.WriteString("# Phase 3 Robustness Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategy: `%s` | Run: `%s`\n\n", res.StrategyID, res.RunID))

	// Executive summary
	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("**%s**\n\n", res.Assessment.Recommendation))
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Risk-adjusted score | %.2f |\n", res.Assessment.RiskAdjustedScore))
	sb.WriteString(fmt.Sprintf("| Confidence | %s |\n", res.Assessment.Confidence))
	sb.WriteString(fmt.Sprintf("| Periods | %d/%d succeeded |\n", res.WalkForward.SuccessfulPeriods, res.WalkForward.TotalPeriods))
	sb.WriteString(fmt.Sprintf("| Latest params | %s |\n", res.WalkForward.BestParams.String()))
	sb.WriteString(fmt.Sprintf("| Concerns | %d |\n", len(res.Assessment.Concerns)))
	sb.WriteString("\n")

	// Data quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.SufficiencyChecks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.SufficiencyChecks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")
		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Failures are listed as concerns.\n\n")
		}
	} else {
		sb.WriteString("No data quality checks performed.\n\n")
	}

	// Walk-forward
	agg := res.WalkForward.Aggregate
	sb.WriteString("## Walk-Forward\n\n")
	if res.WalkForward.OverlappingTestWindows {
		sb.WriteString("> Test windows overlap. Monte Carlo and stress review use non-overlapping periods only.\n\n")
	}
	sb.WriteString("| # | Optimize | Test | Params | IS Sharpe | OOS Sharpe | OOS CAGR | OOS MaxDD | Status |\n")
	sb.WriteString("|---|----------|------|--------|-----------|------------|----------|-----------|--------|\n")
	for _, p := range res.Periods {
		status := "OK"
		if !p.Success {
			status = "FAILED: " + p.Error
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			p.Index, p.Optimize, p.Test, p.Params.String(),
			formatFloat(p.InSampleSharpe, "%.2f"), formatFloat(p.OOSSharpe, "%.2f"),
			formatFloat(p.OOSCAGR, "%.2f%%"), formatFloat(p.OOSMaxDrawdown, "%.2f%%"), status))
	}
	sb.WriteString("\n")
	sb.WriteString("| Aggregate | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Avg OOS Sharpe | %s |\n", formatFloat(agg.AvgOOSSharpe, "%.2f")))
	sb.WriteString(fmt.Sprintf("| Worst OOS Sharpe | %s |\n", formatFloat(agg.WorstOOSSharpe, "%.2f")))
	sb.WriteString(fmt.Sprintf("| Avg OOS CAGR | %s |\n", formatFloat(agg.AvgOOSCAGR, "%.2f%%")))
	sb.WriteString(fmt.Sprintf("| Worst OOS Drawdown | %s |\n", formatFloat(agg.WorstOOSDrawdown, "%.2f%%")))
	sb.WriteString(fmt.Sprintf("| Consistency | %s |\n", formatPct(agg.Consistency)))
	sb.WriteString(fmt.Sprintf("| Degradation | %s |\n", formatPct(agg.Degradation)))
	sb.WriteString(fmt.Sprintf("| Parameter stability | %s |\n", formatFloat(agg.ParameterStability, "%.2f")))
	sb.WriteString("\n")

	// Monte Carlo
	sb.WriteString("## Monte Carlo\n\n")
	if mc := res.MonteCarlo; mc != nil {
		sb.WriteString(fmt.Sprintf("%d simulations of %d years, resampling %d annual returns.\n\n", mc.Simulations, mc.Years, mc.SampleSize))
		sb.WriteString("| Statistic | CAGR |\n")
		sb.WriteString("|-----------|------|\n")
		sb.WriteString(fmt.Sprintf("| Mean | %.2f%% |\n", mc.MeanCAGR))
		sb.WriteString(fmt.Sprintf("| Median | %.2f%% |\n", mc.MedianCAGR))
		sb.WriteString(fmt.Sprintf("| 5th percentile | %.2f%% |\n", mc.P5CAGR))
		sb.WriteString(fmt.Sprintf("| 95th percentile | %.2f%% |\n", mc.P95CAGR))
		sb.WriteString(fmt.Sprintf("| Worst | %.2f%% |\n", mc.WorstCAGR))
		sb.WriteString(fmt.Sprintf("| Best | %.2f%% |\n", mc.BestCAGR))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("P(CAGR > 0) = %.1f%%, P(CAGR > %.0f%%) = %.1f%%\n\n", mc.ProbPositive*100, mc.BenchmarkReturn, mc.ProbBeatBenchmark*100))
	} else {
		sb.WriteString("Not run: no annual returns available.\n\n")
	}

	// Stress tests
	sb.WriteString("## Stress Tests\n\n")
	if len(res.StressTests) > 0 {
		sb.WriteString("| Period | Return | Sharpe | MaxDD | Following Year | Recovery |\n")
		sb.WriteString("|--------|--------|--------|-------|----------------|----------|\n")
		for _, s := range res.StressTests {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				s.Name, formatFloat(s.Return, "%.2f%%"), formatFloat(s.Sharpe, "%.2f"),
				formatFloat(s.MaxDrawdown, "%.2f%%"), formatFloat(s.FollowingReturn, "%.2f%%"), s.Recovery))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No stress periods covered by the test windows.\n\n")
	}

	// Assessment
	if r.Assessment != nil {
		sb.WriteString(strings.Replace(decision.RenderMarkdown(r.Assessment), "# Risk Assessment", "## Risk Assessment", 1))
		sb.WriteString("\n")
	} else {
		sb.WriteString("## Concerns\n\n")
		if len(res.Assessment.Concerns) == 0 {
			sb.WriteString("None.\n\n")
		}
		for _, c := range res.Assessment.Concerns {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
		sb.WriteString("\n")
	}

	// Reproducibility
	rep := r.Reproducibility
	if rep.GeneratorVersion != "" {
		sb.WriteString("## Reproducibility\n\n")
		sb.WriteString(fmt.Sprintf("- Timestamp: %s\n", rep.ReportTimestamp.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("- Generator: %s\n", rep.GeneratorVersion))
		sb.WriteString(fmt.Sprintf("- Config hash: %s\n", rep.ConfigHash))
		sb.WriteString(fmt.Sprintf("- Seed: %d\n", rep.Seed))
		if rep.ReplayCommand != "" {
			sb.WriteString(fmt.Sprintf("- Replay: `%s`\n", rep.ReplayCommand))
		}
	}

	return sb.String()
}
