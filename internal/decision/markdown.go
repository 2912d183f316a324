package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders Result as Markdown string.
func RenderMarkdown(result *Result) string {
	var sb strings.Builder

	sb.WriteString("# Risk Assessment\n\n")
	sb.WriteString(fmt.Sprintf("Strategy: `%s`\n\n", result.StrategyID))
	sb.WriteString(fmt.Sprintf("## Recommendation: %s\n\n", result.Assessment.Recommendation))
	sb.WriteString(fmt.Sprintf("- Risk-adjusted score: %.2f / 100\n", result.Assessment.RiskAdjustedScore))
	sb.WriteString(fmt.Sprintf("- Confidence: %s\n\n", result.Assessment.Confidence))

	sb.WriteString("## Score Components\n\n")
	sb.WriteString("| # | Component | Weight | Actual | Points | Contribution |\n")
	sb.WriteString("|---|-----------|--------|--------|--------|--------------|\n")
	for i, c := range result.Components {
		sb.WriteString(fmt.Sprintf("| %d | %s | %.0f%% | %s | %.2f | %.2f |\n",
			i+1, c.Name, c.Weight*100, c.Actual, c.Points, c.Contribution()))
	}
	sb.WriteString("\n")

	sb.WriteString("## Checks\n\n")
	if len(result.Checks) == 0 {
		sb.WriteString("No checks could be evaluated.\n\n")
	} else {
		sb.WriteString("| # | Check | Threshold | Actual | Status |\n")
		sb.WriteString("|---|-------|-----------|--------|--------|\n")
		for i, c := range result.Checks {
			status := "OK"
			if !c.Pass {
				status = "CONCERN"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				i+1, c.Name, c.Threshold, c.Actual, status))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Concerns\n\n")
	if len(result.Assessment.Concerns) == 0 {
		sb.WriteString("None.\n")
	} else {
		for _, c := range result.Assessment.Concerns {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
	}

	return sb.String()
}
