package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

// RenderPeriodsCSV renders walk-forward periods as CSV string.
func RenderPeriodsCSV(periods []domain.WalkForwardPeriod) string {
	rows := [][]string{{
		"index", "optimize_start", "optimize_end", "test_start", "test_end", "params",
		"in_sample_objective", "in_sample_sharpe", "oos_sharpe", "oos_cagr", "oos_max_drawdown",
		"evaluated", "successful", "success", "error",
	}}
	for _, p := range periods {
		rows = append(rows, []string{
			strconv.Itoa(p.Index),
			p.Optimize.StartDate(),
			p.Optimize.EndDate(),
			p.Test.StartDate(),
			p.Test.EndDate(),
			paramsCell(p.Params),
			csvFloat(p.InSampleObjective),
			csvFloat(p.InSampleSharpe),
			csvFloat(p.OOSSharpe),
			csvFloat(p.OOSCAGR),
			csvFloat(p.OOSMaxDrawdown),
			strconv.Itoa(p.Evaluated),
			strconv.Itoa(p.Successful),
			strconv.FormatBool(p.Success),
			p.Error,
		})
	}
	return writeCSV(rows)
}

// RenderEvaluationsCSV renders stored evaluation records as CSV string.
func RenderEvaluationsCSV(records []*storage.EvaluationRecord) string {
	rows := [][]string{{
		"run_id", "period_index", "phase", "seq", "range_start", "range_end", "params",
		"sharpe", "cagr", "max_drawdown", "success", "error", "duration_ms",
	}}
	for _, r := range records {
		e := r.Evaluation
		rows = append(rows, []string{
			r.RunID,
			strconv.Itoa(r.PeriodIndex),
			r.Phase,
			strconv.Itoa(r.Seq),
			r.RangeStart.Format(domain.DateLayout),
			r.RangeEnd.Format(domain.DateLayout),
			paramsCell(e.Params),
			csvFloat(e.Sharpe),
			csvFloat(e.CAGR),
			csvFloat(e.MaxDrawdown),
			strconv.FormatBool(e.Success),
			e.Error,
			strconv.FormatInt(e.Duration.Milliseconds(), 10),
		})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	// Writes to a strings.Builder cannot fail.
	_ = w.WriteAll(rows)
	return sb.String()
}

func paramsCell(a domain.Assignment) string {
	if len(a) == 0 {
		return ""
	}
	return a.String()
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
