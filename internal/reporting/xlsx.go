package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetSummary    = "Summary"
	SheetPeriods    = "Periods"
	SheetMonteCarlo = "Monte Carlo"
	SheetStress     = "Stress Tests"
	SheetConcerns   = "Concerns"
)

// WriteWorkbook writes the report as an XLSX workbook at path.
func WriteWorkbook(path string, r *Report) error {
	f, err := BuildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// BuildWorkbook lays the report out over one sheet per section.
func BuildWorkbook(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	res := r.Result

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetPeriods, SheetMonteCarlo, SheetStress, SheetConcerns} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	agg := res.WalkForward.Aggregate
	summary := [][]any{
		{"Strategy", res.StrategyID},
		{"Run", res.RunID},
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Recommendation", res.Assessment.Recommendation},
		{"Risk-adjusted score", res.Assessment.RiskAdjustedScore},
		{"Confidence", string(res.Assessment.Confidence)},
		{"Successful periods", res.WalkForward.SuccessfulPeriods},
		{"Total periods", res.WalkForward.TotalPeriods},
		{"Latest params", res.WalkForward.BestParams.String()},
		{"Avg OOS Sharpe", cellFloat(agg.AvgOOSSharpe)},
		{"Worst OOS Sharpe", cellFloat(agg.WorstOOSSharpe)},
		{"Avg OOS CAGR", cellFloat(agg.AvgOOSCAGR)},
		{"Worst OOS Drawdown", cellFloat(agg.WorstOOSDrawdown)},
		{"Consistency", cellFloat(agg.Consistency)},
		{"Degradation", cellFloat(agg.Degradation)},
		{"Parameter stability", cellFloat(agg.ParameterStability)},
	}
	if err := setRows(f, SheetSummary, summary); err != nil {
		return nil, err
	}

	periods := [][]any{{"Index", "Optimize", "Test", "Params", "IS Sharpe", "OOS Sharpe", "OOS CAGR", "OOS MaxDD", "Success", "Error"}}
	for _, p := range res.Periods {
		periods = append(periods, []any{
			p.Index, p.Optimize.String(), p.Test.String(), p.Params.String(),
			cellFloat(p.InSampleSharpe), cellFloat(p.OOSSharpe), cellFloat(p.OOSCAGR), cellFloat(p.OOSMaxDrawdown),
			p.Success, p.Error,
		})
	}
	if err := setRows(f, SheetPeriods, periods); err != nil {
		return nil, err
	}

	mc := [][]any{{"Statistic", "Value"}}
	if m := res.MonteCarlo; m != nil {
		mc = append(mc,
			[]any{"Simulations", m.Simulations},
			[]any{"Years", m.Years},
			[]any{"Sample size", m.SampleSize},
			[]any{"Mean CAGR", m.MeanCAGR},
			[]any{"Median CAGR", m.MedianCAGR},
			[]any{"P5 CAGR", m.P5CAGR},
			[]any{"P95 CAGR", m.P95CAGR},
			[]any{"Worst CAGR", m.WorstCAGR},
			[]any{"Best CAGR", m.BestCAGR},
			[]any{"P(CAGR > 0)", m.ProbPositive},
			[]any{"P(CAGR > benchmark)", m.ProbBeatBenchmark},
			[]any{"Benchmark", m.BenchmarkReturn},
		)
	}
	if err := setRows(f, SheetMonteCarlo, mc); err != nil {
		return nil, err
	}

	stress := [][]any{{"Period", "Year", "Return", "Sharpe", "MaxDD", "Following Return", "Recovery"}}
	for _, s := range res.StressTests {
		stress = append(stress, []any{
			s.Name, s.Year, cellFloat(s.Return), cellFloat(s.Sharpe), cellFloat(s.MaxDrawdown),
			cellFloat(s.FollowingReturn), string(s.Recovery),
		})
	}
	if err := setRows(f, SheetStress, stress); err != nil {
		return nil, err
	}

	concerns := [][]any{{"Concern"}}
	for _, c := range res.Assessment.Concerns {
		concerns = append(concerns, []any{c})
	}
	if err := setRows(f, SheetConcerns, concerns); err != nil {
		return nil, err
	}

	return f, nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// cellFloat leaves missing values as empty cells.
func cellFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
