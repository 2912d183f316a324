package pipeline

import (
	"math"
	"time"

	"hypothesis-lab/internal/backtest/stub"
	"hypothesis-lab/internal/domain"
)

// FixtureStrategy returns a small momentum document for demonstration runs.
func FixtureStrategy() domain.StrategyDocument {
	f := domain.Float64Ptr
	return domain.StrategyDocument{
		ID:          "fixture-momentum",
		Name:        "Fixture momentum",
		Hypothesis:  "Trailing strength persists over the following month.",
		Instruments: []string{"SPY"},
		Timeframe:   "1d",
		Rules: map[string]string{
			"entry": "close above moving average of window days",
			"exit":  "close below moving average",
		},
		Parameters: []domain.TunableParameter{
			{Name: "window", Kind: domain.ParameterKindInteger, Min: f(10), Max: f(30), Step: f(10), Default: domain.IntValue(20)},
			{Name: "stop", Kind: domain.ParameterKindFloat, Min: f(0.05), Max: f(0.15), Step: f(0.05), Default: domain.FloatValue(0.1)},
		},
	}
}

// fixtureYears holds per-year market returns the fixture model scales.
var fixtureYears = map[int]float64{
	2008: -32, 2009: 24, 2010: 13, 2011: -4, 2012: 14, 2013: 27,
	2014: 11, 2015: -2, 2016: 10, 2017: 19, 2018: -7, 2019: 26,
	2020: -14, 2021: 23, 2022: -18, 2023: 21,
}

// FixtureModel is a deterministic backtest model for FixtureStrategy. Mid-range
// windows do best; returns follow a fixed yearly market path.
func FixtureModel(params domain.Assignment, start, end string) stub.Metrics {
	from, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return stub.Metrics{Fail: "invalid start date"}
	}
	to, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return stub.Metrics{Fail: "invalid end date"}
	}

	window, _ := params["window"].Float64()
	stop, _ := params["stop"].Float64()
	edge := 1 - math.Abs(window-20)/20 - math.Abs(stop-0.1)*2

	market, years := 0.0, 0
	for y := from.Year(); y <= to.Year(); y++ {
		market += fixtureYears[y]
		years++
	}
	market /= float64(years)

	cagr := market*0.6 + edge*6
	sharpe := cagr/12 + edge*0.4
	dd := 8 + math.Abs(min(market, 0))*0.7
	return stub.Metrics{Sharpe: &sharpe, CAGR: &cagr, MaxDrawdown: &dd}
}
