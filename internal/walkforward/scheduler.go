// Package walkforward re-optimizes a strategy at successive yearly boundaries and
// measures each optimized assignment on the following, unseen years.
package walkforward

import (
	"hypothesis-lab/internal/domain"
)

// ErrMsgNoPeriods is recorded when the configuration yields no periods.
const ErrMsgNoPeriods = "no valid walk-forward periods"

// Schedule derives the optimize/test windows for cfg in chronological order.
//
// For every test year from StartYear+InitialTrainYears through EndYear:
//   - optimize: StartYear (expanding) or testYear-InitialTrainYears (rolling)
//     through testYear-1
//   - test: testYear through min(testYear+TestYears-1, EndYear)
//
// Test windows overlap when TestYears > 1.
func Schedule(cfg domain.WalkForwardConfig) []domain.WalkForwardPeriod {
	if cfg.InitialTrainYears < 1 || cfg.TestYears < 1 || cfg.EndYear < cfg.StartYear {
		return nil
	}

	var periods []domain.WalkForwardPeriod
	for testYear := cfg.StartYear + cfg.InitialTrainYears; testYear <= cfg.EndYear; testYear++ {
		optStart := cfg.StartYear
		if cfg.Policy == domain.WindowRolling {
			optStart = testYear - cfg.InitialTrainYears
		}
		testEnd := min(testYear+cfg.TestYears-1, cfg.EndYear)

		periods = append(periods, domain.WalkForwardPeriod{
			Index:    len(periods) + 1,
			Optimize: domain.YearRange(optStart, testYear-1),
			Test:     domain.YearRange(testYear, testEnd),
		})
	}
	return periods
}
