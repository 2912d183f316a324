package montecarlo

import (
	"sort"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/metrics"
)

// Recovery thresholds on the following year's return, in percent.
const (
	strongRecoveryAbove   = 20.0
	moderateRecoveryAbove = 10.0
)

// StressPeriod is a named historical stress year.
type StressPeriod struct {
	Name string
	Year int
}

// DefaultStressPeriods lists the stress years reviewed when none are configured.
func DefaultStressPeriods() []StressPeriod {
	return []StressPeriod{
		{Name: "2008 Global Financial Crisis", Year: 2008},
		{Name: "2011 Euro Debt Crisis", Year: 2011},
		{Name: "2015 China Devaluation", Year: 2015},
		{Name: "2018 Q4 Selloff", Year: 2018},
		{Name: "2020 COVID Crash", Year: 2020},
		{Name: "2022 Rate Shock", Year: 2022},
	}
}

// StressReview reports realized performance for every stress year covered by
// a successful test window. Recovery is rated from the return of the window
// covering the following year, which is the same window when it spans both.
// Overlapping test windows are reduced first so each calendar year maps to one period.
func StressReview(periods []domain.WalkForwardPeriod, stress []StressPeriod) []domain.StressPeriodResult {
	var ok []domain.WalkForwardPeriod
	for _, p := range periods {
		if p.Success {
			ok = append(ok, p)
		}
	}
	byYear := coveredYears(metrics.NonOverlapping(ok))

	sorted := append([]StressPeriod(nil), stress...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	var out []domain.StressPeriodResult
	for _, s := range sorted {
		p, found := byYear[s.Year]
		if !found {
			continue
		}
		res := domain.StressPeriodResult{
			Name:        s.Name,
			Year:        s.Year,
			Return:      copyPtr(p.OOSCAGR),
			Sharpe:      copyPtr(p.OOSSharpe),
			MaxDrawdown: copyPtr(p.OOSMaxDrawdown),
			Recovery:    domain.RecoveryUnknown,
		}
		if next, ok := byYear[s.Year+1]; ok && next.OOSCAGR != nil {
			res.FollowingReturn = copyPtr(next.OOSCAGR)
			res.Recovery = RateRecovery(*next.OOSCAGR)
		}
		out = append(out, res)
	}
	return out
}

// coveredYears maps every calendar year of each test window to its period.
func coveredYears(periods []domain.WalkForwardPeriod) map[int]domain.WalkForwardPeriod {
	byYear := make(map[int]domain.WalkForwardPeriod)
	for _, p := range periods {
		for y := p.Test.Start.Year(); y <= p.Test.End.Year(); y++ {
			byYear[y] = p
		}
	}
	return byYear
}

// RateRecovery classifies a following-year return in percent.
func RateRecovery(followingReturn float64) domain.RecoveryRating {
	switch {
	case followingReturn > strongRecoveryAbove:
		return domain.RecoveryStrong
	case followingReturn > moderateRecoveryAbove:
		return domain.RecoveryModerate
	}
	return domain.RecoveryWeak
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
