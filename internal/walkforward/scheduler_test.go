package walkforward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/domain"
)

func cfg(start, end, train, test int, policy domain.WindowPolicy) domain.WalkForwardConfig {
	c := domain.DefaultWalkForwardConfig()
	c.StartYear, c.EndYear = start, end
	c.InitialTrainYears, c.TestYears = train, test
	c.Policy = policy
	return c
}

func TestSchedule_SinglePeriod(t *testing.T) {
	periods := Schedule(cfg(2012, 2015, 3, 1, domain.WindowExpanding))
	require.Len(t, periods, 1)
	assert.Equal(t, "2012-01-01", periods[0].Optimize.StartDate())
	assert.Equal(t, "2014-12-31", periods[0].Optimize.EndDate())
	assert.Equal(t, "2015-01-01", periods[0].Test.StartDate())
	assert.Equal(t, "2015-12-31", periods[0].Test.EndDate())
}

func TestSchedule_Expanding(t *testing.T) {
	periods := Schedule(cfg(2012, 2017, 3, 1, domain.WindowExpanding))
	require.Len(t, periods, 3)

	wantTests := []int{2015, 2016, 2017}
	for i, p := range periods {
		assert.Equal(t, i+1, p.Index)
		assert.Equal(t, "2012-01-01", p.Optimize.StartDate(), "expanding windows start at the start year")
		assert.Equal(t, wantTests[i], p.TestYear())
		assert.Equal(t, wantTests[i]-1, p.Optimize.End.Year())
	}
}

func TestSchedule_Rolling(t *testing.T) {
	periods := Schedule(cfg(2012, 2017, 3, 1, domain.WindowRolling))
	require.Len(t, periods, 3)

	wantStarts := []string{"2012-01-01", "2013-01-01", "2014-01-01"}
	for i, p := range periods {
		assert.Equal(t, wantStarts[i], p.Optimize.StartDate())
		assert.Equal(t, 3, p.Optimize.End.Year()-p.Optimize.Start.Year()+1, "rolling windows keep their length")
	}
}

func TestSchedule_MultiYearTestsClampToEnd(t *testing.T) {
	periods := Schedule(cfg(2012, 2017, 3, 2, domain.WindowExpanding))
	require.Len(t, periods, 3)
	assert.Equal(t, "2016-12-31", periods[0].Test.EndDate())
	assert.Equal(t, "2017-12-31", periods[1].Test.EndDate())
	assert.Equal(t, "2017-12-31", periods[2].Test.EndDate())
	assert.True(t, periods[0].Test.Overlaps(periods[1].Test))
}

func TestSchedule_NoPeriods(t *testing.T) {
	assert.Empty(t, Schedule(cfg(2012, 2014, 3, 1, domain.WindowExpanding)))
	assert.Empty(t, Schedule(cfg(2012, 2020, 0, 1, domain.WindowExpanding)))
	assert.Empty(t, Schedule(cfg(2020, 2012, 1, 1, domain.WindowExpanding)))
}
