package walkforward

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/backtest/stub"
	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/evaluator"
	"hypothesis-lab/internal/optimizer"
	"hypothesis-lab/internal/storage/memory"
)

func f(v float64) *float64 { return &v }

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func windowDoc() domain.StrategyDocument {
	return domain.StrategyDocument{
		ID: "mom-1",
		Parameters: []domain.TunableParameter{
			{Name: "window", Kind: domain.ParameterKindInteger, Min: f(10), Max: f(20), Step: f(5), Default: domain.IntValue(10)},
		},
	}
}

// tieModel scores window 15 and 20 equally; 15 comes first in the grid.
func tieModel(params domain.Assignment, start, end string) stub.Metrics {
	w, _ := params["window"].Float64()
	sharpe := 1.0
	if w >= 15 {
		sharpe = 1.5
	}
	cagr := 8.0
	dd := 12.0
	return stub.Metrics{Sharpe: &sharpe, CAGR: &cagr, MaxDrawdown: &dd}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	final  *domain.WalkForwardResult
}

func (o *recordingObserver) PeriodStarted(_ string, p domain.WalkForwardPeriod, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "start:"+p.Test.StartDate())
}

func (o *recordingObserver) PeriodCompleted(_ string, p domain.WalkForwardPeriod, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "done:"+p.Test.StartDate())
}

func (o *recordingObserver) RunCompleted(r *domain.WalkForwardResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.final = r
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newRunner(model stub.Model, obs ...Observer) (*Runner, *stub.Backtester, *memory.EvaluationStore) {
	engine := stub.New(model)
	ev := evaluator.New(engine, engine).WithLogger(quietLogger())
	store := memory.NewEvaluationStore()
	r := NewRunner(Options{
		Optimizer:       optimizer.New(ev).WithLogger(quietLogger()),
		Evaluator:       ev,
		EvaluationStore: store,
		Observers:       obs,
		Logger:          quietLogger(),
		Clock:           func() time.Time { return fixedNow },
	})
	return r, engine, store
}

func TestRun_EndToEndWithTie(t *testing.T) {
	obs := &recordingObserver{}
	runner, engine, store := newRunner(tieModel, obs)

	c := cfg(2012, 2015, 3, 1, domain.WindowExpanding)
	c.MaxEvaluations = 10
	res := runner.Run(context.Background(), windowDoc(), c)

	require.True(t, res.Success, res.Error)
	require.Len(t, res.Periods, 1)
	p := res.Periods[0]
	assert.Equal(t, domain.IntValue(15), p.Params["window"], "ties resolve to the earlier candidate")
	assert.Equal(t, 3, p.Evaluated)
	assert.InDelta(t, 1.5, *p.InSampleSharpe, 1e-9)
	assert.InDelta(t, 1.5, *p.OOSSharpe, 1e-9)

	// Three optimize evaluations plus one test evaluation.
	assert.Equal(t, []string{
		"window=int:10@2012-01-01..2014-12-31",
		"window=int:15@2012-01-01..2014-12-31",
		"window=int:20@2012-01-01..2014-12-31",
		"window=int:15@2015-01-01..2015-12-31",
	}, engine.RunRequests())

	records, err := store.GetByRunID(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	assert.Equal(t, []string{"start:2015-01-01", "done:2015-01-01"}, obs.events)
	require.NotNil(t, obs.final)
	assert.Equal(t, res.RunID, obs.final.RunID)
	assert.Equal(t, fixedNow, res.Timestamp)
}

func TestRun_Aggregates(t *testing.T) {
	model := func(params domain.Assignment, start, end string) stub.Metrics {
		sharpe, cagr, dd := 1.0, 10.0, 5.0
		if start == "2016-01-01" {
			sharpe, cagr, dd = 0.2, -4.0, 22.0
		}
		return stub.Metrics{Sharpe: &sharpe, CAGR: &cagr, MaxDrawdown: &dd}
	}
	runner, _, _ := newRunner(model)

	res := runner.Run(context.Background(), windowDoc(), cfg(2012, 2017, 3, 1, domain.WindowRolling))
	require.True(t, res.Success)
	assert.Equal(t, 3, res.TotalPeriods)
	assert.Equal(t, 3, res.SuccessfulPeriods)
	assert.False(t, res.OverlappingTestWindows)

	agg := res.Aggregate
	assert.InDelta(t, (1.0+0.2+1.0)/3, *agg.AvgOOSSharpe, 1e-9)
	assert.InDelta(t, 0.2, *agg.WorstOOSSharpe, 1e-9)
	assert.InDelta(t, 22.0, *agg.WorstOOSDrawdown, 1e-9)
	assert.InDelta(t, 2.0/3.0, *agg.Consistency, 1e-9)
	require.NotNil(t, agg.ParameterStability)
	assert.Equal(t, 1.0, *agg.ParameterStability, "same window chosen every period")
}

func TestRun_FailedPeriodIsRecordedAndSkipsTest(t *testing.T) {
	model := func(params domain.Assignment, start, end string) stub.Metrics {
		if end == "2015-12-31" {
			return stub.Metrics{Fail: "no data"}
		}
		return tieModel(params, start, end)
	}
	runner, engine, _ := newRunner(model)

	res := runner.Run(context.Background(), windowDoc(), cfg(2012, 2017, 3, 1, domain.WindowExpanding))
	require.True(t, res.Success)
	require.Len(t, res.Periods, 3)

	// Period 2 optimizes on 2012..2015, where every candidate fails.
	assert.False(t, res.Periods[1].Success)
	assert.Equal(t, optimizer.ErrMsgAllFailed, res.Periods[1].Error)
	assert.Nil(t, res.Periods[1].Params)

	// Period 1 tests on 2015 and fails there.
	assert.False(t, res.Periods[0].Success)
	assert.Contains(t, res.Periods[0].Error, "backtest reported failure: no data")

	assert.True(t, res.Periods[2].Success)
	assert.Equal(t, 1, res.SuccessfulPeriods)

	for _, req := range engine.RunRequests() {
		assert.NotContains(t, req, "@2016-01-01..2016-12-31", "failed optimization skips its test window")
	}
}

func TestRun_NoPeriods(t *testing.T) {
	runner, engine, _ := newRunner(tieModel)
	res := runner.Run(context.Background(), windowDoc(), cfg(2012, 2014, 3, 1, domain.WindowExpanding))

	assert.False(t, res.Success)
	assert.Equal(t, ErrMsgNoPeriods, res.Error)
	assert.Zero(t, engine.RunCalls())
}

func TestRun_NoSuccessfulPeriods(t *testing.T) {
	runner := NewRunner(Options{
		Optimizer: optimizer.New(evaluator.New(nil, nil)).WithLogger(quietLogger()),
		Evaluator: evaluator.New(nil, nil),
		Logger:    quietLogger(),
	})
	res := runner.Run(context.Background(), windowDoc(), cfg(2012, 2016, 3, 1, domain.WindowExpanding))

	assert.False(t, res.Success)
	assert.Equal(t, "no successful periods", res.Error)
	assert.Len(t, res.Periods, 2)
	assert.Nil(t, res.Aggregate.AvgOOSSharpe)
}

type cancelAfterFirst struct {
	cancel context.CancelFunc
}

func (c cancelAfterFirst) PeriodStarted(string, domain.WalkForwardPeriod, int) {}
func (c cancelAfterFirst) PeriodCompleted(string, domain.WalkForwardPeriod, int) {
	c.cancel()
}
func (c cancelAfterFirst) RunCompleted(*domain.WalkForwardResult) {}

func TestRun_CancellationKeepsCollectedPeriods(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, _, _ := newRunner(tieModel, cancelAfterFirst{cancel: cancel})
	res := runner.Run(ctx, windowDoc(), cfg(2012, 2017, 3, 1, domain.WindowExpanding))

	assert.True(t, res.Cancelled)
	assert.True(t, res.Success)
	require.Len(t, res.Periods, 1)
	assert.Equal(t, 3, res.TotalPeriods)
	assert.Contains(t, res.Error, "run cancelled after 1 of 3 periods")
	require.NotNil(t, res.Aggregate.AvgOOSSharpe)
}

func TestRun_OverlappingTestWindowsFlagged(t *testing.T) {
	runner, _, _ := newRunner(tieModel)
	res := runner.Run(context.Background(), windowDoc(), cfg(2012, 2017, 3, 2, domain.WindowExpanding))
	assert.True(t, res.OverlappingTestWindows)
}
