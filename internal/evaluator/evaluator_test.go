package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/backtest"
	"hypothesis-lab/internal/backtest/stub"
	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage/memory"
)

func testDoc() domain.StrategyDocument {
	return domain.StrategyDocument{
		ID: "mom-1",
		Parameters: []domain.TunableParameter{
			{Name: "window", Kind: domain.ParameterKindInteger, Default: domain.IntValue(10)},
		},
	}
}

func fixedModel(sharpe, cagr, dd float64) stub.Model {
	return func(domain.Assignment, string, string) stub.Metrics {
		return stub.Metrics{Sharpe: &sharpe, CAGR: &cagr, MaxDrawdown: &dd}
	}
}

func TestEvaluate_Success(t *testing.T) {
	engine := stub.New(fixedModel(1.2, 14, -18))
	ev := New(engine, engine)

	params := domain.Assignment{"window": domain.IntValue(20)}
	got := ev.Evaluate(context.Background(), testDoc(), params, domain.YearRange(2012, 2014))

	require.True(t, got.Success, got.Error)
	assert.InDelta(t, 1.2, *got.Sharpe, 1e-9)
	assert.InDelta(t, 14.0, *got.CAGR, 1e-9)
	assert.InDelta(t, 18.0, *got.MaxDrawdown, 1e-9, "drawdown is a non-negative magnitude")
	assert.Equal(t, []string{"window=int:20@2012-01-01..2014-12-31"}, engine.RunRequests())

	params["window"] = domain.IntValue(1)
	assert.Equal(t, domain.IntValue(20), got.Params["window"], "evaluation owns its assignment")
}

func TestEvaluate_Unconfigured(t *testing.T) {
	ev := New(nil, nil)
	got := ev.Evaluate(context.Background(), testDoc(), domain.Assignment{}, domain.YearRange(2012, 2014))

	assert.False(t, got.Success)
	assert.Equal(t, backtest.ErrUnconfigured.Error(), got.Error)
	assert.Nil(t, got.Sharpe)
}

func TestEvaluate_Failures(t *testing.T) {
	params := domain.Assignment{"window": domain.IntValue(20)}

	t.Run("generation failure", func(t *testing.T) {
		engine := stub.New(fixedModel(1, 1, 1))
		engine.FailGeneration(params, "template missing")
		got := New(engine, engine).Evaluate(context.Background(), testDoc(), params, domain.YearRange(2012, 2014))
		assert.False(t, got.Success)
		assert.Contains(t, got.Error, "code generation failed: template missing")
	})

	t.Run("backtest transport error", func(t *testing.T) {
		engine := stub.New(fixedModel(1, 1, 1))
		engine.FailRun(params, errors.New("connection refused"))
		got := New(engine, engine).Evaluate(context.Background(), testDoc(), params, domain.YearRange(2012, 2014))
		assert.False(t, got.Success)
		assert.Contains(t, got.Error, "backtest failed: connection refused")
	})

	t.Run("backtest reported failure", func(t *testing.T) {
		engine := stub.New(func(domain.Assignment, string, string) stub.Metrics {
			return stub.Metrics{Fail: "no data for range"}
		})
		got := New(engine, engine).Evaluate(context.Background(), testDoc(), params, domain.YearRange(2012, 2014))
		assert.False(t, got.Success)
		assert.Equal(t, "backtest reported failure: no data for range", got.Error)
	})

	t.Run("cancelled context", func(t *testing.T) {
		engine := stub.New(fixedModel(1, 1, 1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		got := New(engine, engine).Evaluate(ctx, testDoc(), params, domain.YearRange(2012, 2014))
		assert.False(t, got.Success)
		assert.Contains(t, got.Error, "cancelled")
		assert.Zero(t, engine.GenerateCalls())
	})
}

type slowRunner struct{}

func (slowRunner) RunSingle(ctx context.Context, _, _, _, _ string) (*backtest.RunResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEvaluate_Timeout(t *testing.T) {
	engine := stub.New(nil)
	ev := New(engine, slowRunner{}).WithTimeout(20 * time.Millisecond)

	got := ev.Evaluate(context.Background(), testDoc(), domain.Assignment{}, domain.YearRange(2012, 2014))
	assert.False(t, got.Success)
	assert.Contains(t, got.Error, "deadline exceeded")
}

func TestEvaluate_CacheServesRepeats(t *testing.T) {
	engine := stub.New(fixedModel(0.9, 7, 12))
	cache := memory.NewEvaluationCache()
	ev := New(engine, engine).WithCache(cache)

	params := domain.Assignment{"window": domain.IntValue(20)}
	r := domain.YearRange(2012, 2014)

	first := ev.Evaluate(context.Background(), testDoc(), params, r)
	second := ev.Evaluate(context.Background(), testDoc(), params, r)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, *first.Sharpe, *second.Sharpe)
	assert.EqualValues(t, 1, engine.RunCalls())
	assert.Equal(t, 1, cache.Len())

	// A different range is a different request.
	ev.Evaluate(context.Background(), testDoc(), params, domain.YearRange(2015, 2015))
	assert.EqualValues(t, 2, engine.RunCalls())
}

func TestEvaluate_EditedDocumentMissesCache(t *testing.T) {
	engine := stub.New(fixedModel(0.9, 7, 12))
	ev := New(engine, engine).WithCache(memory.NewEvaluationCache())

	params := domain.Assignment{"window": domain.IntValue(20)}
	r := domain.YearRange(2012, 2014)

	v1 := testDoc()
	v1.Rules = map[string]string{"entry": "rule v1"}
	v2 := v1.Clone()
	v2.Rules["entry"] = "rule v2"

	first := ev.Evaluate(context.Background(), v1, params, r)
	second := ev.Evaluate(context.Background(), v2, params, r)
	again := ev.Evaluate(context.Background(), v1, params, r)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.False(t, second.Cached, "same ID with new rules must be backtested again")
	assert.True(t, again.Cached)
	assert.EqualValues(t, 2, engine.RunCalls())
}

func TestEvaluate_FailuresAreNotCached(t *testing.T) {
	engine := stub.New(func(domain.Assignment, string, string) stub.Metrics {
		return stub.Metrics{Fail: "boom"}
	})
	cache := memory.NewEvaluationCache()
	ev := New(engine, engine).WithCache(cache)

	ev.Evaluate(context.Background(), testDoc(), domain.Assignment{}, domain.YearRange(2012, 2014))
	assert.Zero(t, cache.Len())
}
