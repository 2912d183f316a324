// Package evaluator runs one strategy variant through code generation and a backtest.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/backtest"
	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/idhash"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/storage"
)

// Evaluation outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomeUnconfigured = "unconfigured"
	OutcomeGenerate     = "generate_failed"
	OutcomeBacktest     = "backtest_failed"
	OutcomeReported     = "backtest_reported_failure"
	OutcomeTimeout      = "timeout"
	OutcomeCancelled    = "cancelled"
	OutcomeCached       = "cached"
)

// Evaluator turns (document, assignment, date range) into a ParameterEvaluation.
// It never returns a Go error: every failure is recorded on the evaluation.
type Evaluator struct {
	generator backtest.Generator
	runner    backtest.Runner
	cache     storage.EvaluationCache
	timeout   time.Duration
	log       logrus.FieldLogger
	clock     func() time.Time
}

// New creates an evaluator. Either collaborator may be nil, in which case every
// evaluation fails with backtest.ErrUnconfigured.
func New(generator backtest.Generator, runner backtest.Runner) *Evaluator {
	return &Evaluator{
		generator: generator,
		runner:    runner,
		log:       logrus.StandardLogger(),
		clock:     time.Now,
	}
}

// WithCache memoizes successful evaluations.
func (e *Evaluator) WithCache(c storage.EvaluationCache) *Evaluator {
	e.cache = c
	return e
}

// WithTimeout bounds each evaluation. Zero means no per-evaluation bound.
func (e *Evaluator) WithTimeout(d time.Duration) *Evaluator {
	e.timeout = d
	return e
}

// WithLogger sets the logger.
func (e *Evaluator) WithLogger(log logrus.FieldLogger) *Evaluator {
	e.log = log
	return e
}

// WithClock sets the clock used for durations.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	e.clock = clock
	return e
}

// Configured reports whether both collaborators are wired.
func (e *Evaluator) Configured() bool {
	return e.generator != nil && e.runner != nil
}

// Evaluate builds the variant, generates its code and backtests it over r.
func (e *Evaluator) Evaluate(ctx context.Context, doc domain.StrategyDocument, params domain.Assignment, r domain.DateRange) domain.ParameterEvaluation {
	start := e.clock()
	eval := domain.ParameterEvaluation{Params: params.Clone()}

	outcome := e.evaluate(ctx, doc, params, r, &eval)
	eval.Duration = e.clock().Sub(start)
	observability.RecordEvaluation(outcome, eval.Duration.Seconds())

	fields := logrus.Fields{
		"strategy_id": doc.ID,
		"params":      params.String(),
		"range":       r.String(),
		"outcome":     outcome,
	}
	if eval.Success {
		e.log.WithFields(fields).Debug("evaluation succeeded")
	} else {
		e.log.WithFields(fields).WithField("error", eval.Error).Debug("evaluation failed")
	}
	return eval
}

func (e *Evaluator) evaluate(ctx context.Context, doc domain.StrategyDocument, params domain.Assignment, r domain.DateRange, eval *domain.ParameterEvaluation) string {
	if !e.Configured() {
		eval.Error = backtest.ErrUnconfigured.Error()
		return OutcomeUnconfigured
	}
	if err := ctx.Err(); err != nil {
		eval.Error = fmt.Sprintf("evaluation cancelled: %v", err)
		return OutcomeCancelled
	}

	key := e.cacheKey(doc, params, r)
	if key != "" {
		cached, err := e.cache.Get(ctx, key)
		switch {
		case err == nil:
			observability.RecordCacheLookup(true)
			*eval = *cached
			eval.Params = params.Clone()
			eval.Cached = true
			return OutcomeCached
		case errors.Is(err, storage.ErrNotFound):
			observability.RecordCacheLookup(false)
		default:
			observability.RecordCacheLookup(false)
			e.log.WithError(err).Warn("evaluation cache lookup failed")
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	variant := doc.WithAssignment(params)
	gen, err := e.generator.Generate(ctx, variant)
	if err != nil {
		eval.Error = fmt.Sprintf("code generation failed: %v", err)
		return classify(ctx, OutcomeGenerate)
	}
	if !gen.Success {
		eval.Error = fmt.Sprintf("code generation failed: %s", gen.Error)
		return OutcomeGenerate
	}

	run, err := e.runner.RunSingle(ctx, gen.Code, r.StartDate(), r.EndDate(), doc.ID)
	if err != nil {
		eval.Error = fmt.Sprintf("backtest failed: %v", err)
		return classify(ctx, OutcomeBacktest)
	}
	if !run.Success {
		msg := run.Error
		if msg == "" {
			msg = "unknown error"
		}
		eval.Error = fmt.Sprintf("backtest reported failure: %s", msg)
		return OutcomeReported
	}

	eval.Success = true
	eval.Sharpe = finite(run.Sharpe)
	eval.CAGR = finite(run.CAGR)
	if dd := finite(run.MaxDrawdown); dd != nil {
		mag := math.Abs(*dd)
		eval.MaxDrawdown = &mag
	}

	if key != "" {
		stored := *eval
		if err := e.cache.Put(ctx, key, &stored); err != nil {
			e.log.WithError(err).Warn("evaluation cache store failed")
		}
	}
	return OutcomeSuccess
}

// cacheKey returns the cache key for a request, or "" when caching is off or
// the document cannot be hashed.
func (e *Evaluator) cacheKey(doc domain.StrategyDocument, params domain.Assignment, r domain.DateRange) string {
	if e.cache == nil {
		return ""
	}
	key, err := idhash.ComputeEvaluationKey(doc, params, r)
	if err != nil {
		e.log.WithError(err).Warn("evaluation not cacheable")
		return ""
	}
	return key
}

// classify maps context failures to dedicated outcomes.
func classify(ctx context.Context, fallback string) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return OutcomeCancelled
	}
	return fallback
}

// finite copies v, dropping NaN and infinities.
func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	c := *v
	return &c
}
