package walkforward

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/idhash"
	"hypothesis-lab/internal/metrics"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/optimizer"
	"hypothesis-lab/internal/storage"
)

// Evaluation phases recorded in the evaluation store.
const (
	PhaseOptimize = "optimize"
	PhaseTest     = "test"
)

// Observer follows a run. Calls happen on the runner goroutine, in period order.
type Observer interface {
	PeriodStarted(runID string, p domain.WalkForwardPeriod, total int)
	PeriodCompleted(runID string, p domain.WalkForwardPeriod, total int)
	RunCompleted(r *domain.WalkForwardResult)
}

// Optimizer is the subset of optimizer.Optimizer used per period.
type Optimizer interface {
	Optimize(ctx context.Context, req optimizer.Request) *domain.OptimizationResult
}

// Runner executes walk-forward runs.
type Runner struct {
	optimizer       Optimizer
	evaluator       optimizer.Evaluator
	evaluationStore storage.EvaluationStore
	observers       []Observer
	log             logrus.FieldLogger
	clock           func() time.Time
}

// Options for creating Runner.
type Options struct {
	// Required
	Optimizer Optimizer
	Evaluator optimizer.Evaluator // re-evaluates the winner on the test window

	// Optional
	EvaluationStore storage.EvaluationStore // persists every evaluation when set
	Observers       []Observer
	Logger          logrus.FieldLogger
	Clock           func() time.Time
}

// NewRunner creates a new Runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		optimizer:       opts.Optimizer,
		evaluator:       opts.Evaluator,
		evaluationStore: opts.EvaluationStore,
		observers:       opts.Observers,
		log:             opts.Logger,
		clock:           opts.Clock,
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r
}

// Run executes every scheduled period sequentially and aggregates the results.
// Configuration and evaluation problems are reported on the result.
// Cancelling ctx stops before the next period; collected periods are kept.
func (r *Runner) Run(ctx context.Context, doc domain.StrategyDocument, cfg domain.WalkForwardConfig) *domain.WalkForwardResult {
	started := r.clock()
	runID := idhash.ComputeRunID(doc.ID, cfg, started)

	ctx, span := observability.Tracer().Start(ctx, "walkforward.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("strategy_id", doc.ID),
		attribute.String("policy", string(cfg.Policy)),
	)

	result := &domain.WalkForwardResult{
		RunID:      runID,
		StrategyID: doc.ID,
		Config:     cfg,
		Timestamp:  started,
	}
	log := r.log.WithFields(logrus.Fields{"run_id": runID, "strategy_id": doc.ID})

	schedule := Schedule(cfg)
	result.TotalPeriods = len(schedule)
	if len(schedule) == 0 {
		result.Error = ErrMsgNoPeriods
		log.Warn(ErrMsgNoPeriods)
		r.finish(result, started)
		return result
	}
	result.OverlappingTestWindows = metrics.HasOverlappingTests(schedule)

	observability.DefaultMetrics.ActiveRuns.Inc()
	defer observability.DefaultMetrics.ActiveRuns.Dec()

	log.WithFields(logrus.Fields{
		"periods": len(schedule),
		"policy":  cfg.Policy,
		"method":  cfg.Method,
	}).Info("walk-forward started")

	for _, planned := range schedule {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			result.Error = fmt.Sprintf("run cancelled after %d of %d periods: %v", len(result.Periods), len(schedule), err)
			log.Warn(result.Error)
			break
		}

		for _, o := range r.observers {
			o.PeriodStarted(runID, planned, len(schedule))
		}

		p := r.runPeriod(ctx, runID, doc, cfg, planned)
		result.Periods = append(result.Periods, p)

		status := "success"
		if !p.Success {
			status = "failed"
		}
		observability.RecordPeriod(status)
		log.WithFields(logrus.Fields{
			"period":   p.Index,
			"optimize": p.Optimize.String(),
			"test":     p.Test.String(),
			"status":   status,
			"error":    p.Error,
		}).Info("period complete")

		for _, o := range r.observers {
			o.PeriodCompleted(runID, p, len(schedule))
		}
	}

	for _, p := range result.Periods {
		if p.Success {
			result.SuccessfulPeriods++
		}
	}
	result.Aggregate = metrics.Aggregate(result.Periods)

	if result.SuccessfulPeriods > 0 {
		result.Success = true
	} else if result.Error == "" {
		result.Error = metrics.ErrMsgNoSuccessfulPeriods
	}

	log.WithFields(logrus.Fields{
		"successful": result.SuccessfulPeriods,
		"total":      result.TotalPeriods,
	}).Info("walk-forward complete")
	r.finish(result, started)
	return result
}

func (r *Runner) runPeriod(ctx context.Context, runID string, doc domain.StrategyDocument, cfg domain.WalkForwardConfig, p domain.WalkForwardPeriod) domain.WalkForwardPeriod {
	ctx, span := observability.Tracer().Start(ctx, "walkforward.Period")
	defer span.End()
	span.SetAttributes(attribute.Int("period", p.Index), attribute.String("test", p.Test.String()))

	opt := r.optimizer.Optimize(ctx, optimizer.Request{
		Document:       doc,
		Range:          p.Optimize,
		MaxEvaluations: cfg.MaxEvaluations,
		Method:         cfg.Method,
		Objective:      cfg.Objective,
	})
	p.Evaluated = opt.TotalEvaluated
	p.Successful = opt.Successful
	r.persist(ctx, runID, doc.ID, p.Index, PhaseOptimize, p.Optimize, opt.Evaluations)

	if !opt.Success {
		p.Error = opt.Error
		return p
	}

	p.Params = opt.BestParams.Clone()
	p.InSampleObjective = opt.BestObjective
	p.InSampleSharpe = opt.BestSharpe

	test := r.evaluator.Evaluate(ctx, doc, p.Params, p.Test)
	r.persist(ctx, runID, doc.ID, p.Index, PhaseTest, p.Test, []domain.ParameterEvaluation{test})
	if !test.Success {
		p.Error = test.Error
		return p
	}

	p.OOSSharpe = test.Sharpe
	p.OOSCAGR = test.CAGR
	p.OOSMaxDrawdown = test.MaxDrawdown
	p.Success = true
	return p
}

// persist writes evaluations when a store is configured. Failures are logged only.
func (r *Runner) persist(ctx context.Context, runID, strategyID string, periodIndex int, phase string, rng domain.DateRange, evals []domain.ParameterEvaluation) {
	if r.evaluationStore == nil || len(evals) == 0 {
		return
	}
	records := make([]*storage.EvaluationRecord, len(evals))
	for i, e := range evals {
		records[i] = &storage.EvaluationRecord{
			RunID:       runID,
			StrategyID:  strategyID,
			PeriodIndex: periodIndex,
			Seq:         i,
			Phase:       phase,
			RangeStart:  rng.Start,
			RangeEnd:    rng.End,
			Evaluation:  e,
		}
	}
	if err := r.evaluationStore.InsertBulk(context.WithoutCancel(ctx), records); err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": runID,
			"period": periodIndex,
			"phase":  phase,
		}).WithError(err).Warn("persist evaluations")
	}
}

func (r *Runner) finish(result *domain.WalkForwardResult, started time.Time) {
	status := "success"
	switch {
	case result.Cancelled:
		status = "cancelled"
	case !result.Success:
		status = "failed"
	}
	observability.RecordWalkForwardRun(string(result.Config.Policy), status, r.clock().Sub(started).Seconds())
	for _, o := range r.observers {
		o.RunCompleted(result)
	}
}
