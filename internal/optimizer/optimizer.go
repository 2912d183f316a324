// Package optimizer searches a strategy's parameter space for the best assignment
// on one date range.
package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/search"
)

// Failure messages recorded on OptimizationResult.Error.
const (
	ErrMsgNoParameters = "no tunable parameters"
	ErrMsgNoCandidates = "no parameter combinations generated"
	ErrMsgAllFailed    = "All parameter combinations failed"
)

// Evaluator evaluates one assignment over one date range.
type Evaluator interface {
	Evaluate(ctx context.Context, doc domain.StrategyDocument, params domain.Assignment, r domain.DateRange) domain.ParameterEvaluation
}

// Request describes one optimization.
type Request struct {
	Document       domain.StrategyDocument
	Range          domain.DateRange
	MaxEvaluations int
	Method         domain.SearchMethod
	Objective      domain.ObjectiveMetric
}

// Optimizer evaluates candidate assignments and keeps the best by objective.
type Optimizer struct {
	eval    Evaluator
	workers int
	seed    int64
	log     logrus.FieldLogger
}

// New creates an optimizer evaluating candidates sequentially.
func New(eval Evaluator) *Optimizer {
	return &Optimizer{
		eval:    eval,
		workers: 1,
		log:     logrus.StandardLogger(),
	}
}

// WithWorkers sets the number of concurrent evaluations. Values below 1 mean 1.
func (o *Optimizer) WithWorkers(n int) *Optimizer {
	if n < 1 {
		n = 1
	}
	o.workers = n
	return o
}

// WithSeed sets the random search seed. Zero picks a time-based seed per call.
func (o *Optimizer) WithSeed(seed int64) *Optimizer {
	o.seed = seed
	return o
}

// WithLogger sets the logger.
func (o *Optimizer) WithLogger(log logrus.FieldLogger) *Optimizer {
	o.log = log
	return o
}

// Optimize runs the search. Failures are reported on the result, never as a Go error.
func (o *Optimizer) Optimize(ctx context.Context, req Request) *domain.OptimizationResult {
	ctx, span := observability.Tracer().Start(ctx, "optimizer.Optimize")
	defer span.End()

	if req.Objective == "" {
		req.Objective = domain.ObjectiveSharpe
	}
	if req.Method == "" {
		req.Method = domain.SearchMethodGrid
	}
	span.SetAttributes(
		attribute.String("strategy_id", req.Document.ID),
		attribute.String("range", req.Range.String()),
		attribute.String("method", string(req.Method)),
	)

	result := &domain.OptimizationResult{
		StrategyID: req.Document.ID,
		Range:      req.Range,
		Method:     req.Method,
		Objective:  req.Objective,
	}
	log := o.log.WithFields(logrus.Fields{
		"strategy_id": req.Document.ID,
		"range":       req.Range.String(),
		"method":      req.Method,
	})

	space := req.Document.Space()
	if space.Empty() {
		result.Error = ErrMsgNoParameters
		observability.RecordOptimization(string(req.Method), "failed", 0)
		return result
	}

	strategy, err := search.New(req.Method, o.seed)
	if err != nil {
		result.Error = err.Error()
		observability.RecordOptimization(string(req.Method), "failed", 0)
		return result
	}

	candidates := strategy.Candidates(space, req.MaxEvaluations)
	if len(candidates) == 0 {
		result.Error = ErrMsgNoCandidates
		observability.RecordOptimization(string(req.Method), "failed", 0)
		return result
	}
	log.WithField("candidates", len(candidates)).Info("optimizing")

	result.Evaluations = o.evaluateAll(ctx, req, candidates)
	result.TotalEvaluated = len(result.Evaluations)

	best := selectBest(result.Evaluations, req.Objective)
	for _, e := range result.Evaluations {
		if e.Success {
			result.Successful++
		}
	}

	if best < 0 {
		result.Error = ErrMsgAllFailed
		log.WithField("evaluated", result.TotalEvaluated).Warn("all parameter combinations failed")
		observability.RecordOptimization(string(req.Method), "failed", len(candidates))
		return result
	}

	winner := result.Evaluations[best]
	result.Success = true
	result.BestParams = winner.Params.Clone()
	result.BestObjective = copyPtr(winner.Objective(req.Objective))
	result.BestSharpe = copyPtr(winner.Sharpe)
	result.BestCAGR = copyPtr(winner.CAGR)
	result.BestDrawdown = copyPtr(winner.MaxDrawdown)

	log.WithFields(logrus.Fields{
		"best_params": result.BestParams.String(),
		"successful":  result.Successful,
		"evaluated":   result.TotalEvaluated,
	}).Info("optimization complete")
	observability.RecordOptimization(string(req.Method), "success", len(candidates))
	return result
}

// evaluateAll evaluates candidates on a bounded pool. Results keep candidate order.
func (o *Optimizer) evaluateAll(ctx context.Context, req Request, candidates []domain.Assignment) []domain.ParameterEvaluation {
	evals := make([]domain.ParameterEvaluation, len(candidates))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, params := range candidates {
		g.Go(func() error {
			evals[i] = o.eval.Evaluate(ctx, req.Document, params, req.Range)
			return nil
		})
	}
	_ = g.Wait()

	return evals
}

// selectBest returns the index of the best successful evaluation, or -1.
// A later evaluation replaces the best only when strictly greater, so ties
// resolve to the lowest candidate index. A missing objective ranks lowest.
func selectBest(evals []domain.ParameterEvaluation, objective domain.ObjectiveMetric) int {
	best := -1
	bestVal := math.Inf(-1)
	for i, e := range evals {
		if !e.Success {
			continue
		}
		v := math.Inf(-1)
		if p := e.Objective(objective); p != nil {
			v = *p
		}
		if best < 0 || v > bestVal {
			best = i
			bestVal = v
		}
	}
	return best
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Summary formats a one-line description for logs.
func Summary(r *domain.OptimizationResult) string {
	if !r.Success {
		return fmt.Sprintf("failed (%d/%d): %s", r.Successful, r.TotalEvaluated, r.Error)
	}
	return fmt.Sprintf("best %s (%d/%d succeeded)", r.BestParams, r.Successful, r.TotalEvaluated)
}
