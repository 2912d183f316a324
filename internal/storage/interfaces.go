package storage

import (
	"context"
	"time"

	"hypothesis-lab/internal/domain"
)

// WalkForwardStore provides access to walk_forward_runs storage.
type WalkForwardStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.WalkForwardResult) error

	// GetByRunID retrieves a run by ID. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.WalkForwardResult, error)

	// GetByStrategy retrieves all runs for a strategy, ordered by timestamp ASC, run_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.WalkForwardResult, error)
}

// AssessmentStore provides access to phase3_assessments storage.
type AssessmentStore interface {
	// Insert adds a new assessment. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.Phase3Result) error

	// GetByRunID retrieves an assessment by run ID. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.Phase3Result, error)

	// GetByStrategy retrieves all assessments for a strategy, ordered by timestamp ASC, run_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Phase3Result, error)
}

// EvaluationRecord is one optimizer evaluation tied to a run and period.
type EvaluationRecord struct {
	RunID       string
	StrategyID  string
	PeriodIndex int    // 0 for standalone optimizations
	Seq         int    // candidate index within the optimization
	Phase       string // "optimize" | "test"
	RangeStart  time.Time
	RangeEnd    time.Time
	Evaluation  domain.ParameterEvaluation
}

// EvaluationStore provides access to parameter_evaluations storage.
type EvaluationStore interface {
	// InsertBulk adds multiple records atomically.
	// Fails entire batch on any duplicate (run_id, period_index, phase, seq).
	InsertBulk(ctx context.Context, records []*EvaluationRecord) error

	// GetByRunID retrieves all records for a run, ordered by period_index, phase, seq ASC.
	GetByRunID(ctx context.Context, runID string) ([]*EvaluationRecord, error)
}

// EvaluationCache memoizes successful evaluations by key.
type EvaluationCache interface {
	// Get returns a cached evaluation. Returns ErrNotFound on miss.
	Get(ctx context.Context, key string) (*domain.ParameterEvaluation, error)

	// Put stores an evaluation under key. Existing entries are overwritten.
	Put(ctx context.Context, key string, e *domain.ParameterEvaluation) error
}
