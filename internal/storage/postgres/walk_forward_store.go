package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/reporting"
	"hypothesis-lab/internal/storage"
)

// WalkForwardStore implements storage.WalkForwardStore using PostgreSQL.
type WalkForwardStore struct {
	pool *Pool
}

// NewWalkForwardStore creates a new WalkForwardStore.
func NewWalkForwardStore(pool *Pool) *WalkForwardStore {
	return &WalkForwardStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalkForwardStore = (*WalkForwardStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *WalkForwardStore) Insert(ctx context.Context, r *domain.WalkForwardResult) (err error) {
	defer observe("walk_forward_runs.insert", time.Now(), &err)

	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	document, err := json.Marshal(reporting.NewWalkForwardDocument(r))
	if err != nil {
		return fmt.Errorf("marshal walk-forward document: %w", err)
	}

	query := `
		INSERT INTO walk_forward_runs (
			run_id, strategy_id, run_timestamp, policy,
			total_periods, successful_periods, success, cancelled,
			avg_oos_sharpe, consistency, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID,
		r.StrategyID,
		r.Timestamp,
		string(r.Config.Policy),
		r.TotalPeriods,
		r.SuccessfulPeriods,
		r.Success,
		r.Cancelled,
		r.Aggregate.AvgOOSSharpe,
		r.Aggregate.Consistency,
		document,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert walk-forward run: %w", err)
	}
	return nil
}

// GetByRunID retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *WalkForwardStore) GetByRunID(ctx context.Context, runID string) (_ *domain.WalkForwardResult, err error) {
	defer observe("walk_forward_runs.get_by_run_id", time.Now(), &err)

	query := `SELECT document FROM walk_forward_runs WHERE run_id = $1`

	r, err := scanWalkForward(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get walk-forward run: %w", err)
	}
	return r, nil
}

// GetByStrategy retrieves all runs for a strategy, ordered by timestamp ASC, run_id ASC.
func (s *WalkForwardStore) GetByStrategy(ctx context.Context, strategyID string) (_ []*domain.WalkForwardResult, err error) {
	defer observe("walk_forward_runs.get_by_strategy", time.Now(), &err)

	query := `
		SELECT document
		FROM walk_forward_runs
		WHERE strategy_id = $1
		ORDER BY run_timestamp ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get walk-forward runs by strategy: %w", err)
	}
	defer rows.Close()

	var result []*domain.WalkForwardResult
	for rows.Next() {
		r, err := scanWalkForward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan walk-forward run: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walk-forward runs: %w", err)
	}
	return result, nil
}

func scanWalkForward(row pgx.Row) (*domain.WalkForwardResult, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	var doc reporting.WalkForwardDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode walk-forward document: %w", err)
	}
	return doc.Result()
}
