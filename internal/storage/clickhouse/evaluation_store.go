package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hypothesis-lab/internal/storage"
)

// EvaluationStore implements storage.EvaluationStore using ClickHouse.
type EvaluationStore struct {
	conn *Conn
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(conn *Conn) *EvaluationStore {
	return &EvaluationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

func recordKey(r *storage.EvaluationRecord) string {
	return fmt.Sprintf("%s|%d|%s|%d", r.RunID, r.PeriodIndex, r.Phase, r.Seq)
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *EvaluationStore) InsertBulk(ctx context.Context, records []*storage.EvaluationRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	defer observe("parameter_evaluations.insert_bulk", time.Now(), &err)

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(records))
	runs := make(map[string]struct{})
	for _, r := range records {
		if r == nil || r.RunID == "" || r.Phase == "" {
			return storage.ErrInvalidInput
		}
		key := recordKey(r)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		runs[r.RunID] = struct{}{}
	}

	// Check for duplicates against existing rows (ReplacingMergeTree would replace silently)
	for runID := range runs {
		existing, err := s.keys(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for key := range seen {
			if _, dup := existing[key]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO parameter_evaluations (
			run_id, strategy_id, period_index, phase, seq,
			range_start, range_end, params,
			sharpe, cagr, max_drawdown,
			success, error, duration_ms, cached
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		params, err := json.Marshal(r.Evaluation.Params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		e := r.Evaluation
		err = batch.Append(
			r.RunID, r.StrategyID, uint32(r.PeriodIndex), r.Phase, uint32(r.Seq),
			r.RangeStart, r.RangeEnd, string(params),
			e.Sharpe, e.CAGR, e.MaxDrawdown,
			boolToUint8(e.Success), e.Error, uint64(e.Duration.Milliseconds()), boolToUint8(e.Cached),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all records for a run, ordered by period_index, phase, seq ASC.
func (s *EvaluationStore) GetByRunID(ctx context.Context, runID string) (_ []*storage.EvaluationRecord, err error) {
	defer observe("parameter_evaluations.get_by_run_id", time.Now(), &err)

	query := `
		SELECT
			run_id, strategy_id, period_index, phase, seq,
			range_start, range_end, params,
			sharpe, cagr, max_drawdown,
			success, error, duration_ms, cached
		FROM parameter_evaluations FINAL
		WHERE run_id = ?
		ORDER BY period_index ASC, phase ASC, seq ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var result []*storage.EvaluationRecord
	for rows.Next() {
		var (
			r                 storage.EvaluationRecord
			periodIndex, seq  uint32
			params            string
			success, cached   uint8
			durationMs        uint64
			sharpe, cagr, mdd *float64
		)
		if err := rows.Scan(
			&r.RunID, &r.StrategyID, &periodIndex, &r.Phase, &seq,
			&r.RangeStart, &r.RangeEnd, &params,
			&sharpe, &cagr, &mdd,
			&success, &r.Evaluation.Error, &durationMs, &cached,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &r.Evaluation.Params); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		r.PeriodIndex = int(periodIndex)
		r.Seq = int(seq)
		r.Evaluation.Sharpe = sharpe
		r.Evaluation.CAGR = cagr
		r.Evaluation.MaxDrawdown = mdd
		r.Evaluation.Success = success == 1
		r.Evaluation.Cached = cached == 1
		r.Evaluation.Duration = time.Duration(durationMs) * time.Millisecond
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return result, nil
}

// keys returns the composite keys already stored for runID.
func (s *EvaluationStore) keys(ctx context.Context, runID string) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT run_id, period_index, phase, seq
		FROM parameter_evaluations
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var (
			r                storage.EvaluationRecord
			periodIndex, seq uint32
		)
		if err := rows.Scan(&r.RunID, &periodIndex, &r.Phase, &seq); err != nil {
			return nil, err
		}
		r.PeriodIndex, r.Seq = int(periodIndex), int(seq)
		out[recordKey(&r)] = struct{}{}
	}
	return out, rows.Err()
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
