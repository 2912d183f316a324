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

// AssessmentStore implements storage.AssessmentStore using PostgreSQL.
type AssessmentStore struct {
	pool *Pool
}

// NewAssessmentStore creates a new AssessmentStore.
func NewAssessmentStore(pool *Pool) *AssessmentStore {
	return &AssessmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AssessmentStore = (*AssessmentStore)(nil)

// Insert adds a new assessment. Returns ErrDuplicateKey if run_id exists.
func (s *AssessmentStore) Insert(ctx context.Context, r *domain.Phase3Result) (err error) {
	defer observe("phase3_assessments.insert", time.Now(), &err)

	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	document, err := json.Marshal(reporting.NewPhase3Document(r))
	if err != nil {
		return fmt.Errorf("marshal phase 3 document: %w", err)
	}

	query := `
		INSERT INTO phase3_assessments (
			run_id, strategy_id, run_timestamp,
			risk_adjusted_score, confidence_level, recommendation, concern_count,
			document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID,
		r.StrategyID,
		r.Timestamp,
		r.Assessment.RiskAdjustedScore,
		string(r.Assessment.Confidence),
		r.Assessment.Recommendation,
		len(r.Assessment.Concerns),
		document,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// GetByRunID retrieves an assessment by run ID. Returns ErrNotFound if not exists.
func (s *AssessmentStore) GetByRunID(ctx context.Context, runID string) (_ *domain.Phase3Result, err error) {
	defer observe("phase3_assessments.get_by_run_id", time.Now(), &err)

	query := `SELECT document FROM phase3_assessments WHERE run_id = $1`

	r, err := scanAssessment(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return r, nil
}

// GetByStrategy retrieves all assessments for a strategy, ordered by timestamp ASC, run_id ASC.
func (s *AssessmentStore) GetByStrategy(ctx context.Context, strategyID string) (_ []*domain.Phase3Result, err error) {
	defer observe("phase3_assessments.get_by_strategy", time.Now(), &err)

	query := `
		SELECT document
		FROM phase3_assessments
		WHERE strategy_id = $1
		ORDER BY run_timestamp ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get assessments by strategy: %w", err)
	}
	defer rows.Close()

	var result []*domain.Phase3Result
	for rows.Next() {
		r, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return result, nil
}

func scanAssessment(row pgx.Row) (*domain.Phase3Result, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	var doc reporting.Phase3Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode phase 3 document: %w", err)
	}
	return doc.Result()
}
