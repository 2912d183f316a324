package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hypothesis-lab/internal/storage"
)

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
type EvaluationStore struct {
	mu   sync.RWMutex
	data map[string]*storage.EvaluationRecord // keyed by composite key
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[string]*storage.EvaluationRecord),
	}
}

// evaluationKey generates a unique key for a record.
func evaluationKey(r *storage.EvaluationRecord) string {
	return fmt.Sprintf("%s|%d|%s|%d", r.RunID, r.PeriodIndex, r.Phase, r.Seq)
}

func copyRecord(r *storage.EvaluationRecord) *storage.EvaluationRecord {
	c := *r
	c.Evaluation = r.Evaluation.Clone()
	return &c
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *EvaluationStore) InsertBulk(_ context.Context, records []*storage.EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(records))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range records {
		if r == nil || r.RunID == "" || r.Phase == "" {
			return storage.ErrInvalidInput
		}
		key := evaluationKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		s.data[evaluationKey(r)] = copyRecord(r)
	}

	return nil
}

// GetByRunID retrieves all records for a run, ordered by period_index, phase, seq ASC.
func (s *EvaluationStore) GetByRunID(_ context.Context, runID string) ([]*storage.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.EvaluationRecord
	for _, r := range s.data {
		if r.RunID == runID {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PeriodIndex != result[j].PeriodIndex {
			return result[i].PeriodIndex < result[j].PeriodIndex
		}
		if result[i].Phase != result[j].Phase {
			return result[i].Phase < result[j].Phase
		}
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.EvaluationStore = (*EvaluationStore)(nil)
