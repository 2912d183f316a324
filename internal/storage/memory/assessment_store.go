package memory

import (
	"context"
	"sort"
	"sync"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

// AssessmentStore is an in-memory implementation of storage.AssessmentStore.
type AssessmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Phase3Result // keyed by run_id
}

// NewAssessmentStore creates a new in-memory assessment store.
func NewAssessmentStore() *AssessmentStore {
	return &AssessmentStore{
		data: make(map[string]*domain.Phase3Result),
	}
}

// Insert adds a new assessment. Returns ErrDuplicateKey if run_id exists.
func (s *AssessmentStore) Insert(_ context.Context, r *domain.Phase3Result) error {
	if r == nil || r.RunID == "" || r.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = r.Clone()
	return nil
}

// GetByRunID retrieves an assessment by run ID. Returns ErrNotFound if not exists.
func (s *AssessmentStore) GetByRunID(_ context.Context, runID string) (*domain.Phase3Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// GetByStrategy retrieves all assessments for a strategy, ordered by timestamp ASC, run_id ASC.
func (s *AssessmentStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.Phase3Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Phase3Result
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

var _ storage.AssessmentStore = (*AssessmentStore)(nil)
