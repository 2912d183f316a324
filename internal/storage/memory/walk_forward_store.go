package memory

import (
	"context"
	"sort"
	"sync"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

// WalkForwardStore is an in-memory implementation of storage.WalkForwardStore.
type WalkForwardStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalkForwardResult // keyed by run_id
}

// NewWalkForwardStore creates a new in-memory walk-forward store.
func NewWalkForwardStore() *WalkForwardStore {
	return &WalkForwardStore{
		data: make(map[string]*domain.WalkForwardResult),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *WalkForwardStore) Insert(_ context.Context, r *domain.WalkForwardResult) error {
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

// GetByRunID retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *WalkForwardStore) GetByRunID(_ context.Context, runID string) (*domain.WalkForwardResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// GetByStrategy retrieves all runs for a strategy, ordered by timestamp ASC, run_id ASC.
func (s *WalkForwardStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.WalkForwardResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalkForwardResult
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

var _ storage.WalkForwardStore = (*WalkForwardStore)(nil)
