package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

func TestAssessmentStore_InsertAndGet(t *testing.T) {
	store := NewAssessmentStore()
	ctx := context.Background()

	res := &domain.Phase3Result{
		RunID:      "run-1",
		StrategyID: "mom",
		MonteCarlo: &domain.MonteCarloResult{Simulations: 100, MeanCAGR: 8.5},
		Assessment: domain.Assessment{
			RiskAdjustedScore: 72.5,
			Confidence:        domain.ConfidenceHigh,
			Recommendation:    "DEPLOY",
			Concerns:          []string{"x"},
		},
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}
	if err := store.Insert(ctx, res); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, res); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	res.Assessment.Concerns[0] = "mutated"
	res.MonteCarlo.MeanCAGR = 0

	got, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if got.Assessment.Concerns[0] != "x" || got.MonteCarlo.MeanCAGR != 8.5 {
		t.Errorf("store shares memory with caller: %+v", got)
	}

	list, err := store.GetByStrategy(ctx, "mom")
	if err != nil || len(list) != 1 {
		t.Fatalf("GetByStrategy: %v, %d", err, len(list))
	}
}
