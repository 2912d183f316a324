package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

func sampleRun(runID, strategyID string, ts time.Time) *domain.WalkForwardResult {
	sharpe := 1.1
	return &domain.WalkForwardResult{
		RunID:      runID,
		StrategyID: strategyID,
		Config:     domain.DefaultWalkForwardConfig(),
		Periods: []domain.WalkForwardPeriod{
			{
				Index:     1,
				Optimize:  domain.YearRange(2010, 2012),
				Test:      domain.YearRange(2013, 2013),
				Params:    domain.Assignment{"window": domain.IntValue(20)},
				OOSSharpe: &sharpe,
				Success:   true,
			},
		},
		TotalPeriods:      1,
		SuccessfulPeriods: 1,
		Success:           true,
		Timestamp:         ts,
	}
}

func TestWalkForwardStore_InsertAndGet(t *testing.T) {
	store := NewWalkForwardStore()
	ctx := context.Background()

	run := sampleRun("run-1", "mom", time.Unix(1700000000, 0).UTC())
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if *got.Periods[0].OOSSharpe != 1.1 {
		t.Errorf("OOSSharpe mismatch: got %f", *got.Periods[0].OOSSharpe)
	}

	// Stored copy is isolated from caller mutation.
	*run.Periods[0].OOSSharpe = 9
	got, _ = store.GetByRunID(ctx, "run-1")
	if *got.Periods[0].OOSSharpe != 1.1 {
		t.Errorf("store shares memory with caller")
	}
}

func TestWalkForwardStore_DuplicateKey(t *testing.T) {
	store := NewWalkForwardStore()
	ctx := context.Background()

	run := sampleRun("run-1", "mom", time.Now())
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestWalkForwardStore_NotFoundAndInvalid(t *testing.T) {
	store := NewWalkForwardStore()
	ctx := context.Background()

	if _, err := store.GetByRunID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &domain.WalkForwardResult{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestWalkForwardStore_GetByStrategyOrdered(t *testing.T) {
	store := NewWalkForwardStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	for _, r := range []*domain.WalkForwardResult{
		sampleRun("c", "mom", base.Add(2*time.Hour)),
		sampleRun("a", "mom", base),
		sampleRun("b", "other", base),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByStrategy(ctx, "mom")
	if err != nil {
		t.Fatalf("GetByStrategy failed: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "a" || got[1].RunID != "c" {
		t.Errorf("unexpected order: %v", got)
	}
}
