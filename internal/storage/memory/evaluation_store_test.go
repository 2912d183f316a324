package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

func TestEvaluationStore_InsertBulkAndOrder(t *testing.T) {
	store := NewEvaluationStore()
	ctx := context.Background()

	records := []*storage.EvaluationRecord{
		{RunID: "r", PeriodIndex: 2, Phase: "optimize", Seq: 0},
		{RunID: "r", PeriodIndex: 1, Phase: "test", Seq: 0},
		{RunID: "r", PeriodIndex: 1, Phase: "optimize", Seq: 1},
		{RunID: "r", PeriodIndex: 1, Phase: "optimize", Seq: 0,
			Evaluation: domain.ParameterEvaluation{Params: domain.Assignment{"a": domain.IntValue(1)}, Success: true}},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "r")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 records, got %d", len(got))
	}
	if got[0].PeriodIndex != 1 || got[0].Phase != "optimize" || got[0].Seq != 0 || !got[0].Evaluation.Success {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if got[2].Phase != "test" || got[3].PeriodIndex != 2 {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestEvaluationStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewEvaluationStore()
	ctx := context.Background()

	first := []*storage.EvaluationRecord{{RunID: "r", PeriodIndex: 1, Phase: "optimize", Seq: 0}}
	if err := store.InsertBulk(ctx, first); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	batch := []*storage.EvaluationRecord{
		{RunID: "r", PeriodIndex: 1, Phase: "optimize", Seq: 1},
		{RunID: "r", PeriodIndex: 1, Phase: "optimize", Seq: 0},
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRunID(ctx, "r")
	if len(got) != 1 {
		t.Errorf("batch must be atomic, got %d records", len(got))
	}
}

func TestEvaluationCache_GetPut(t *testing.T) {
	cache := NewEvaluationCache()
	ctx := context.Background()

	if _, err := cache.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	sharpe := 1.5
	e := &domain.ParameterEvaluation{Sharpe: &sharpe, Success: true}
	if err := cache.Put(ctx, "k", e); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	*e.Sharpe = 0

	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *got.Sharpe != 1.5 {
		t.Errorf("cache shares memory with caller")
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}
}

func TestEvaluationCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewEvaluationCache(WithMaxEntries(2))
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		if err := cache.Put(ctx, key, &domain.ParameterEvaluation{Success: true}); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}
	// Touch "a" so "b" is the eviction candidate.
	if _, err := cache.Get(ctx, "a"); err != nil {
		t.Fatalf("Get a failed: %v", err)
	}
	if err := cache.Put(ctx, "c", &domain.ParameterEvaluation{Success: true}); err != nil {
		t.Fatalf("Put c failed: %v", err)
	}

	if cache.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", cache.Len())
	}
	if _, err := cache.Get(ctx, "b"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected b evicted, got %v", err)
	}
	if _, err := cache.Get(ctx, "a"); err != nil {
		t.Errorf("expected a kept, got %v", err)
	}
}

func TestEvaluationCache_Expires(t *testing.T) {
	cache := NewEvaluationCache(WithTTL(20 * time.Millisecond))
	ctx := context.Background()

	if err := cache.Put(ctx, "k", &domain.ParameterEvaluation{Success: true}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, err := cache.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected expired entry, got %v", err)
	}
}
