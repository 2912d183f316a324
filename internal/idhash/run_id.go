package idhash

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"hypothesis-lab/internal/domain"
)

// runIDBytes is the number of hash bytes kept in a run ID.
const runIDBytes = 16

// ComputeRunID computes a deterministic run_id.
// Formula: SHA256(strategy_id|start|end|train|test|policy|max_evals|method|objective|timestamp_ms)
// Returns the first 16 hash bytes, base58-encoded.
func ComputeRunID(strategyID string, cfg domain.WalkForwardConfig, ts time.Time) string {
	data := fmt.Sprintf("%s|%d|%d|%d|%d|%s|%d|%s|%s|%d",
		strategyID,
		cfg.StartYear,
		cfg.EndYear,
		cfg.InitialTrainYears,
		cfg.TestYears,
		cfg.Policy,
		cfg.MaxEvaluations,
		cfg.Method,
		cfg.Objective,
		ts.UnixMilli(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:runIDBytes])
}

// ComputeEvaluationKey computes the cache key of one backtest request.
// Formula: SHA256(document_json|assignment_key|start|end), base58-encoded.
// The document is hashed without its assignment, so any edit to its rules,
// hypothesis, instruments, timeframe or parameters yields a new key.
func ComputeEvaluationKey(doc domain.StrategyDocument, params domain.Assignment, r domain.DateRange) (string, error) {
	doc.Assigned = nil
	content, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode strategy %s: %w", doc.ID, err)
	}

	h := sha256.New()
	h.Write(content)
	fmt.Fprintf(h, "|%s|%s|%s", params.Key(), r.StartDate(), r.EndDate())
	return base58.Encode(h.Sum(nil)), nil
}
