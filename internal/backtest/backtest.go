// Package backtest defines the code-generation and backtest-execution contracts
// the engine depends on, plus a JSON-RPC transport for them.
package backtest

import (
	"context"
	"errors"

	"hypothesis-lab/internal/domain"
)

// ErrUnconfigured is reported when no generator or runner has been wired.
var ErrUnconfigured = errors.New("backtest collaborator not configured")

// GenerateResult is the outcome of turning a strategy document into executable code.
type GenerateResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunResult is the outcome of one backtest. CAGR and MaxDrawdown are percent.
type RunResult struct {
	Success     bool     `json:"success"`
	Sharpe      *float64 `json:"sharpe,omitempty"`
	CAGR        *float64 `json:"cagr,omitempty"`
	MaxDrawdown *float64 `json:"max_drawdown,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Generator turns a strategy document (with injected values) into code.
type Generator interface {
	Generate(ctx context.Context, doc domain.StrategyDocument) (*GenerateResult, error)
}

// Runner executes generated code over an inclusive date range (YYYY-MM-DD).
type Runner interface {
	RunSingle(ctx context.Context, code, startDate, endDate, strategyID string) (*RunResult, error)
}
