// Package stub provides a deterministic in-process backtest collaborator.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"hypothesis-lab/internal/backtest"
	"hypothesis-lab/internal/domain"
)

// ErrMalformedCode is returned when code was not produced by this stub.
var ErrMalformedCode = errors.New("malformed stub code")

const paramsPrefix = "# params: "

// Metrics is what a Model returns for one backtest.
type Metrics struct {
	Sharpe      *float64
	CAGR        *float64
	MaxDrawdown *float64
	Fail        string // non-empty reports a backtest failure
}

// Model computes metrics for an assignment over [start, end] (YYYY-MM-DD).
type Model func(params domain.Assignment, start, end string) Metrics

// Backtester implements backtest.Generator and backtest.Runner without any I/O.
type Backtester struct {
	model Model

	mu          sync.Mutex
	failGen     map[string]string // assignment key -> generation error
	runErr      map[string]error  // assignment key -> transport error
	runRequests []string          // "key@start..end" in call order

	generateCalls atomic.Int64
	runCalls      atomic.Int64
}

// New creates a stub using model. A nil model uses DefaultModel.
func New(model Model) *Backtester {
	if model == nil {
		model = DefaultModel
	}
	return &Backtester{
		model:   model,
		failGen: make(map[string]string),
		runErr:  make(map[string]error),
	}
}

// FailGeneration makes Generate report failure for the given assignment.
func (b *Backtester) FailGeneration(a domain.Assignment, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failGen[a.Key()] = msg
}

// FailRun makes RunSingle return err for the given assignment.
func (b *Backtester) FailRun(a domain.Assignment, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runErr[a.Key()] = err
}

// GenerateCalls returns the number of Generate calls.
func (b *Backtester) GenerateCalls() int64 { return b.generateCalls.Load() }

// RunCalls returns the number of RunSingle calls.
func (b *Backtester) RunCalls() int64 { return b.runCalls.Load() }

// RunRequests returns "key@start..end" for every RunSingle call, in call order.
func (b *Backtester) RunRequests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.runRequests...)
}

// Generate encodes the document's effective values into stub code.
func (b *Backtester) Generate(ctx context.Context, doc domain.StrategyDocument) (*backtest.GenerateResult, error) {
	b.generateCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := doc.EffectiveValues()
	b.mu.Lock()
	msg, fail := b.failGen[params.Key()]
	b.mu.Unlock()
	if fail {
		return &backtest.GenerateResult{Success: false, Error: msg}, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	code := fmt.Sprintf("# strategy: %s\n%s%s\n", doc.ID, paramsPrefix, raw)
	return &backtest.GenerateResult{Success: true, Code: code}, nil
}

// RunSingle decodes the params from code and evaluates the model.
func (b *Backtester) RunSingle(ctx context.Context, code, startDate, endDate, _ string) (*backtest.RunResult, error) {
	b.runCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params, err := decodeParams(code)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.runRequests = append(b.runRequests, fmt.Sprintf("%s@%s..%s", params.Key(), startDate, endDate))
	runErr := b.runErr[params.Key()]
	b.mu.Unlock()
	if runErr != nil {
		return nil, runErr
	}

	m := b.model(params, startDate, endDate)
	if m.Fail != "" {
		return &backtest.RunResult{Success: false, Error: m.Fail}, nil
	}
	return &backtest.RunResult{
		Success:     true,
		Sharpe:      m.Sharpe,
		CAGR:        m.CAGR,
		MaxDrawdown: m.MaxDrawdown,
	}, nil
}

func decodeParams(code string) (domain.Assignment, error) {
	for _, line := range strings.Split(code, "\n") {
		if !strings.HasPrefix(line, paramsPrefix) {
			continue
		}
		var params domain.Assignment
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, paramsPrefix)), &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCode, err)
		}
		return params, nil
	}
	return nil, ErrMalformedCode
}

// DefaultModel derives stable pseudo-random metrics from the assignment and the
// date range, so the same request always yields the same result.
func DefaultModel(params domain.Assignment, start, end string) Metrics {
	base := noise(params.Key())
	period := noise(params.Key() + "@" + start + ".." + end)
	market := noise(start)

	sharpe := domain.RoundFloat(0.7+0.6*base+0.5*period+0.4*market, 4)
	cagr := domain.RoundFloat(6*sharpe+4*period, 4)
	dd := domain.RoundFloat(8+12*math.Abs(period-market), 4)
	return Metrics{Sharpe: &sharpe, CAGR: &cagr, MaxDrawdown: &dd}
}

// noise maps s to a deterministic value in [-0.5, 0.5).
func noise(s string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum64()%1_000_000)/1_000_000 - 0.5
}

var (
	_ backtest.Generator = (*Backtester)(nil)
	_ backtest.Runner    = (*Backtester)(nil)
)
