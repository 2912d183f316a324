package backtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hypothesis-lab/internal/domain"
)

func TestHTTPClient_RunSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != MethodRunSingle {
			t.Errorf("expected method %s, got %s", MethodRunSingle, req.Method)
		}

		var p runPayload
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			t.Fatalf("decode params: %v", err)
		}
		if p.StartDate != "2015-01-01" || p.EndDate != "2015-12-31" || p.StrategyID != "s1" {
			t.Errorf("unexpected params: %+v", p)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"success":      true,
				"sharpe":       1.25,
				"cagr":         11.5,
				"max_drawdown": 9.0,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	res, err := client.RunSingle(context.Background(), "code", "2015-01-01", "2015-12-31", "s1")
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Sharpe == nil || *res.Sharpe != 1.25 {
		t.Errorf("expected sharpe 1.25, got %v", res.Sharpe)
	}
	if res.CAGR == nil || *res.CAGR != 11.5 {
		t.Errorf("expected cagr 11.5, got %v", res.CAGR)
	}
}

func TestHTTPClient_Generate_SendsEffectiveValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		var p documentPayload
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			t.Fatalf("decode params: %v", err)
		}
		if got := p.Parameters["window"]; !got.Equal(domain.IntValue(15)) {
			t.Errorf("expected window=15, got %v", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"success": true, "code": "print(1)"},
		})
	}))
	defer server.Close()

	doc := domain.StrategyDocument{
		ID: "s1",
		Parameters: []domain.TunableParameter{
			{Name: "window", Kind: domain.ParameterKindInteger, Default: domain.IntValue(10)},
		},
	}
	res, err := NewHTTPClient(server.URL).Generate(context.Background(), doc.WithAssignment(domain.Assignment{"window": domain.IntValue(15)}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Code != "print(1)" {
		t.Errorf("unexpected code %q", res.Code)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"success": false, "error": "no data"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
		WithMaxDelay(50*time.Millisecond),
	)

	res, err := client.RunSingle(context.Background(), "code", "2015-01-01", "2015-12-31", "s1")
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}
	if res.Success || res.Error != "no data" {
		t.Errorf("expected reported failure, got %+v", res)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32603, "message": "engine down"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	_, err := client.RunSingle(context.Background(), "code", "2015-01-01", "2015-12-31", "s1")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(10),
		WithRetryDelay(100*time.Millisecond),
		WithRateLimit(100, 1),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.RunSingle(ctx, "code", "2015-01-01", "2015-12-31", "s1")
	if err == nil {
		t.Fatal("expected error due to context cancellation")
	}
}
