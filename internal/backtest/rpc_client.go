package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/observability"
)

// Client defaults.
const (
	DefaultTimeout    = 5 * time.Minute
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// HTTPClient implements Generator and Runner over HTTP JSON-RPC 2.0.
// Transport failures, 429 and non-200 responses are retried with doubling
// delays; JSON-RPC errors are returned immediately.
type HTTPClient struct {
	endpoint   string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	log        logrus.FieldLogger
	nextID     atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.maxRetries = n }
}

// WithRetryDelay sets the delay before the first retry.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.retryDelay = d }
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.maxDelay = d }
}

// WithRateLimit caps outgoing requests at rps with the given burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) { c.client = client }
}

// WithClientLogger sets the logger used for retry warnings.
func WithClientLogger(log logrus.FieldLogger) ClientOption {
	return func(c *HTTPClient) { c.log = log }
}

// NewHTTPClient creates a client for the backtest service at endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("backtest rpc error %d: %s", e.Code, e.Message)
}

// transientError marks a failure worth retrying.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

func (c *HTTPClient) call(ctx context.Context, method string, param, result any) error {
	ctx, span := observability.Tracer().Start(ctx, "backtest.rpc")
	defer span.End()
	span.SetAttributes(attribute.String("rpc.method", method))

	raw, err := json.Marshal(param)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  []json.RawMessage{raw},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return err
			}
			c.log.WithFields(logrus.Fields{
				"method":  method,
				"attempt": attempt,
			}).WithError(lastErr).Warn("retrying backtest call")
		}

		err := c.post(ctx, body, result)
		var transient transientError
		if !errors.As(err, &transient) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = transient.err
	}
	span.SetAttributes(attribute.Int("rpc.retries", c.maxRetries))
	return fmt.Errorf("%s: max retries exceeded: %w", method, lastErr)
}

// wait sleeps before retry attempt n: retryDelay doubled per attempt, capped at maxDelay.
func (c *HTTPClient) wait(ctx context.Context, n int) error {
	delay := c.retryDelay
	for i := 1; i < n && delay < c.maxDelay; i++ {
		delay *= 2
	}
	delay = min(delay, c.maxDelay)

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// post performs one request. Retryable failures are wrapped in transientError.
func (c *HTTPClient) post(ctx context.Context, body []byte, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return transientError{fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	switch {
	case err != nil:
		return transientError{fmt.Errorf("read response: %w", err)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return transientError{errors.New("rate limited (429)")}
	case resp.StatusCode != http.StatusOK:
		return transientError{fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return transientError{fmt.Errorf("unmarshal response: %w", err)}
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// Generate asks the service to produce code for a strategy variant.
func (c *HTTPClient) Generate(ctx context.Context, doc domain.StrategyDocument) (*GenerateResult, error) {
	var result GenerateResult
	if err := c.call(ctx, MethodGenerate, toDocumentPayload(doc), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunSingle asks the service to backtest code over [startDate, endDate].
func (c *HTTPClient) RunSingle(ctx context.Context, code, startDate, endDate, strategyID string) (*RunResult, error) {
	var result RunResult
	param := runPayload{Code: code, StartDate: startDate, EndDate: endDate, StrategyID: strategyID}
	if err := c.call(ctx, MethodRunSingle, param, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

var (
	_ Generator = (*HTTPClient)(nil)
	_ Runner    = (*HTTPClient)(nil)
)
