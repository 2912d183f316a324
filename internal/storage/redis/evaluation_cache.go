// Package redis provides a Redis-backed evaluation cache shared between runs
// and processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/storage"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "hypothesis-lab:evaluation:"

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // zero keeps entries forever
}

// EvaluationCache implements storage.EvaluationCache using Redis.
type EvaluationCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// cachedEvaluation is the stored form. Params are not stored; the evaluator
// re-attaches the requested assignment on a hit.
type cachedEvaluation struct {
	Sharpe      *float64 `json:"sharpe"`
	CAGR        *float64 `json:"cagr"`
	MaxDrawdown *float64 `json:"max_drawdown"`
	DurationMs  int64    `json:"duration_ms"`
}

// Connect creates a client from cfg and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*EvaluationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewEvaluationCache(client, cfg.TTL), nil
}

// NewEvaluationCache wraps an existing client.
func NewEvaluationCache(client redis.UniversalClient, ttl time.Duration) *EvaluationCache {
	return &EvaluationCache{
		client: client,
		prefix: DefaultPrefix,
		ttl:    ttl,
	}
}

// WithPrefix overrides the key prefix.
func (c *EvaluationCache) WithPrefix(prefix string) *EvaluationCache {
	c.prefix = prefix
	return c
}

// Compile-time interface check.
var _ storage.EvaluationCache = (*EvaluationCache)(nil)

// Get returns a cached evaluation. Returns ErrNotFound on miss.
func (c *EvaluationCache) Get(ctx context.Context, key string) (_ *domain.ParameterEvaluation, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordDBQuery("redis", "get", time.Since(start).Seconds(), nil)
			return
		}
		observability.RecordDBQuery("redis", "get", time.Since(start).Seconds(), err)
	}()

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get evaluation from redis: %w", err)
	}

	var stored cachedEvaluation
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal cached evaluation: %w", err)
	}
	return &domain.ParameterEvaluation{
		Sharpe:      stored.Sharpe,
		CAGR:        stored.CAGR,
		MaxDrawdown: stored.MaxDrawdown,
		Success:     true,
		Duration:    time.Duration(stored.DurationMs) * time.Millisecond,
	}, nil
}

// Put stores a successful evaluation under key. Existing entries are overwritten.
func (c *EvaluationCache) Put(ctx context.Context, key string, e *domain.ParameterEvaluation) (err error) {
	if key == "" || e == nil || !e.Success {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) {
		observability.RecordDBQuery("redis", "set", time.Since(start).Seconds(), err)
	}(time.Now())

	data, err := json.Marshal(cachedEvaluation{
		Sharpe:      e.Sharpe,
		CAGR:        e.CAGR,
		MaxDrawdown: e.MaxDrawdown,
		DurationMs:  e.Duration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set evaluation in redis: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *EvaluationCache) Close() error {
	return c.client.Close()
}
