package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

// DefaultCacheEntries bounds an EvaluationCache built without WithMaxEntries.
const DefaultCacheEntries = 10000

// EvaluationCache is an in-memory storage.EvaluationCache. It evicts the least
// recently used entry past its size bound and drops entries older than its TTL.
type EvaluationCache struct {
	lru *expirable.LRU[string, domain.ParameterEvaluation]
}

type cacheOptions struct {
	maxEntries int
	ttl        time.Duration
}

// CacheOption configures an EvaluationCache.
type CacheOption func(*cacheOptions)

// WithMaxEntries bounds the number of entries. n <= 0 means unbounded.
func WithMaxEntries(n int) CacheOption {
	return func(o *cacheOptions) { o.maxEntries = n }
}

// WithTTL expires entries d after they are stored. d <= 0 disables expiry.
func WithTTL(d time.Duration) CacheOption {
	return func(o *cacheOptions) { o.ttl = d }
}

// NewEvaluationCache creates a cache holding at most DefaultCacheEntries
// entries with no expiry unless options say otherwise.
func NewEvaluationCache(opts ...CacheOption) *EvaluationCache {
	o := cacheOptions{maxEntries: DefaultCacheEntries}
	for _, opt := range opts {
		opt(&o)
	}
	return &EvaluationCache{
		lru: expirable.NewLRU[string, domain.ParameterEvaluation](max(o.maxEntries, 0), nil, o.ttl),
	}
}

// Get returns a cached evaluation. Returns ErrNotFound on miss.
func (c *EvaluationCache) Get(_ context.Context, key string) (*domain.ParameterEvaluation, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := e.Clone()
	return &out, nil
}

// Put stores an evaluation under key.
func (c *EvaluationCache) Put(_ context.Context, key string, e *domain.ParameterEvaluation) error {
	if key == "" || e == nil {
		return storage.ErrInvalidInput
	}
	c.lru.Add(key, e.Clone())
	return nil
}

// Len returns the number of stored entries.
func (c *EvaluationCache) Len() int {
	return c.lru.Len()
}

var _ storage.EvaluationCache = (*EvaluationCache)(nil)
