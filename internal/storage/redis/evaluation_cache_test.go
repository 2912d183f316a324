package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/storage"
)

// setupRedis starts a Redis container and returns a connected cache.
func setupRedis(t *testing.T, ttl time.Duration) (*EvaluationCache, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cache, err := Connect(ctx, Config{Addr: fmt.Sprintf("%s:%s", host, port.Port()), TTL: ttl})
	require.NoError(t, err)

	return cache, func() {
		cache.Close()
		_ = container.Terminate(ctx)
	}
}

func f(v float64) *float64 { return &v }

func TestEvaluationCache_PutGet(t *testing.T) {
	cache, cleanup := setupRedis(t, time.Hour)
	defer cleanup()
	ctx := context.Background()

	_, err := cache.Get(ctx, "k1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	e := &domain.ParameterEvaluation{
		Params:      domain.Assignment{"window": domain.IntValue(15)},
		Sharpe:      f(1.25),
		CAGR:        f(9.5),
		MaxDrawdown: nil,
		Success:     true,
		Duration:    2 * time.Second,
	}
	require.NoError(t, cache.Put(ctx, "k1", e))

	got, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.InDelta(t, 1.25, *got.Sharpe, 1e-12)
	assert.InDelta(t, 9.5, *got.CAGR, 1e-12)
	assert.Nil(t, got.MaxDrawdown)
	assert.Nil(t, got.Params, "params are re-attached by the evaluator")
	assert.Equal(t, 2*time.Second, got.Duration)

	ttl, err := cache.client.TTL(ctx, DefaultPrefix+"k1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestEvaluationCache_PutRejectsFailures(t *testing.T) {
	cache := NewEvaluationCache(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), 0)
	defer cache.Close()

	ctx := context.Background()
	assert.ErrorIs(t, cache.Put(ctx, "", &domain.ParameterEvaluation{Success: true}), storage.ErrInvalidInput)
	assert.ErrorIs(t, cache.Put(ctx, "k", nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, cache.Put(ctx, "k", &domain.ParameterEvaluation{Error: "boom"}), storage.ErrInvalidInput)
}
