// Package app wires configuration into evaluators, stores and the Phase 3
// pipeline. Every command builds its components here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/backtest"
	"hypothesis-lab/internal/backtest/stub"
	"hypothesis-lab/internal/config"
	"hypothesis-lab/internal/evaluator"
	"hypothesis-lab/internal/montecarlo"
	"hypothesis-lab/internal/optimizer"
	"hypothesis-lab/internal/pipeline"
	"hypothesis-lab/internal/storage"
	chstore "hypothesis-lab/internal/storage/clickhouse"
	"hypothesis-lab/internal/storage/memory"
	"hypothesis-lab/internal/storage/migrations"
	pgstore "hypothesis-lab/internal/storage/postgres"
	redisstore "hypothesis-lab/internal/storage/redis"
	"hypothesis-lab/internal/walkforward"
)

// Backend names reported by Components.Backend.
const (
	BackendFixtures = "fixtures"
	BackendStub     = "stub"
	BackendRPC      = "rpc"
	BackendNone     = "none"
)

// Options tune component construction beyond the config file.
type Options struct {
	UseFixtures bool // deterministic fixture model instead of the configured backtest
	Observers   []walkforward.Observer
	Clock       func() time.Time
}

// Stores holds the result stores selected by configuration.
type Stores struct {
	WalkForward storage.WalkForwardStore
	Assessments storage.AssessmentStore
	Evaluations storage.EvaluationStore
	Cache       storage.EvaluationCache // nil when caching is disabled
}

// Components is the wired object graph shared by the commands.
type Components struct {
	Config    *config.Config
	Stores    Stores
	Evaluator *evaluator.Evaluator
	Optimizer *optimizer.Optimizer
	Runner    *walkforward.Runner
	Analyzer  *montecarlo.Analyzer
	Backend   string

	log     logrus.FieldLogger
	clock   func() time.Time
	closers []func()
}

// Build connects stores and constructs the evaluation stack.
// Call Close to release connections.
func Build(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts Options) (*Components, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Components{Config: cfg, log: log, clock: opts.Clock}

	if err := c.openStores(ctx); err != nil {
		c.Close()
		return nil, err
	}

	gen, run, backend := c.backtest(opts.UseFixtures)
	c.Backend = backend

	c.Evaluator = evaluator.New(gen, run).
		WithTimeout(cfg.Backtest.EvaluationTimeout).
		WithLogger(log)
	if c.Stores.Cache != nil {
		c.Evaluator = c.Evaluator.WithCache(c.Stores.Cache)
	}
	if opts.Clock != nil {
		c.Evaluator = c.Evaluator.WithClock(opts.Clock)
	}

	c.Optimizer = optimizer.New(c.Evaluator).
		WithWorkers(cfg.WalkForward.Workers).
		WithSeed(cfg.WalkForward.Seed).
		WithLogger(log)

	c.Runner = walkforward.NewRunner(walkforward.Options{
		Optimizer:       c.Optimizer,
		Evaluator:       c.Evaluator,
		EvaluationStore: c.Stores.Evaluations,
		Observers:       opts.Observers,
		Logger:          log,
		Clock:           opts.Clock,
	})

	c.Analyzer = montecarlo.NewAnalyzer(montecarlo.Config{
		Simulations:     cfg.MonteCarlo.Simulations,
		Years:           cfg.MonteCarlo.Years,
		BenchmarkReturn: cfg.MonteCarlo.BenchmarkReturn,
		Seed:            cfg.MonteCarlo.Seed,
	}, log)

	log.WithFields(logrus.Fields{
		"backend": backend,
		"workers": cfg.WalkForward.Workers,
		"cache":   c.Stores.Cache != nil,
	}).Info("components ready")
	return c, nil
}

// Pipeline returns a Phase 3 pipeline over the built components.
func (c *Components) Pipeline(outputDir, replayCommand string) *pipeline.Phase3Pipeline {
	p := pipeline.NewPhase3Pipeline(c.Runner, c.Analyzer, outputDir).
		WithStores(c.Stores.WalkForward, c.Stores.Assessments).
		WithEvaluationStore(c.Stores.Evaluations).
		WithLogger(c.log).
		WithSufficiency(pipeline.SufficiencyConfig{
			MinSuccessfulPeriods:     c.Config.Sufficiency.MinSuccessfulPeriods,
			MinAnnualReturns:         c.Config.Sufficiency.MinAnnualReturns,
			MinEvaluationSuccessRate: c.Config.Sufficiency.MinEvaluationSuccessRate,
			AsConcerns:               c.Config.Sufficiency.AsConcerns,
		})
	if c.clock != nil {
		p = p.WithClock(c.clock)
	}
	if replayCommand != "" {
		p = p.WithReplayCommand(replayCommand)
	}
	return p
}

// Close releases store connections in reverse order of opening.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Components) backtest(useFixtures bool) (backtest.Generator, backtest.Runner, string) {
	bc := c.Config.Backtest
	switch {
	case useFixtures:
		engine := stub.New(pipeline.FixtureModel)
		return engine, engine, BackendFixtures
	case bc.UseStub:
		engine := stub.New(stub.DefaultModel)
		return engine, engine, BackendStub
	case bc.URL != "":
		opts := []backtest.ClientOption{
			backtest.WithTimeout(bc.RequestTimeout),
			backtest.WithMaxRetries(bc.MaxRetries),
			backtest.WithClientLogger(c.log),
		}
		if bc.RateLimit > 0 {
			opts = append(opts, backtest.WithRateLimit(bc.RateLimit, bc.RateBurst))
		}
		client := backtest.NewHTTPClient(bc.URL, opts...)
		return client, client, BackendRPC
	default:
		c.log.Warn("no backtest collaborator configured; every evaluation will fail")
		return nil, nil, BackendNone
	}
}

func (c *Components) openStores(ctx context.Context) error {
	sc := c.Config.Storage

	c.Stores.WalkForward = memory.NewWalkForwardStore()
	c.Stores.Assessments = memory.NewAssessmentStore()
	c.Stores.Evaluations = memory.NewEvaluationStore()

	if sc.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		if sc.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		c.Stores.WalkForward = pgstore.NewWalkForwardStore(pool)
		c.Stores.Assessments = pgstore.NewAssessmentStore(pool)
	}

	if sc.ClickHouseDSN != "" {
		var conn *chstore.Conn
		var err error
		if sc.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, sc.ClickHouseDSN)
		}
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		c.closers = append(c.closers, func() { _ = conn.Close() })
		c.Stores.Evaluations = chstore.NewEvaluationStore(conn)
	}

	if sc.RedisAddr != "" {
		cache, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
			TTL:      sc.CacheTTL,
		})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = cache.Close() })
		c.Stores.Cache = cache
	} else {
		c.Stores.Cache = memory.NewEvaluationCache(
			memory.WithMaxEntries(sc.CacheEntries),
			memory.WithTTL(sc.CacheTTL),
		)
	}
	return nil
}
