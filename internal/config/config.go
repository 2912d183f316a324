// Package config loads runtime configuration from .env, the environment and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. LAB_BACKTEST_URL.
const EnvPrefix = "LAB"

// Config represents the complete application configuration.
type Config struct {
	Logging     logging.Config    `yaml:"logging" envconfig:"LOG"`
	Backtest    BacktestConfig    `yaml:"backtest" envconfig:"BACKTEST"`
	WalkForward WalkForwardConfig `yaml:"walk_forward" envconfig:"WF"`
	MonteCarlo  MonteCarloConfig  `yaml:"monte_carlo" envconfig:"MC"`
	Sufficiency SufficiencyConfig `yaml:"sufficiency" envconfig:"SUFFICIENCY"`
	Storage     StorageConfig     `yaml:"storage" envconfig:"STORAGE"`
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Schedule    ScheduleConfig    `yaml:"schedule" envconfig:"SCHEDULE"`
	OutputDir   string            `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output"`
	Tracing     bool              `yaml:"tracing" envconfig:"TRACING" default:"false"`
}

// BacktestConfig configures the JSON-RPC backtest collaborator.
type BacktestConfig struct {
	URL               string        `yaml:"url" envconfig:"URL" validate:"omitempty,url"`
	RequestTimeout    time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"5m"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout" envconfig:"EVALUATION_TIMEOUT" default:"10m"`
	MaxRetries        int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"3" validate:"gte=0"`
	RateLimit         float64       `yaml:"rate_limit" envconfig:"RATE_LIMIT" default:"0" validate:"gte=0"`
	RateBurst         int           `yaml:"rate_burst" envconfig:"RATE_BURST" default:"1" validate:"gte=1"`
	UseStub           bool          `yaml:"use_stub" envconfig:"USE_STUB" default:"false"`
}

// WalkForwardConfig holds walk-forward defaults.
type WalkForwardConfig struct {
	StartYear         int    `yaml:"start_year" envconfig:"START_YEAR" default:"2010" validate:"gte=1900"`
	EndYear           int    `yaml:"end_year" envconfig:"END_YEAR" default:"2023" validate:"gtefield=StartYear"`
	InitialTrainYears int    `yaml:"initial_train_years" envconfig:"TRAIN_YEARS" default:"3" validate:"gte=1"`
	TestYears         int    `yaml:"test_years" envconfig:"TEST_YEARS" default:"1" validate:"gte=1"`
	Policy            string `yaml:"policy" envconfig:"POLICY" default:"expanding" validate:"oneof=expanding rolling"`
	MaxEvaluations    int    `yaml:"max_evaluations" envconfig:"MAX_EVALUATIONS" default:"50" validate:"gte=1"`
	Method            string `yaml:"method" envconfig:"METHOD" default:"grid" validate:"oneof=grid random"`
	Objective         string `yaml:"objective" envconfig:"OBJECTIVE" default:"sharpe" validate:"oneof=sharpe cagr"`
	Workers           int    `yaml:"workers" envconfig:"WORKERS" default:"1" validate:"gte=1"`
	Seed              int64  `yaml:"seed" envconfig:"SEED" default:"0"`
}

// MonteCarloConfig holds bootstrap settings.
type MonteCarloConfig struct {
	Simulations     int     `yaml:"simulations" envconfig:"SIMULATIONS" default:"10000" validate:"gte=1"`
	Years           int     `yaml:"years" envconfig:"YEARS" default:"5" validate:"gte=1"`
	BenchmarkReturn float64 `yaml:"benchmark_return" envconfig:"BENCHMARK_RETURN" default:"10"`
	Seed            int64   `yaml:"seed" envconfig:"SEED" default:"0"`
}

// SufficiencyConfig holds the data sufficiency thresholds.
type SufficiencyConfig struct {
	MinSuccessfulPeriods     int     `yaml:"min_successful_periods" envconfig:"MIN_SUCCESSFUL_PERIODS" default:"3" validate:"gte=1"`
	MinAnnualReturns         int     `yaml:"min_annual_returns" envconfig:"MIN_ANNUAL_RETURNS" default:"2" validate:"gte=1"`
	MinEvaluationSuccessRate float64 `yaml:"min_evaluation_success_rate" envconfig:"MIN_EVALUATION_SUCCESS_RATE" default:"0.5" validate:"gte=0,lte=1"`
	AsConcerns               bool    `yaml:"as_concerns" envconfig:"AS_CONCERNS" default:"false"`
}

// StorageConfig selects result stores. Empty DSNs fall back to memory stores.
type StorageConfig struct {
	PostgresDSN   string        `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	ClickHouseDSN string        `yaml:"clickhouse_dsn" envconfig:"CLICKHOUSE_DSN"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"168h"`
	CacheEntries  int           `yaml:"cache_max_entries" envconfig:"CACHE_MAX_ENTRIES" default:"10000" validate:"gte=0"`
	Migrate       bool          `yaml:"migrate" envconfig:"MIGRATE" default:"true"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxConcurrent   int           `yaml:"max_concurrent_runs" envconfig:"MAX_CONCURRENT_RUNS" default:"2" validate:"gte=1"`
}

// ScheduleConfig controls periodic re-vetting of strategy files.
type ScheduleConfig struct {
	Cron        string `yaml:"cron" envconfig:"CRON"`
	StrategyDir string `yaml:"strategy_dir" envconfig:"STRATEGY_DIR" default:"strategies"`
}

var validate = validator.New()

// Load reads .env (when present), then the LAB_* environment with defaults,
// then overlays the YAML file at path when path is not empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// WalkForwardSettings converts the walk-forward section to the domain config.
func (c *Config) WalkForwardSettings() domain.WalkForwardConfig {
	wf := c.WalkForward
	return domain.WalkForwardConfig{
		StartYear:         wf.StartYear,
		EndYear:           wf.EndYear,
		InitialTrainYears: wf.InitialTrainYears,
		TestYears:         wf.TestYears,
		Policy:            domain.WindowPolicy(wf.Policy),
		MaxEvaluations:    wf.MaxEvaluations,
		Method:            domain.SearchMethod(wf.Method),
		Objective:         domain.ObjectiveMetric(wf.Objective),
	}
}
