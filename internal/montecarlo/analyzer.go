// Package montecarlo stress-tests annual returns by bootstrap resampling and
// reviews performance during named historical stress years.
package montecarlo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/metrics"
	"hypothesis-lab/internal/observability"
)

// ErrNoReturns is returned when there is nothing to resample.
var ErrNoReturns = errors.New("no annual returns to resample")

// Defaults for Config.
const (
	DefaultSimulations     = 10000
	DefaultYears           = 5
	DefaultBenchmarkReturn = 10.0 // percent
)

// cancelCheckEvery is how many simulations run between context checks.
const cancelCheckEvery = 1000

// Config configures the bootstrap.
type Config struct {
	Simulations     int     // number of simulated paths
	Years           int     // returns drawn per path
	BenchmarkReturn float64 // percent, for ProbBeatBenchmark
	Seed            int64   // 0 for time-based
}

// DefaultConfig returns the default bootstrap configuration.
func DefaultConfig() Config {
	return Config{
		Simulations:     DefaultSimulations,
		Years:           DefaultYears,
		BenchmarkReturn: DefaultBenchmarkReturn,
	}
}

// Analyzer runs bootstrap simulations. With a non-zero Seed every Bootstrap
// call draws the same sequence, so equal inputs give equal results.
type Analyzer struct {
	cfg Config
	log logrus.FieldLogger
}

// NewAnalyzer creates an analyzer. Non-positive sizes fall back to defaults.
func NewAnalyzer(cfg Config, log logrus.FieldLogger) *Analyzer {
	if cfg.Simulations <= 0 {
		cfg.Simulations = DefaultSimulations
	}
	if cfg.Years <= 0 {
		cfg.Years = DefaultYears
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{cfg: cfg, log: log}
}

func (a *Analyzer) newRand() *rand.Rand {
	seed := a.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Bootstrap resamples annual percentage returns with replacement. Each path
// compounds Years draws and is annualized to a CAGR in percent.
func (a *Analyzer) Bootstrap(ctx context.Context, annualReturns []float64) (*domain.MonteCarloResult, error) {
	if len(annualReturns) == 0 {
		return nil, ErrNoReturns
	}

	_, span := observability.Tracer().Start(ctx, "montecarlo.Bootstrap")
	defer span.End()

	n := a.cfg.Simulations
	cagrs := make([]float64, n)

	rng := a.newRand()
	for i := 0; i < n; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		compound := 1.0
		for y := 0; y < a.cfg.Years; y++ {
			r := annualReturns[rng.Intn(len(annualReturns))]
			compound *= 1 + r/100
		}
		cagrs[i] = annualize(compound, a.cfg.Years)
	}

	sorted := metrics.Sorted(cagrs)
	positive, beat := 0, 0
	for _, c := range cagrs {
		if c > 0 {
			positive++
		}
		if c > a.cfg.BenchmarkReturn {
			beat++
		}
	}

	res := &domain.MonteCarloResult{
		Simulations:       n,
		Years:             a.cfg.Years,
		SampleSize:        len(annualReturns),
		MeanCAGR:          metrics.Mean(cagrs),
		MedianCAGR:        metrics.Median(sorted),
		P5CAGR:            metrics.RankPercentile(sorted, 0.05),
		P95CAGR:           metrics.RankPercentile(sorted, 0.95),
		ProbPositive:      float64(positive) / float64(n),
		ProbBeatBenchmark: float64(beat) / float64(n),
		BenchmarkReturn:   a.cfg.BenchmarkReturn,
		WorstCAGR:         sorted[0],
		BestCAGR:          sorted[n-1],
	}

	observability.RecordMonteCarlo(n)
	a.log.WithFields(logrus.Fields{
		"simulations":   n,
		"sample_size":   len(annualReturns),
		"median_cagr":   res.MedianCAGR,
		"prob_positive": res.ProbPositive,
	}).Info("monte carlo complete")
	return res, nil
}

// annualize converts a compound growth factor over years into a CAGR percent.
// A wiped-out path (factor <= 0) is -100%.
func annualize(compound float64, years int) float64 {
	if compound <= 0 {
		return -100
	}
	return (math.Pow(compound, 1/float64(years)) - 1) * 100
}
