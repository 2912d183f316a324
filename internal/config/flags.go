package config

import "flag"

// Overrides holds command-line flags that override loaded configuration.
// Only flags set explicitly on the command line are applied.
type Overrides struct {
	fs *flag.FlagSet

	startYear      *int
	endYear        *int
	trainYears     *int
	testYears      *int
	policy         *string
	method         *string
	objective      *string
	maxEvaluations *int
	workers        *int
	seed           *int64
	simulations    *int
	mcYears        *int
	mcSeed         *int64
	benchmark      *float64
	backtestURL    *string
	useStub        *bool
	outputDir      *string
	logLevel       *string
	logFormat      *string
	tracing        *bool
}

// RegisterFlags adds the shared override flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	return &Overrides{
		fs:             fs,
		startYear:      fs.Int("start-year", 0, "First calendar year of the walk-forward range"),
		endYear:        fs.Int("end-year", 0, "Last calendar year of the walk-forward range"),
		trainYears:     fs.Int("train-years", 0, "Years in the first optimize window"),
		testYears:      fs.Int("test-years", 0, "Years in each test window"),
		policy:         fs.String("policy", "", "Window policy (expanding, rolling)"),
		method:         fs.String("method", "", "Search method (grid, random)"),
		objective:      fs.String("objective", "", "Objective metric (sharpe, cagr)"),
		maxEvaluations: fs.Int("max-evaluations", 0, "Maximum candidates evaluated per optimization"),
		workers:        fs.Int("workers", 0, "Concurrent evaluations per optimization"),
		seed:           fs.Int64("seed", 0, "Random search seed (0 for time-based)"),
		simulations:    fs.Int("simulations", 0, "Monte Carlo simulations"),
		mcYears:        fs.Int("mc-years", 0, "Monte Carlo projection horizon in years"),
		mcSeed:         fs.Int64("mc-seed", 0, "Monte Carlo seed (0 for time-based)"),
		benchmark:      fs.Float64("benchmark-return", 0, "Benchmark annual return in percent"),
		backtestURL:    fs.String("backtest-url", "", "JSON-RPC endpoint of the backtest service"),
		useStub:        fs.Bool("use-stub", false, "Use the in-process stub backtester"),
		outputDir:      fs.String("output-dir", "", "Output directory for generated files"),
		logLevel:       fs.String("log-level", "", "Log level"),
		logFormat:      fs.String("log-format", "", "Log format (text, json)"),
		tracing:        fs.Bool("tracing", false, "Export trace spans to stderr"),
	}
}

// Apply copies explicitly set flags into cfg and revalidates it.
func (o *Overrides) Apply(cfg *Config) error {
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start-year":
			cfg.WalkForward.StartYear = *o.startYear
		case "end-year":
			cfg.WalkForward.EndYear = *o.endYear
		case "train-years":
			cfg.WalkForward.InitialTrainYears = *o.trainYears
		case "test-years":
			cfg.WalkForward.TestYears = *o.testYears
		case "policy":
			cfg.WalkForward.Policy = *o.policy
		case "method":
			cfg.WalkForward.Method = *o.method
		case "objective":
			cfg.WalkForward.Objective = *o.objective
		case "max-evaluations":
			cfg.WalkForward.MaxEvaluations = *o.maxEvaluations
		case "workers":
			cfg.WalkForward.Workers = *o.workers
		case "seed":
			cfg.WalkForward.Seed = *o.seed
		case "simulations":
			cfg.MonteCarlo.Simulations = *o.simulations
		case "mc-years":
			cfg.MonteCarlo.Years = *o.mcYears
		case "mc-seed":
			cfg.MonteCarlo.Seed = *o.mcSeed
		case "benchmark-return":
			cfg.MonteCarlo.BenchmarkReturn = *o.benchmark
		case "backtest-url":
			cfg.Backtest.URL = *o.backtestURL
		case "use-stub":
			cfg.Backtest.UseStub = *o.useStub
		case "output-dir":
			cfg.OutputDir = *o.outputDir
		case "log-level":
			cfg.Logging.Level = *o.logLevel
		case "log-format":
			cfg.Logging.Format = *o.logFormat
		case "tracing":
			cfg.Tracing = *o.tracing
		}
	})
	return cfg.Validate()
}
