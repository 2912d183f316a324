// Package main provides the Phase 3 pipeline entry point.
// Executes: walk-forward → Monte Carlo → stress review → assessment → reports
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/app"
	"hypothesis-lab/internal/config"
	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/logging"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/pipeline"
	"hypothesis-lab/internal/reporting"
	"hypothesis-lab/internal/strategy"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	strategyPath := flag.String("strategy", "", "Path to a strategy document (YAML or JSON)")
	useFixtures := flag.Bool("use-fixtures", false, "Run the fixture strategy against the deterministic fixture model")
	timestamp := flag.String("timestamp", "", "Fixed run timestamp (RFC3339) for reproducible output")
	quiet := flag.Bool("quiet", false, "Do not print the text report")
	overrides := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := overrides.Apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying flags: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	if *strategyPath == "" && !*useFixtures {
		fmt.Fprintln(os.Stderr, "Error: --strategy is required")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
		os.Exit(1)
	}

	var doc domain.StrategyDocument
	if *useFixtures {
		doc = pipeline.FixtureStrategy()
	} else {
		doc, err = strategy.LoadFile(*strategyPath)
		if err != nil {
			log.WithError(err).Fatal("load strategy")
		}
	}

	var clock func() time.Time
	if *timestamp != "" {
		ts, err := time.Parse(time.RFC3339, *timestamp)
		if err != nil {
			log.WithError(err).Fatal("parse --timestamp")
		}
		clock = func() time.Time { return ts.UTC() }
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Warn("cancelling pipeline; completed periods are kept")
		cancel()
	}()

	if cfg.Tracing {
		shutdown, err := observability.InitTracing("hypothesis-lab-pipeline", os.Stderr)
		if err != nil {
			log.WithError(err).Fatal("init tracing")
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	components, err := app.Build(ctx, cfg, log, app.Options{
		UseFixtures: *useFixtures,
		Clock:       clock,
	})
	if err != nil {
		log.WithError(err).Fatal("build components")
	}
	defer components.Close()

	p := components.Pipeline(cfg.OutputDir, replayCommand(os.Args))

	out, err := p.Run(ctx, doc, cfg.WalkForwardSettings())
	if err != nil {
		log.WithError(err).Fatal("pipeline failed")
	}

	if !*quiet {
		fmt.Print(reporting.RenderPhase3Text(out.WalkForward, out.Result))
	}

	log.WithFields(logrus.Fields{
		"run_id":         out.Result.RunID,
		"score":          out.Result.Assessment.RiskAdjustedScore,
		"recommendation": out.Result.Assessment.Recommendation,
	}).Info("phase 3 finished")

	if out.OutputDir != "" {
		fmt.Println("Phase 3 report generated successfully:")
		for _, name := range []string{
			pipeline.FileReportMarkdown,
			pipeline.FileReportText,
			pipeline.FilePhase3JSON,
			pipeline.FileWalkForwardJSON,
			pipeline.FilePeriodsCSV,
			pipeline.FileWorkbook,
		} {
			fmt.Printf("  - %s/%s\n", out.OutputDir, name)
		}
	}
}

// replayCommand reconstructs the invocation for the report's reproducibility section.
func replayCommand(args []string) string {
	return "go run ./cmd/pipeline " + strings.Join(args[1:], " ")
}
