// Package main optimizes a strategy over a single date range.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/app"
	"hypothesis-lab/internal/config"
	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/idhash"
	"hypothesis-lab/internal/logging"
	"hypothesis-lab/internal/optimizer"
	"hypothesis-lab/internal/pipeline"
	"hypothesis-lab/internal/reporting"
	"hypothesis-lab/internal/storage"
	"hypothesis-lab/internal/strategy"
	"hypothesis-lab/internal/walkforward"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	strategyPath := flag.String("strategy", "", "Path to a strategy document (YAML or JSON)")
	useFixtures := flag.Bool("use-fixtures", false, "Optimize the fixture strategy against the deterministic fixture model")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	persist := flag.Bool("persist", false, "Persist evaluations to the evaluation store")
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
	} else if doc, err = strategy.LoadFile(*strategyPath); err != nil {
		log.WithError(err).Fatal("load strategy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	components, err := app.Build(ctx, cfg, log, app.Options{UseFixtures: *useFixtures})
	if err != nil {
		log.WithError(err).Fatal("build components")
	}
	defer components.Close()

	wf := cfg.WalkForwardSettings()
	rng := domain.YearRange(wf.StartYear, wf.EndYear)
	result := components.Optimizer.Optimize(ctx, optimizer.Request{
		Document:       doc,
		Range:          rng,
		MaxEvaluations: wf.MaxEvaluations,
		Method:         wf.Method,
		Objective:      wf.Objective,
	})

	if *persist {
		runID := idhash.ComputeRunID(doc.ID, wf, time.Now().UTC())
		records := make([]*storage.EvaluationRecord, len(result.Evaluations))
		for i, e := range result.Evaluations {
			records[i] = &storage.EvaluationRecord{
				RunID:      runID,
				StrategyID: doc.ID,
				Seq:        i,
				Phase:      walkforward.PhaseOptimize,
				RangeStart: rng.Start,
				RangeEnd:   rng.End,
				Evaluation: e,
			}
		}
		if err := components.Stores.Evaluations.InsertBulk(ctx, records); err != nil {
			log.WithError(err).Error("persist evaluations")
		} else {
			log.WithFields(logrus.Fields{"run_id": runID, "records": len(records)}).Info("evaluations persisted")
		}
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reporting.NewOptimizationDocument(result)); err != nil {
			log.WithError(err).Fatal("encode result")
		}
	} else {
		fmt.Print(reporting.RenderOptimizationText(result))
	}

	if !result.Success {
		os.Exit(2)
	}
}
