// Package main provides the long-running service:
// - HTTP API: submit Phase 3 runs, read stored runs and assessments
// - WebSocket: live walk-forward progress at /ws
// - Metrics: Prometheus at /metrics
// - Schedule (optional): periodic re-vetting of a strategy directory
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/api"
	"hypothesis-lab/internal/app"
	"hypothesis-lab/internal/config"
	"hypothesis-lab/internal/logging"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/pipeline"
	"hypothesis-lab/internal/progress"
	"hypothesis-lab/internal/walkforward"
)

func main() {
	// Parse flags (config values as defaults)
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	schedule := flag.String("schedule", "", "Cron schedule for re-vetting strategy files (overrides schedule.cron)")
	strategyDir := flag.String("strategy-dir", "", "Strategy directory for scheduled runs (overrides schedule.strategy_dir)")
	useFixtures := flag.Bool("use-fixtures", false, "Evaluate against the deterministic fixture model")
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
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *schedule != "" {
		cfg.Schedule.Cron = *schedule
	}
	if *strategyDir != "" {
		cfg.Schedule.StrategyDir = *strategyDir
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.Tracing {
		shutdown, err := observability.InitTracing("hypothesis-lab-server", os.Stderr)
		if err != nil {
			log.WithError(err).Fatal("init tracing")
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := progress.NewHub(log)
	defer hub.Close()

	components, err := app.Build(ctx, cfg, log, app.Options{
		UseFixtures: *useFixtures,
		Observers:   []walkforward.Observer{hub},
	})
	if err != nil {
		log.WithError(err).Fatal("build components")
	}
	defer components.Close()

	p := components.Pipeline(cfg.OutputDir, "")

	var scheduler *pipeline.Scheduler
	if cfg.Schedule.Cron != "" {
		scheduler = pipeline.NewScheduler(p, cfg.Schedule.StrategyDir, cfg.WalkForwardSettings(), log)
		if err := scheduler.Start(cfg.Schedule.Cron); err != nil {
			log.WithError(err).Fatal("start scheduler")
		}
	}

	apiServer := api.New(api.Options{
		Pipeline:         p,
		WalkForwardStore: components.Stores.WalkForward,
		AssessmentStore:  components.Stores.Assessments,
		EvaluationStore:  components.Stores.Evaluations,
		Hub:              hub,
		Scheduler:        scheduler,
		Defaults:         cfg.WalkForwardSettings(),
		MaxConcurrent:    cfg.Server.MaxConcurrent,
		RequestTimeout:   cfg.Server.ReadTimeout,
		Logger:           log,
	})

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     apiServer.Routes(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// Websocket writes manage their own deadlines.
		WriteTimeout: 0,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.Server.Addr,
			"backend":  components.Backend,
			"schedule": cfg.Schedule.Cron,
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("initiating graceful shutdown")
	case err := <-errCh:
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("scheduled run still in progress at shutdown")
		}
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("jobs still running at shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	log.Info("shutdown complete")
}
