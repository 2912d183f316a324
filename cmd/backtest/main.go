// Package main serves the stub backtest engine over JSON-RPC.
// The pipeline reaches it with --backtest-url http://<addr>/rpc.
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
	"time"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/backtest"
	"hypothesis-lab/internal/backtest/stub"
	"hypothesis-lab/internal/config"
	"hypothesis-lab/internal/logging"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/pipeline"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", ":9090", "HTTP listen address")
	model := flag.String("model", "default", "Stub model: default, fixtures")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	var engine *stub.Backtester
	switch *model {
	case "default":
		engine = stub.New(stub.DefaultModel)
	case "fixtures":
		engine = stub.New(pipeline.FixtureModel)
	default:
		log.Fatalf("invalid model %q: must be default or fixtures", *model)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", backtest.NewServer(engine, engine, log))
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": *addr, "model": *model}).Info("backtest service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.WithError(err).Fatal("http server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	log.WithFields(logrus.Fields{
		"generate_calls": engine.GenerateCalls(),
		"run_calls":      engine.RunCalls(),
	}).Info("shutdown complete")
}
