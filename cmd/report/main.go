// Package main re-renders a stored or serialized Phase 3 run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/app"
	"hypothesis-lab/internal/config"
	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/logging"
	"hypothesis-lab/internal/pipeline"
	"hypothesis-lab/internal/reporting"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	dir := flag.String("dir", "", "Directory holding walk_forward.json and phase3.json")
	runID := flag.String("run-id", "", "Run ID to load from the configured stores")
	format := flag.String("format", "text", "Output format: text, markdown, csv, xlsx")
	out := flag.String("out", "", "Output file (stdout when empty; required for xlsx)")
	flag.Parse()

	if (*dir == "") == (*runID == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --dir or --run-id is required")
		os.Exit(1)
	}
	if *format == "xlsx" && *out == "" {
		fmt.Fprintln(os.Stderr, "Error: --out is required for xlsx output")
		os.Exit(1)
	}

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

	ctx := context.Background()

	var (
		wf     *domain.WalkForwardResult
		result *domain.Phase3Result
	)
	if *dir != "" {
		wf, result, err = loadDir(*dir)
	} else {
		wf, result, err = loadStored(ctx, cfg, log, *runID)
	}
	if err != nil {
		log.WithError(err).Fatal("load run")
	}

	report := &reporting.Report{
		GeneratedAt: time.Now().UTC(),
		WalkForward: wf,
		Result:      result,
		Reproducibility: reporting.ReproducibilityMetadata{
			ReportTimestamp:  result.Timestamp,
			GeneratorVersion: pipeline.GeneratorVersion,
		},
	}

	if *format == "xlsx" {
		if err := reporting.WriteWorkbook(*out, report); err != nil {
			log.WithError(err).Fatal("write workbook")
		}
		fmt.Printf("Workbook written to %s\n", *out)
		return
	}

	var content string
	switch *format {
	case "text":
		content = reporting.RenderPhase3Text(wf, result)
	case "markdown":
		content = reporting.RenderMarkdown(report)
	case "csv":
		content = reporting.RenderPeriodsCSV(wf.Periods)
	default:
		log.Fatalf("invalid format %q: must be text, markdown, csv or xlsx", *format)
	}

	if *out == "" {
		fmt.Print(content)
		return
	}
	if err := os.WriteFile(*out, []byte(content), 0644); err != nil {
		log.WithError(err).Fatal("write report")
	}
	fmt.Printf("Report written to %s\n", *out)
}

// loadDir reads the JSON documents written by the pipeline.
func loadDir(dir string) (*domain.WalkForwardResult, *domain.Phase3Result, error) {
	var wfDoc reporting.WalkForwardDocument
	if err := readJSON(filepath.Join(dir, pipeline.FileWalkForwardJSON), &wfDoc); err != nil {
		return nil, nil, err
	}
	var p3Doc reporting.Phase3Document
	if err := readJSON(filepath.Join(dir, pipeline.FilePhase3JSON), &p3Doc); err != nil {
		return nil, nil, err
	}

	wf, err := wfDoc.Result()
	if err != nil {
		return nil, nil, fmt.Errorf("decode walk-forward: %w", err)
	}
	result, err := p3Doc.Result()
	if err != nil {
		return nil, nil, fmt.Errorf("decode phase 3: %w", err)
	}
	return wf, result, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadStored fetches a run and its assessment from the configured stores.
func loadStored(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, runID string) (*domain.WalkForwardResult, *domain.Phase3Result, error) {
	if cfg.Storage.PostgresDSN == "" {
		return nil, nil, errors.New("--run-id needs LAB_STORAGE_POSTGRES_DSN or storage.postgres_dsn")
	}

	components, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		return nil, nil, err
	}
	defer components.Close()

	wf, err := components.Stores.WalkForward.GetByRunID(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("load walk-forward %s: %w", runID, err)
	}
	result, err := components.Stores.Assessments.GetByRunID(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("load assessment %s: %w", runID, err)
	}
	return wf, result, nil
}
