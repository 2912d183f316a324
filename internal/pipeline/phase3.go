// Package pipeline wires walk-forward, Monte Carlo, stress review and risk
// assessment into one Phase 3 run and writes its reports.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"hypothesis-lab/internal/decision"
	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/metrics"
	"hypothesis-lab/internal/montecarlo"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/reporting"
	"hypothesis-lab/internal/storage"
)

// GeneratorVersion is recorded in report reproducibility metadata.
const GeneratorVersion = "1.0.0"

// Output file names written under <outputDir>/<strategy id>.
const (
	FileWalkForwardJSON = "walk_forward.json"
	FilePhase3JSON      = "phase3.json"
	FileReportMarkdown  = "REPORT_PHASE3.md"
	FileReportText      = "report.txt"
	FilePeriodsCSV      = "periods.csv"
	FileEvaluationsCSV  = "evaluations.csv"
	FileWorkbook        = "report.xlsx"
)

// WalkForwardRunner is the subset of walkforward.Runner the pipeline uses.
type WalkForwardRunner interface {
	Run(ctx context.Context, doc domain.StrategyDocument, cfg domain.WalkForwardConfig) *domain.WalkForwardResult
}

// Outcome is everything produced by one Phase 3 run.
type Outcome struct {
	WalkForward *domain.WalkForwardResult
	Result      *domain.Phase3Result
	Assessment  *decision.Result
	Sufficiency *SufficiencyResult
	Report      *reporting.Report
	OutputDir   string // empty when nothing was written
}

// Phase3Pipeline orchestrates walk-forward, robustness analysis and reporting.
type Phase3Pipeline struct {
	runner        WalkForwardRunner
	analyzer      *montecarlo.Analyzer
	assessor      *decision.Assessor
	sufficiency   *SufficiencyChecker
	stressPeriods []montecarlo.StressPeriod

	walkForwardStore storage.WalkForwardStore
	assessmentStore  storage.AssessmentStore
	evaluationStore  storage.EvaluationStore // for evaluations.csv

	outputDir     string
	replayCommand string
	clock         func() time.Time
	log           logrus.FieldLogger
}

// NewPhase3Pipeline creates a new pipeline. An empty outputDir disables file output.
func NewPhase3Pipeline(runner WalkForwardRunner, analyzer *montecarlo.Analyzer, outputDir string) *Phase3Pipeline {
	log := logrus.StandardLogger()
	return &Phase3Pipeline{
		runner:        runner,
		analyzer:      analyzer,
		assessor:      decision.NewAssessor(log),
		sufficiency:   NewSufficiencyChecker(DefaultSufficiencyConfig()),
		stressPeriods: montecarlo.DefaultStressPeriods(),
		outputDir:     outputDir,
		clock:         func() time.Time { return time.Now().UTC() },
		log:           log,
	}
}

// WithStores persists walk-forward results and assessments.
func (p *Phase3Pipeline) WithStores(wf storage.WalkForwardStore, assessments storage.AssessmentStore) *Phase3Pipeline {
	p.walkForwardStore = wf
	p.assessmentStore = assessments
	return p
}

// WithEvaluationStore enables evaluations.csv export from the store the runner writes to.
func (p *Phase3Pipeline) WithEvaluationStore(s storage.EvaluationStore) *Phase3Pipeline {
	p.evaluationStore = s
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Phase3Pipeline) WithClock(clock func() time.Time) *Phase3Pipeline {
	p.clock = clock
	return p
}

// WithLogger sets the logger.
func (p *Phase3Pipeline) WithLogger(log logrus.FieldLogger) *Phase3Pipeline {
	p.log = log
	p.assessor = decision.NewAssessor(log)
	return p
}

// WithStressPeriods replaces the default stress calendar.
func (p *Phase3Pipeline) WithStressPeriods(periods []montecarlo.StressPeriod) *Phase3Pipeline {
	p.stressPeriods = periods
	return p
}

// WithSufficiency replaces the default sufficiency thresholds.
func (p *Phase3Pipeline) WithSufficiency(cfg SufficiencyConfig) *Phase3Pipeline {
	p.sufficiency = NewSufficiencyChecker(cfg)
	return p
}

// WithReplayCommand records the command line that reproduces the run.
func (p *Phase3Pipeline) WithReplayCommand(cmd string) *Phase3Pipeline {
	p.replayCommand = cmd
	return p
}

// Run executes the full pipeline for one strategy document:
//  1. walk-forward run, persisted when a store is configured
//  2. data sufficiency checks
//  3. Monte Carlo bootstrap of non-overlapping annual returns
//  4. stress period review
//  5. risk assessment, persisted when a store is configured
//  6. reports written to <outputDir>/<strategy id>
//
// A failed walk-forward still produces an assessment. Only storage and output
// failures are returned as errors.
func (p *Phase3Pipeline) Run(ctx context.Context, doc domain.StrategyDocument, cfg domain.WalkForwardConfig) (*Outcome, error) {
	started := p.clock()
	ctx, span := observability.Tracer().Start(ctx, "pipeline.Phase3")
	defer span.End()
	span.SetAttributes(attribute.String("strategy_id", doc.ID))

	status := "failed"
	defer func() {
		observability.RecordPipelineRun("phase3", status, p.clock().Sub(started).Seconds())
	}()

	log := p.log.WithField("strategy_id", doc.ID)

	wf := p.runner.Run(ctx, doc, cfg)
	log = log.WithField("run_id", wf.RunID)

	// A cancelled walk-forward still gets its analysis, storage and reports.
	detached := context.WithoutCancel(ctx)

	if p.walkForwardStore != nil {
		if err := p.walkForwardStore.Insert(detached, wf); err != nil {
			return nil, fmt.Errorf("store walk-forward run %s: %w", wf.RunID, err)
		}
	}

	suff := p.sufficiency.Check(wf)
	warnings := suff.Warnings()
	if !suff.AllPass {
		log.WithField("warnings", warnings).Warn("data sufficiency checks failed")
	}
	var extraConcerns []string
	if p.sufficiency.AsConcerns() {
		extraConcerns = warnings
	}

	var mc *domain.MonteCarloResult
	if returns := metrics.AnnualReturns(wf.Periods); len(returns) > 0 {
		res, err := p.analyzer.Bootstrap(detached, returns)
		if err != nil {
			log.WithError(err).Warn("monte carlo skipped")
		} else {
			mc = res
		}
	}

	stress := montecarlo.StressReview(wf.Periods, p.stressPeriods)

	assessment, err := p.assessor.Assess(*decision.BuildInput(wf, mc, stress, extraConcerns))
	if err != nil {
		return nil, fmt.Errorf("assess %s: %w", doc.ID, err)
	}

	result := &domain.Phase3Result{
		RunID:       wf.RunID,
		StrategyID:  doc.ID,
		WalkForward: reporting.SummarizeWalkForward(wf),
		Periods:     wf.Periods,
		MonteCarlo:  mc,
		StressTests: stress,
		Assessment:  assessment.Assessment,
		Warnings:    warnings,
		Timestamp:   started,
	}
	if p.assessmentStore != nil {
		if err := p.assessmentStore.Insert(detached, result); err != nil {
			return nil, fmt.Errorf("store assessment %s: %w", wf.RunID, err)
		}
	}

	out := &Outcome{
		WalkForward: wf,
		Result:      result,
		Assessment:  assessment,
		Sufficiency: suff,
		Report:      p.buildReport(doc, cfg, wf, result, assessment, suff),
	}

	if p.outputDir != "" {
		dir := filepath.Join(p.outputDir, doc.ID)
		if err := p.writeOutputs(detached, dir, out); err != nil {
			return nil, err
		}
		out.OutputDir = dir
	}

	status = "success"
	log.WithFields(logrus.Fields{
		"score":      result.Assessment.RiskAdjustedScore,
		"confidence": result.Assessment.Confidence,
		"concerns":   len(result.Assessment.Concerns),
	}).Info("phase 3 complete")
	return out, nil
}

func (p *Phase3Pipeline) buildReport(doc domain.StrategyDocument, cfg domain.WalkForwardConfig, wf *domain.WalkForwardResult, result *domain.Phase3Result, assessment *decision.Result, suff *SufficiencyResult) *reporting.Report {
	now := p.clock()
	return &reporting.Report{
		GeneratedAt: now,
		WalkForward: wf,
		Result:      result,
		Assessment:  assessment,
		DataQuality: convertToDataQuality(suff),
		Reproducibility: reporting.ReproducibilityMetadata{
			ReportTimestamp:  now,
			GeneratorVersion: GeneratorVersion,
			ConfigHash:       ComputeConfigHash(doc, cfg, p.analyzer.Config()),
			Seed:             p.analyzer.Config().Seed,
			ReplayCommand:    p.replayCommand,
		},
	}
}

// writeOutputs writes every report artifact into dir.
func (p *Phase3Pipeline) writeOutputs(ctx context.Context, dir string, out *Outcome) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	wfJSON, err := json.MarshalIndent(reporting.NewWalkForwardDocument(out.WalkForward), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal walk-forward: %w", err)
	}
	p3JSON, err := json.MarshalIndent(reporting.NewPhase3Document(out.Result), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal phase 3: %w", err)
	}

	files := map[string]string{
		FileWalkForwardJSON: string(wfJSON) + "\n",
		FilePhase3JSON:      string(p3JSON) + "\n",
		FileReportMarkdown:  reporting.RenderMarkdown(out.Report),
		FileReportText:      reporting.RenderPhase3Text(out.WalkForward, out.Result),
		FilePeriodsCSV:      reporting.RenderPeriodsCSV(out.WalkForward.Periods),
	}

	if p.evaluationStore != nil {
		records, err := p.evaluationStore.GetByRunID(ctx, out.WalkForward.RunID)
		if err != nil {
			return fmt.Errorf("load evaluations %s: %w", out.WalkForward.RunID, err)
		}
		files[FileEvaluationsCSV] = reporting.RenderEvaluationsCSV(records)
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err := reporting.WriteWorkbook(filepath.Join(dir, FileWorkbook), out.Report); err != nil {
		return fmt.Errorf("write %s: %w", FileWorkbook, err)
	}
	return nil
}

// ComputeConfigHash returns a short SHA256 over everything that determines a run.
func ComputeConfigHash(doc domain.StrategyDocument, cfg domain.WalkForwardConfig, mc montecarlo.Config) string {
	h := sha256.New()
	docJSON, _ := json.Marshal(doc)
	h.Write([]byte("DOCUMENT\n"))
	h.Write(docJSON)
	fmt.Fprintf(h, "\nWALKFORWARD\n%d|%d|%d|%d|%s|%d|%s|%s",
		cfg.StartYear, cfg.EndYear, cfg.InitialTrainYears, cfg.TestYears,
		cfg.Policy, cfg.MaxEvaluations, cfg.Method, cfg.Objective)
	fmt.Fprintf(h, "\nMONTECARLO\n%d|%d|%.6f|%d", mc.Simulations, mc.Years, mc.BenchmarkReturn, mc.Seed)
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// convertToDataQuality converts SufficiencyResult to reporting.DataQualitySection.
func convertToDataQuality(result *SufficiencyResult) reporting.DataQualitySection {
	checks := make([]reporting.SufficiencyCheckRow, len(result.Checks))
	for i, c := range result.Checks {
		checks[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return reporting.DataQualitySection{
		SufficiencyChecks: checks,
		AllChecksPassed:   result.AllPass,
	}
}
