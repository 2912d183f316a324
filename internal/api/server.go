// Package api exposes Phase 3 runs, stored results and live progress over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/observability"
	"hypothesis-lab/internal/pipeline"
	"hypothesis-lab/internal/progress"
	"hypothesis-lab/internal/reporting"
	"hypothesis-lab/internal/storage"
	"hypothesis-lab/internal/strategy"
)

var validate = validator.New()

// Options for creating Server.
type Options struct {
	// Required
	Pipeline         pipeline.Runner
	WalkForwardStore storage.WalkForwardStore
	AssessmentStore  storage.AssessmentStore

	// Optional
	EvaluationStore storage.EvaluationStore
	Hub             *progress.Hub
	Scheduler       *pipeline.Scheduler
	Defaults        domain.WalkForwardConfig
	MaxConcurrent   int           // concurrent pipeline runs, default 1
	RequestTimeout  time.Duration // read endpoints, default 30s
	Metrics         http.Handler  // default observability.Handler()
	Logger          logrus.FieldLogger
	Clock           func() time.Time
}

// Server serves the HTTP API. Submitted runs execute in the background.
type Server struct {
	opts Options
	log  logrus.FieldLogger
	jobs *jobRegistry
	sem  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Handler()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Defaults == (domain.WalkForwardConfig{}) {
		opts.Defaults = domain.DefaultWalkForwardConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		log:    opts.Logger.WithField("component", "api"),
		jobs:   newJobRegistry(opts.Clock),
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", s.opts.Metrics)
	if s.opts.Hub != nil {
		r.Handle("/ws", s.opts.Hub)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/runs", s.submitRun)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))

			r.Get("/health", s.health)
			r.Get("/schedule", s.schedule)

			r.Get("/jobs", s.listJobs)
			r.Get("/jobs/{jobID}", s.getJob)

			r.Get("/runs/{runID}", s.getRun)
			r.Get("/runs/{runID}/assessment", s.getAssessment)
			r.Get("/runs/{runID}/evaluations", s.getEvaluations)

			r.Get("/strategies/{strategyID}/runs", s.listRuns)
			r.Get("/strategies/{strategyID}/assessments", s.listAssessments)
		})
	})
	return r
}

// Shutdown cancels running jobs and waits for them until ctx is done.
// Cancelled walk-forward runs still persist the periods they completed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for jobs: %w", ctx.Err())
	}
}

// RunConfig overrides walk-forward defaults for one submitted run.
// Zero fields keep the server default.
type RunConfig struct {
	StartYear         int    `json:"start_year" validate:"omitempty,gte=1900"`
	EndYear           int    `json:"end_year" validate:"omitempty,gte=1900"`
	InitialTrainYears int    `json:"initial_train_years" validate:"gte=0"`
	TestYears         int    `json:"test_years" validate:"gte=0"`
	Policy            string `json:"policy" validate:"omitempty,oneof=expanding rolling"`
	MaxEvaluations    int    `json:"max_evaluations" validate:"gte=0"`
	Method            string `json:"method" validate:"omitempty,oneof=grid random"`
	Objective         string `json:"objective" validate:"omitempty,oneof=sharpe cagr"`
}

func (c *RunConfig) apply(base domain.WalkForwardConfig) domain.WalkForwardConfig {
	if c == nil {
		return base
	}
	if c.StartYear != 0 {
		base.StartYear = c.StartYear
	}
	if c.EndYear != 0 {
		base.EndYear = c.EndYear
	}
	if c.InitialTrainYears != 0 {
		base.InitialTrainYears = c.InitialTrainYears
	}
	if c.TestYears != 0 {
		base.TestYears = c.TestYears
	}
	if c.Policy != "" {
		base.Policy = domain.WindowPolicy(c.Policy)
	}
	if c.MaxEvaluations != 0 {
		base.MaxEvaluations = c.MaxEvaluations
	}
	if c.Method != "" {
		base.Method = domain.SearchMethod(c.Method)
	}
	if c.Objective != "" {
		base.Objective = domain.ObjectiveMetric(c.Objective)
	}
	return base
}

// RunRequest is the body of POST /api/runs.
type RunRequest struct {
	Strategy json.RawMessage `json:"strategy"`
	Config   *RunConfig      `json:"config,omitempty"`
}

// Bind implements render.Binder.
func (req *RunRequest) Bind(r *http.Request) error {
	if len(req.Strategy) == 0 || string(req.Strategy) == "null" {
		return errors.New("strategy is required")
	}
	if req.Config != nil {
		if err := validate.Struct(req.Config); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	doc, err := strategy.ParseJSON(req.Strategy)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	cfg := req.Config.apply(s.opts.Defaults)
	if cfg.EndYear < cfg.StartYear {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("end_year %d precedes start_year %d", cfg.EndYear, cfg.StartYear)))
		return
	}

	job := s.jobs.create(doc.ID)
	s.wg.Add(1)
	go s.execute(job.ID, doc, cfg)

	s.log.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"strategy_id": doc.ID,
		"request_id":  middleware.GetReqID(r.Context()),
	}).Info("run submitted")

	w.Header().Set("Location", "/api/jobs/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

func (s *Server) execute(jobID string, doc domain.StrategyDocument, cfg domain.WalkForwardConfig) {
	defer s.wg.Done()
	log := s.log.WithFields(logrus.Fields{"job_id": jobID, "strategy_id": doc.ID})

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		s.jobs.update(jobID, func(j *Job) {
			j.Status = JobCancelled
			j.Error = "server shutting down"
			j.FinishedAt = s.jobs.now()
		})
		return
	}
	defer s.sem.Release(1)

	s.jobs.update(jobID, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = s.jobs.now()
	})

	out, err := s.opts.Pipeline.Run(s.ctx, doc, cfg)
	if err != nil {
		log.WithError(err).Error("run failed")
		s.jobs.update(jobID, func(j *Job) {
			j.Status = JobFailed
			j.Error = err.Error()
			j.FinishedAt = s.jobs.now()
		})
		return
	}

	a := out.Result.Assessment
	s.jobs.update(jobID, func(j *Job) {
		j.Status = JobCompleted
		if out.WalkForward.Cancelled {
			j.Status = JobCancelled
		}
		j.RunID = out.Result.RunID
		j.Score = &a.RiskAdjustedScore
		j.Confidence = string(a.Confidence)
		j.Recommendation = a.Recommendation
		j.OutputDir = out.OutputDir
		j.Error = out.WalkForward.Error
		j.FinishedAt = s.jobs.now()
	})
	log.WithFields(logrus.Fields{
		"run_id": out.Result.RunID,
		"score":  a.RiskAdjustedScore,
	}).Info("run finished")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"time":   s.opts.Clock(),
	}
	if s.opts.Hub != nil {
		resp["ws_clients"] = s.opts.Hub.ClientCount()
	}
	render.JSON(w, r, resp)
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	if s.opts.Scheduler == nil {
		render.Render(w, r, ErrUnavailable("schedule"))
		return
	}
	render.JSON(w, r, s.opts.Scheduler.Task())
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.jobs.list())
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.get(chi.URLParam(r, "jobID"))
	if !ok {
		render.Render(w, r, ErrNotFound("job"))
		return
	}
	render.JSON(w, r, job)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.opts.WalkForwardStore.GetByRunID(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		render.Render(w, r, storeError(err, "run"))
		return
	}
	render.JSON(w, r, reporting.NewWalkForwardDocument(run))
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.AssessmentStore.GetByRunID(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		render.Render(w, r, storeError(err, "assessment"))
		return
	}
	render.JSON(w, r, reporting.NewPhase3Document(res))
}

// EvaluationResponse is one stored evaluation with its position in the run.
type EvaluationResponse struct {
	PeriodIndex int    `json:"period_index"`
	Phase       string `json:"phase"`
	Seq         int    `json:"seq"`
	RangeStart  string `json:"range_start"`
	RangeEnd    string `json:"range_end"`
	reporting.EvaluationRow
}

func (s *Server) getEvaluations(w http.ResponseWriter, r *http.Request) {
	if s.opts.EvaluationStore == nil {
		render.Render(w, r, ErrUnavailable("evaluation store"))
		return
	}
	records, err := s.opts.EvaluationStore.GetByRunID(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		render.Render(w, r, storeError(err, "evaluations"))
		return
	}
	resp := make([]EvaluationResponse, len(records))
	for i, rec := range records {
		resp[i] = EvaluationResponse{
			PeriodIndex:   rec.PeriodIndex,
			Phase:         rec.Phase,
			Seq:           rec.Seq,
			RangeStart:    rec.RangeStart.Format(domain.DateLayout),
			RangeEnd:      rec.RangeEnd.Format(domain.DateLayout),
			EvaluationRow: reporting.NewEvaluationRow(rec.Evaluation),
		}
	}
	render.JSON(w, r, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.opts.WalkForwardStore.GetByStrategy(r.Context(), chi.URLParam(r, "strategyID"))
	if err != nil {
		render.Render(w, r, storeError(err, "runs"))
		return
	}
	docs := make([]*reporting.WalkForwardDocument, len(runs))
	for i, run := range runs {
		docs[i] = reporting.NewWalkForwardDocument(run)
	}
	render.JSON(w, r, docs)
}

func (s *Server) listAssessments(w http.ResponseWriter, r *http.Request) {
	results, err := s.opts.AssessmentStore.GetByStrategy(r.Context(), chi.URLParam(r, "strategyID"))
	if err != nil {
		render.Render(w, r, storeError(err, "assessments"))
		return
	}
	docs := make([]*reporting.Phase3Document, len(results))
	for i, res := range results {
		docs[i] = reporting.NewPhase3Document(res)
	}
	render.JSON(w, r, docs)
}

// requestLogger logs one line per request with the chi request ID.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
			}).Debug("http request")
		})
	}
}
