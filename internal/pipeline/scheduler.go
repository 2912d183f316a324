package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/strategy"
)

// ErrSchedulerRunning is returned when Start is called twice.
var ErrSchedulerRunning = errors.New("scheduler already running")

// TaskStatus represents the status of the scheduled re-vetting task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is a snapshot of the scheduled re-vetting task.
type Task struct {
	Schedule    string
	StrategyDir string
	LastRunTime time.Time
	NextRunTime time.Time
	Status      TaskStatus
	Strategies  int // documents processed by the last run
	Failures    int
	Error       string
}

// Runner is the subset of Phase3Pipeline the scheduler drives.
type Runner interface {
	Run(ctx context.Context, doc domain.StrategyDocument, cfg domain.WalkForwardConfig) (*Outcome, error)
}

// Scheduler re-runs Phase 3 over every strategy file in a directory on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	cfg    domain.WalkForwardConfig
	log    logrus.FieldLogger

	mu      sync.RWMutex
	task    Task
	entry   cron.EntryID
	started bool
}

// NewScheduler creates a scheduler for the strategy files in dir.
func NewScheduler(runner Runner, dir string, cfg domain.WalkForwardConfig, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
		cfg:    cfg,
		log:    log.WithField("component", "scheduler"),
		task: Task{
			StrategyDir: dir,
			Status:      TaskStatusPending,
		},
	}
}

// Start registers spec (standard five-field cron syntax) and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerRunning
	}

	id, err := s.cron.AddFunc(spec, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.WithError(err).Error("scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}

	s.entry = id
	s.task.Schedule = spec
	s.started = true
	s.cron.Start()
	s.task.NextRunTime = s.cron.Entry(id).Next
	s.log.WithFields(logrus.Fields{
		"schedule": spec,
		"dir":      s.task.StrategyDir,
		"next":     s.task.NextRunTime,
	}).Info("scheduler started")
	return nil
}

// Stop stops the scheduler. The returned context is done when a running job finishes.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return s.cron.Stop()
}

// RunOnce loads every strategy document in the directory and runs Phase 3 on each.
// A failing document does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	s.task.Status = TaskStatusRunning
	s.task.LastRunTime = time.Now().UTC()
	dir := s.task.StrategyDir
	s.mu.Unlock()

	docs, err := strategy.LoadDir(dir)
	if err != nil {
		s.finish(0, 0, err)
		return err
	}

	failures := 0
	var errs []error
	for _, doc := range docs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		out, err := s.runner.Run(ctx, doc, s.cfg)
		if err != nil {
			failures++
			errs = append(errs, fmt.Errorf("%s: %w", doc.ID, err))
			continue
		}
		s.log.WithFields(logrus.Fields{
			"strategy_id": doc.ID,
			"run_id":      out.Result.RunID,
			"score":       out.Result.Assessment.RiskAdjustedScore,
		}).Info("strategy re-vetted")
	}

	err = errors.Join(errs...)
	s.finish(len(docs), failures, err)
	return err
}

func (s *Scheduler) finish(processed, failures int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.task.Strategies = processed
	s.task.Failures = failures
	if err != nil {
		s.task.Status = TaskStatusFailed
		s.task.Error = err.Error()
	} else {
		s.task.Status = TaskStatusCompleted
		s.task.Error = ""
	}
	if s.started {
		s.task.NextRunTime = s.cron.Entry(s.entry).Next
	}
}

// Task returns a snapshot of the scheduled task.
func (s *Scheduler) Task() Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.task
}
