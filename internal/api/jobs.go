package api

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an asynchronous run.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job tracks one Phase 3 run submitted over the API.
type Job struct {
	ID             string     `json:"id"`
	StrategyID     string     `json:"strategy_id"`
	Status         JobStatus  `json:"status"`
	RunID          string     `json:"run_id,omitempty"`
	Score          *float64   `json:"risk_adjusted_score,omitempty"`
	Confidence     string     `json:"confidence_level,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
	OutputDir      string     `json:"output_dir,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// jobRegistry keeps jobs in memory for the lifetime of the server.
type jobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	clock func() time.Time
}

func newJobRegistry(clock func() time.Time) *jobRegistry {
	return &jobRegistry{
		jobs:  make(map[string]*Job),
		clock: clock,
	}
}

func (r *jobRegistry) create(strategyID string) Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := &Job{
		ID:         uuid.New().String(),
		StrategyID: strategyID,
		Status:     JobQueued,
		CreatedAt:  r.clock(),
	}
	r.jobs[j.ID] = j
	return *j
}

// update applies fn to the stored job under the lock.
func (r *jobRegistry) update(id string, fn func(j *Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		fn(j)
	}
}

func (r *jobRegistry) get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// list returns jobs ordered by creation time, newest first.
func (r *jobRegistry) list() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func (r *jobRegistry) now() *time.Time {
	t := r.clock()
	return &t
}
