package reconcile

import (
	"sync"
	"time"

	"crosslist/internal/batch"
	"crosslist/internal/core/id"
)

// RunKind identifies which reconciliation loop a run belongs to.
type RunKind string

const (
	RunSourceSync RunKind = "source_sync"
	RunPriceSync  RunKind = "price_sync"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one tracked reconciliation run. Values returned from the registry
// are copies; mutating them has no effect on the stored run.
type Run struct {
	ID         string         `json:"id"`
	Kind       RunKind        `json:"kind"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Progress   batch.Progress `json:"progress"`
	Stats      batch.Stats    `json:"stats"`
	Summary    map[string]any `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
}

const runHistoryLimit = 200

// RunRegistry tracks in-flight and recent runs in memory. Run history is an
// operator convenience, not durable state: a restart forgets it, which is
// acceptable because every run is idempotent and the next tick starts fresh.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	order []string
}

// NewRunRegistry creates an empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*Run)}
}

// Begin records a new running run and returns its ID.
func (r *RunRegistry) Begin(kind RunKind) string {
	run := &Run{
		ID:        id.New().String(),
		Kind:      kind,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	r.order = append(r.order, run.ID)
	if len(r.order) > runHistoryLimit {
		evicted := r.order[0]
		r.order = r.order[1:]
		delete(r.runs, evicted)
	}
	return run.ID
}

// Update records batch progress for a running run.
func (r *RunRegistry) Update(runID string, p batch.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[runID]; ok {
		run.Progress = p
		run.Stats = p.Stats
	}
}

// Complete marks a run finished with its final stats and summary.
func (r *RunRegistry) Complete(runID string, stats batch.Stats, aborted bool, summary map[string]any) {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return
	}
	run.Status = RunStatusCompleted
	if aborted {
		run.Status = RunStatusAborted
	}
	run.FinishedAt = &now
	run.Stats = stats
	run.Summary = summary
}

// Fail marks a run failed before or outside batch execution.
func (r *RunRegistry) Fail(runID string, err error) {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return
	}
	run.Status = RunStatusFailed
	run.FinishedAt = &now
	if err != nil {
		run.Error = err.Error()
	}
}

// Get returns a copy of the run, if tracked.
func (r *RunRegistry) Get(runID string) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns copies of all tracked runs, newest first.
func (r *RunRegistry) List() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Run, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if run, ok := r.runs[r.order[i]]; ok {
			out = append(out, *run)
		}
	}
	return out
}
