package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunStats counts what happened during one pipeline run
type RunStats struct {
	ArticlesCurated int `json:"articles_curated"`
	DraftsGenerated int `json:"drafts_generated"`
	DraftsRejected  int `json:"drafts_rejected"`
	PostsPublished  int `json:"posts_published"`
	PostsFailed     int `json:"posts_failed"`
}

// Run is one pipeline execution
type Run struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Trigger    string     `json:"trigger"`
	Stats      RunStats   `json:"stats"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// runTracker keeps recent runs in memory for the API. Old runs are evicted
// once the cap is reached.
type runTracker struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	order []string
	cap   int
}

func newRunTracker(cap int) *runTracker {
	if cap <= 0 {
		cap = 50
	}
	return &runTracker{
		runs: make(map[string]*Run),
		cap:  cap,
	}
}

// start registers a new run and returns a copy; the tracked record may be
// mutated by finish concurrently
func (t *runTracker) start(trigger string) Run {
	run := &Run{
		ID:        uuid.New().String(),
		Status:    RunRunning,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[run.ID] = run
	t.order = append(t.order, run.ID)
	for len(t.order) > t.cap {
		delete(t.runs, t.order[0])
		t.order = t.order[1:]
	}
	return *run
}

func (t *runTracker) finish(runID string, stats RunStats, runErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[runID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Stats = stats
	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
	} else {
		run.Status = RunCompleted
	}
}

// get returns a copy of the run so callers can't race the tracker
func (t *runTracker) get(runID string) (Run, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

func (t *runTracker) list() []Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Run, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		out = append(out, *t.runs[t.order[i]])
	}
	return out
}
