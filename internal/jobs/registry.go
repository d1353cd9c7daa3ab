package jobs

import (
	"sync"
	"time"

	"github.com/sahilpatel/media-summarizer/internal/types"
)

// Job is the authoritative record for one summarization job. It lives only in
// the registry; everything outside reads copies via Snapshot.
type Job struct {
	ID              string
	Status          types.Status
	Phase           string
	PhaseProgress   int
	OverallProgress int
	Result          *types.Result
	Error           string
	Canceled        bool
	CreatedAt       time.Time
}

// Registry is the in-memory job table. The orchestrator goroutine for a job is
// its only writer; handlers, subscribers and the janitor only ever see copies.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Create registers a new job in the queued state and returns its snapshot.
func (r *Registry) Create(id string) types.JobSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := &Job{
		ID:        id,
		Status:    types.StatusQueued,
		Phase:     types.StatusQueued.Phase(),
		CreatedAt: time.Now(),
	}
	r.jobs[id] = job
	return snapshotOf(job)
}

// Snapshot returns a copy of the job's current state.
func (r *Registry) Snapshot(id string) (types.JobSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return types.JobSnapshot{}, false
	}
	return snapshotOf(job), true
}

// Apply runs mutate against the job under the registry lock and reports
// whether the job still existed. A missing job is not an error: the janitor
// may have expired it while its orchestrator was mid-stage.
func (r *Registry) Apply(id string, mutate func(*Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	mutate(job)
	return true
}

// RequestCancel sets the cancellation flag. It never transitions status; the
// orchestrator observes the flag at the next stage boundary. No-op on unknown
// or already-terminal jobs.
func (r *Registry) RequestCancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Canceled = true
}

// Stats counts live jobs by status.
func (r *Registry) Stats() types.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := types.RegistryStats{
		Total:    len(r.jobs),
		ByStatus: make(map[types.Status]int),
	}
	for _, job := range r.jobs {
		stats.ByStatus[job.Status]++
	}
	return stats
}

// ExpireOlderThan removes every job older than ttl, regardless of status, and
// returns the removed ids so the caller can tear down their scratch dirs.
func (r *Registry) ExpireOlderThan(ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	var removed []string
	for id, job := range r.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func snapshotOf(job *Job) types.JobSnapshot {
	snap := types.JobSnapshot{
		ID:              job.ID,
		Status:          job.Status,
		Phase:           job.Phase,
		PhaseProgress:   job.PhaseProgress,
		OverallProgress: job.OverallProgress,
		Error:           job.Error,
		Canceled:        job.Canceled,
		CreatedAt:       job.CreatedAt,
	}
	if job.Result != nil {
		result := *job.Result
		snap.Result = &result
	}
	return snap
}
