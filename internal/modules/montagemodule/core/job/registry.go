// Package job holds the montage job state machine and the in-memory registry
// that makes it observable to concurrent HTTP callers.
package job

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/utils"
)

// entry pairs a record with the lock serializing its mutations
type entry struct {
	mu  sync.Mutex
	job Job
}

// Registry is a concurrency-safe map of job id to record. Readers always get
// copies, so a status poll never observes a half-applied mutation.
type Registry struct {
	jobs   map[string]*entry
	mu     sync.RWMutex
	logger hclog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger hclog.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*entry),
		logger: logger.Named("job-registry"),
	}
}

// Create allocates an id and publishes a fully initialized processing record
func (r *Registry) Create(videoFilename, audioFilename string) Job {
	id := utils.GenerateUUID()
	j := Job{
		ID:             id,
		Status:         StatusProcessing,
		Stage:          StageDetectingKills,
		Progress:       ProgressCreated,
		StartedAt:      time.Now(),
		OutputFilename: OutputFilenameFor(id),
		VideoFilename:  videoFilename,
		AudioFilename:  audioFilename,
	}

	r.mu.Lock()
	r.jobs[id] = &entry{job: j}
	r.mu.Unlock()

	r.logger.Debug("created job", "job_id", id, "video", videoFilename, "audio", audioFilename)
	return j.Clone()
}

// Get returns a snapshot of the record
func (r *Registry) Get(id string) (Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Job{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// Mutate applies fn to a scratch copy of the record and commits it only if
// fn succeeds and the result is a legal transition. The committed snapshot
// is returned.
func (r *Registry) Mutate(id string, fn func(*Job) error) (Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Job{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.job.Clone()
	if err := fn(&next); err != nil {
		return e.job.Clone(), err
	}

	if next.Status.IsTerminal() && next.CompletedAt == nil {
		now := time.Now()
		next.CompletedAt = &now
	}

	if err := validateTransition(e.job, next); err != nil {
		r.logger.Warn("rejected job mutation", "job_id", id, "error", err)
		return e.job.Clone(), err
	}

	e.job = next
	return next.Clone(), nil
}

// List returns snapshots of every record, oldest first
func (r *Registry) List() []Job {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		jobs = append(jobs, e.job.Clone())
		e.mu.Unlock()
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartedAt.Equal(jobs[j].StartedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs
}

// Len returns the number of records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Clear drops every record. Executors still holding an id will see
// ErrJobNotFound on their next mutation.
func (r *Registry) Clear() int {
	r.mu.Lock()
	n := len(r.jobs)
	r.jobs = make(map[string]*entry)
	r.mu.Unlock()

	r.logger.Info("cleared job registry", "removed", n)
	return n
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return e, nil
}
