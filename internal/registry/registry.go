// Package registry implements the Job Registry (spec.md §4.B): an
// in-memory map<JobID, Job> guarded by a reader-writer lock. Mutating
// operations snapshot the updated Job, persist it via the Artifact Store,
// and publish an event to the SSE Hub.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
	"joborchestrator/pkg/logger"
)

// Registry owns the canonical in-memory Job table.
type Registry struct {
	store *store.Store
	hub   *sse.Hub

	mu   sync.RWMutex
	jobs map[string]jobmodel.Job
}

// New creates a Registry backed by the given Store and publishing through
// the given Hub.
func New(st *store.Store, hub *sse.Hub) *Registry {
	return &Registry{store: st, hub: hub, jobs: make(map[string]jobmodel.Job)}
}

// ErrNotFound is returned when a job ID doesn't exist in the Registry.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("job %q not found", e.ID) }

// LoadFromDisk scans the Artifact Store at startup and loads every
// persisted job state. Jobs found in state `processing` are reclassified
// to `interrupted` (spec.md §4.B). It returns the IDs reclassified this
// way, so the Supervisor can decide whether to auto-resume them.
func (r *Registry) LoadFromDisk() (interrupted []string, err error) {
	jobs, err := r.store.LoadAllJobStates()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		if j.Status == jobmodel.StatusProcessing {
			j.Status = jobmodel.StatusInterrupted
			j.UpdatedAt = time.Now()
			if err := r.store.SaveJobState(j); err != nil {
				logger.Error("registry: failed to persist interrupted reclassification", "job_id", j.ID, "error", err)
			}
			interrupted = append(interrupted, j.ID)
		}
		r.jobs[j.ID] = j
	}
	return interrupted, nil
}

// Create allocates a new Job in StatusCreated and persists it.
func (r *Registry) Create(filename, inputPath string) (jobmodel.Job, error) {
	now := time.Now()
	j := jobmodel.Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    jobmodel.StatusCreated,
		Phase:     jobmodel.PhasePending,
		Settings:  jobmodel.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	j.Paths.InputPath = inputPath
	r.store.FillPaths(&j)

	if err := r.store.EnsureJobDir(j.ID); err != nil {
		return jobmodel.Job{}, err
	}
	if err := r.store.SetJobIndexEntry(j.ID, inputPath); err != nil {
		return jobmodel.Job{}, err
	}
	if err := r.save(j); err != nil {
		return jobmodel.Job{}, err
	}
	return j, nil
}

// Get returns a snapshot of a job by ID.
func (r *Registry) Get(id string) (jobmodel.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return jobmodel.Job{}, &ErrNotFound{ID: id}
	}
	return j.Clone(), nil
}

// List returns all jobs sorted by CreatedAt ascending (SPEC_FULL.md §5.B).
func (r *Registry) List() []jobmodel.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]jobmodel.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// save persists a job (in-memory + disk) and publishes job_status/progress
// globally; it does not publish per-job events — callers that want
// per-job progress publish explicitly via the Hub themselves (the Executor
// publishes much more granular per-job events than the Registry tracks).
func (r *Registry) save(j jobmodel.Job) error {
	j.UpdatedAt = time.Now()
	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()

	if err := r.store.SaveJobState(j); err != nil {
		return err
	}
	r.hub.PublishGlobal(sse.EventJobStatus, map[string]interface{}{
		"id": j.ID, "status": j.Status, "percent": j.Percent, "message": j.Message,
	})
	return nil
}

// Update applies fn to the current snapshot of a job and persists the
// result. fn must be pure (no closures over other registry state) since it
// runs under the write lock.
func (r *Registry) Update(id string, fn func(*jobmodel.Job)) (jobmodel.Job, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return jobmodel.Job{}, &ErrNotFound{ID: id}
	}
	fn(&j)
	j.UpdatedAt = time.Now()
	r.jobs[id] = j
	r.mu.Unlock()

	if err := r.store.SaveJobState(j); err != nil {
		return jobmodel.Job{}, err
	}
	r.hub.PublishGlobal(sse.EventJobStatus, map[string]interface{}{
		"id": j.ID, "status": j.Status, "percent": j.Percent, "message": j.Message,
	})
	return j, nil
}

// UpdateStatus transitions a job's status.
func (r *Registry) UpdateStatus(id string, status jobmodel.Status) (jobmodel.Job, error) {
	return r.Update(id, func(j *jobmodel.Job) { j.Status = status })
}

// UpdatePhaseProgress updates phase/percent/message, enforcing the
// clamped-to-[0,100] invariant of spec.md §8.1.6.
func (r *Registry) UpdatePhaseProgress(id string, phase jobmodel.Phase, phasePercent, percent int, message string) (jobmodel.Job, error) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return r.Update(id, func(j *jobmodel.Job) {
		j.Phase = phase
		j.PhasePercent = phasePercent
		j.Percent = percent
		j.Message = message
	})
}

// MarkTerminal transitions a job to a terminal status, recording
// last_error when applicable.
func (r *Registry) MarkTerminal(id string, status jobmodel.Status, lastError string) (jobmodel.Job, error) {
	return r.Update(id, func(j *jobmodel.Job) {
		j.Status = status
		j.LastError = lastError
		if status == jobmodel.StatusFinished {
			j.Percent = 100
			j.Phase = jobmodel.PhaseComplete
		}
	})
}

// Delete removes a job from memory, disk, and the input index.
func (r *Registry) Delete(id string, deleteData bool) error {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()

	if err := r.store.RemoveJobIndexEntry(id); err != nil {
		return err
	}
	if deleteData {
		return r.store.RemoveJobDir(id)
	}
	return nil
}
