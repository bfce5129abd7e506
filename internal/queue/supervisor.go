// Package queue implements the Job Queue & Supervisor (spec.md §4.E): a
// single-runner FIFO scheduler with priority insertion, reordering,
// pause/resume, cancellation, and crash recovery. There is exactly one
// Executor instance active at a time — the ASR model occupies GPU memory
// and cannot safely be multi-tenanted on one host.
package queue

import (
	"context"
	"fmt"
	"sync"

	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/pipeline"
	"joborchestrator/internal/registry"
	"joborchestrator/internal/sse"
	"joborchestrator/pkg/logger"
)

// InvalidQueueOrder is returned by Reorder when the proposed order isn't a
// permutation of the currently queued (non-running) jobs.
type InvalidQueueOrder struct{ Reason string }

func (e *InvalidQueueOrder) Error() string { return fmt.Sprintf("invalid queue order: %s", e.Reason) }

// PrioritizeMode selects how aggressively Prioritize promotes a job.
type PrioritizeMode string

const (
	PrioritizeGentle PrioritizeMode = "gentle"
	PrioritizeForce  PrioritizeMode = "force"
)

// Supervisor owns the mutable queue, the single runner loop, and the
// per-job Control handles used for cooperative interruption.
type Supervisor struct {
	executor *pipeline.Executor
	registry *registry.Registry
	hub      *sse.Hub

	autoResumeOnStartup bool

	mu        sync.Mutex
	queue     []string
	runningID string
	controls  map[string]*pipeline.Control
	signal    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Supervisor. Start must be called to begin the runner
// loop.
func New(executor *pipeline.Executor, reg *registry.Registry, hub *sse.Hub, autoResumeOnStartup bool) *Supervisor {
	return &Supervisor{
		executor:            executor,
		registry:            reg,
		hub:                 hub,
		autoResumeOnStartup: autoResumeOnStartup,
		controls:            make(map[string]*pipeline.Control),
		signal:              make(chan struct{}, 1),
		done:                make(chan struct{}),
	}
}

// newControl builds a Control with the platform process-group killer wired
// in as its hard-cancel primitive.
func (s *Supervisor) newControl() *pipeline.Control {
	ctrl := pipeline.NewControl()
	ctrl.SetKillFunc(killProcessTree)
	return ctrl
}

func (s *Supervisor) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Start launches the runner goroutine and, per spec.md §4.E crash
// recovery, enqueues any interrupted jobs at the head of the queue when
// auto_resume_on_startup is set.
func (s *Supervisor) Start(ctx context.Context, interrupted []string) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.autoResumeOnStartup {
		s.mu.Lock()
		for _, id := range interrupted {
			job, err := s.registry.Get(id)
			if err != nil {
				continue
			}
			if isUnrecoverable(job.LastError) {
				continue
			}
			s.queue = append([]string{id}, s.queue...)
			s.controls[id] = s.newControl()
		}
		s.mu.Unlock()
	}

	go s.run()
	s.wake()
}

// Stop cancels the Supervisor's context. The runner loop exits once the
// current job's Executor.Run returns; because that same context is passed
// to Run, phase work that honours it (tool subprocesses started with
// exec.CommandContext) is cut short rather than left to reach a suspension
// point. Stop does not call RequestCancel on the running job's Control.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// isUnrecoverable reports whether a job's last_error indicates it should
// not be auto-retried, per spec.md §4.E ("e.g., input missing").
func isUnrecoverable(lastError string) bool {
	return lastError != "" && (contains(lastError, string(pipeline.KindInputMissing)) || contains(lastError, string(pipeline.KindModelLoadError)))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// run is the single runner loop of spec.md §4.E.
func (s *Supervisor) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.signal:
		}

		for {
			id, ctrl, ok := s.popNext()
			if !ok {
				break
			}

			logger.WorkerOperation(0, id, "dequeue")
			result := s.executor.Run(s.ctx, id, ctrl)
			logger.WorkerOperation(0, id, "run_returned", "status", result.Status)

			s.mu.Lock()
			s.runningID = ""
			delete(s.controls, id)
			s.mu.Unlock()

			if result.Status == jobmodel.StatusPaused {
				// Paused jobs leave the queue entirely until resumed.
			}
			s.publishQueueUpdate()

			if s.ctx.Err() != nil {
				return
			}
		}
	}
}

// popNext pops the head of the queue (if any) and marks it running. It
// returns ok=false if the queue is empty or a job is already running.
func (s *Supervisor) popNext() (id string, ctrl *pipeline.Control, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningID != "" || len(s.queue) == 0 {
		return "", nil, false
	}

	id = s.queue[0]
	s.queue = s.queue[1:]
	s.runningID = id
	ctrl = s.controls[id]
	if ctrl == nil {
		ctrl = s.newControl()
		s.controls[id] = ctrl
	}

	if _, err := s.registry.UpdateStatus(id, jobmodel.StatusProcessing); err != nil {
		_ = err
	}
	s.publishQueueUpdateLocked()
	return id, ctrl, true
}

// StartJob admits a job: freezes settings, enqueues it, and wakes the
// runner. Per spec.md §8.3, if the queue is empty and no job is running,
// the job observably skips any dwell time in `queued`.
func (s *Supervisor) StartJob(jobID string, settings jobmodel.Settings) error {
	if _, err := s.registry.Update(jobID, func(j *jobmodel.Job) {
		j.Settings = settings
		j.Status = jobmodel.StatusQueued
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.queue = append(s.queue, jobID)
	s.controls[jobID] = s.newControl()
	s.publishQueueUpdateLocked()
	s.mu.Unlock()

	s.wake()
	return nil
}

// Reorder validates order as a permutation of the currently queued
// (non-running) jobs and, if valid, replaces the queue atomically.
func (s *Supervisor) Reorder(order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !samesSet(order, s.queue) {
		return &InvalidQueueOrder{Reason: "proposed order is not a permutation of the currently queued jobs"}
	}
	s.queue = append([]string(nil), order...)
	s.publishQueueUpdateLocked()
	return nil
}

func samesSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(b))
	for _, v := range b {
		counts[v]++
	}
	for _, v := range a {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}

// Prioritize moves jobID to the head of the queue. In force mode it also
// requests a pause of the currently running job (spec.md §4.E). Once the
// preempted job acknowledges the pause it is paused like any other paused
// job: it leaves the queue, is not re-enqueued, and stays paused until
// Resume is called for it.
func (s *Supervisor) Prioritize(jobID string, mode PrioritizeMode) error {
	s.mu.Lock()
	idx := -1
	for i, id := range s.queue {
		if id == jobID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return &registry.ErrNotFound{ID: jobID}
	}
	if idx == 0 {
		s.mu.Unlock()
		return nil // already at head: prioritize(gentle) on head job is a no-op (spec.md §8.3)
	}

	s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
	s.queue = append([]string{jobID}, s.queue...)

	var runningCtrl *pipeline.Control
	if mode == PrioritizeForce && s.runningID != "" {
		runningCtrl = s.controls[s.runningID]
	}
	s.publishQueueUpdateLocked()
	s.mu.Unlock()

	if runningCtrl != nil {
		runningCtrl.RequestPause()
	}
	return nil
}

// Pause requests suspension of a running job, or directly transitions a
// queued job to paused.
func (s *Supervisor) Pause(jobID string) error {
	s.mu.Lock()
	if s.runningID == jobID {
		ctrl := s.controls[jobID]
		s.mu.Unlock()
		if ctrl != nil {
			ctrl.RequestPause()
		}
		return nil
	}

	idx := indexInSlice(s.queue, jobID)
	if idx < 0 {
		s.mu.Unlock()
		return &registry.ErrNotFound{ID: jobID}
	}
	s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
	delete(s.controls, jobID)
	s.publishQueueUpdateLocked()
	s.mu.Unlock()

	_, err := s.registry.UpdateStatus(jobID, jobmodel.StatusPaused)
	return err
}

// Resume re-enqueues a paused job at the tail of the queue.
func (s *Supervisor) Resume(jobID string) error {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status != jobmodel.StatusPaused {
		return fmt.Errorf("queue: job %q is not paused", jobID)
	}

	if _, err := s.registry.UpdateStatus(jobID, jobmodel.StatusQueued); err != nil {
		return err
	}

	s.mu.Lock()
	s.queue = append(s.queue, jobID)
	s.controls[jobID] = s.newControl()
	s.publishQueueUpdateLocked()
	s.mu.Unlock()

	s.hub.PublishSignal(jobID, sse.SignalJobResumed)
	s.wake()
	return nil
}

// Cancel requests cancellation of a running job, or directly transitions
// a non-running job to canceled. Calling Cancel twice is idempotent
// (spec.md §8.2): the second call finds nothing left to do and succeeds.
func (s *Supervisor) Cancel(jobID string, deleteData bool) error {
	s.mu.Lock()
	if s.runningID == jobID {
		ctrl := s.controls[jobID]
		s.mu.Unlock()
		if ctrl != nil {
			ctrl.RequestCancel(deleteData)
		}
		return nil
	}

	idx := indexInSlice(s.queue, jobID)
	if idx >= 0 {
		s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
	}
	delete(s.controls, jobID)
	s.publishQueueUpdateLocked()
	s.mu.Unlock()

	job, err := s.registry.Get(jobID)
	if err != nil {
		// Already gone: idempotent no-op.
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}

	if _, err := s.registry.MarkTerminal(jobID, jobmodel.StatusCanceled, ""); err != nil {
		return err
	}
	s.hub.PublishSignal(jobID, sse.SignalJobCanceled)
	if deleteData {
		return s.registry.Delete(jobID, true)
	}
	return nil
}

func indexInSlice(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// Snapshot is the `{queue[], running, interrupted, jobs{}}` shape of
// GET /api/queue-status.
type Snapshot struct {
	Queue       []string       `json:"queue"`
	Running     string         `json:"running,omitempty"`
	Interrupted []string       `json:"interrupted"`
	Jobs        []jobmodel.Job `json:"jobs"`
}

// Status returns the current queue snapshot alongside every known job.
func (s *Supervisor) Status() Snapshot {
	s.mu.Lock()
	queue := append([]string(nil), s.queue...)
	running := s.runningID
	s.mu.Unlock()

	jobs := s.registry.List()
	var interrupted []string
	for _, j := range jobs {
		if j.Status == jobmodel.StatusInterrupted {
			interrupted = append(interrupted, j.ID)
		}
	}

	return Snapshot{Queue: queue, Running: running, Interrupted: interrupted, Jobs: jobs}
}

func (s *Supervisor) publishQueueUpdateLocked() {
	queue := append([]string(nil), s.queue...)
	running := s.runningID
	go s.hub.PublishGlobal(sse.EventQueueUpdate, map[string]interface{}{"queue": queue, "running": running})
}

func (s *Supervisor) publishQueueUpdate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishQueueUpdateLocked()
}
