package pipeline

import (
	"os"
	"sync"
	"sync/atomic"
)

// Control carries the cooperative-interruption flags of spec.md §4.D.4.
// One Control is owned per running job by the Supervisor and threaded
// into Executor.Run; the Executor polls it at phase boundaries and after
// every segment.
//
// It also doubles as a mediaops.ProcessRegistrar: while a phase has an
// external tool process in flight, the Executor registers it here so that
// cancel (unlike pause, which is purely cooperative per spec.md §4.D.4) can
// additionally hard-kill the subprocess tree immediately rather than
// waiting for the next poll, mirroring the teacher's KillJob path.
type Control struct {
	pauseRequested  atomic.Bool
	cancelRequested atomic.Bool
	deleteOnCancel  atomic.Bool

	killFn func(*os.Process) error

	mu      sync.Mutex
	process *os.Process
}

// NewControl returns a fresh, unrequested Control.
func NewControl() *Control { return &Control{} }

// SetKillFunc installs the platform hard-kill primitive (the Supervisor
// wires in internal/queue's process-group killer). Without one, cancel
// remains purely cooperative.
func (c *Control) SetKillFunc(fn func(*os.Process) error) { c.killFn = fn }

// RegisterProcess records the OS process currently backing a running tool
// invocation. Implements mediaops.ProcessRegistrar.
func (c *Control) RegisterProcess(p *os.Process) {
	c.mu.Lock()
	c.process = p
	c.mu.Unlock()
	if c.cancelRequested.Load() {
		c.killActive()
	}
}

// ClearProcess drops the registered process once its invocation returns.
// Implements mediaops.ProcessRegistrar.
func (c *Control) ClearProcess() {
	c.mu.Lock()
	c.process = nil
	c.mu.Unlock()
}

func (c *Control) killActive() {
	c.mu.Lock()
	p, fn := c.process, c.killFn
	c.mu.Unlock()
	if p == nil || fn == nil {
		return
	}
	if err := fn(p); err != nil {
		_ = p.Kill()
	}
}

// RequestPause asks the running job to suspend at the next checkpointable
// boundary.
func (c *Control) RequestPause() { c.pauseRequested.Store(true) }

// RequestCancel asks the running job to abort at the next checkpointable
// boundary. deleteData mirrors the cancel(delete_data=) parameter. Unlike
// pause, cancel also hard-kills whatever external tool process is
// currently registered, since there is no reason to let it keep running to
// completion once its result will be discarded.
func (c *Control) RequestCancel(deleteData bool) {
	c.deleteOnCancel.Store(deleteData)
	c.cancelRequested.Store(true)
	c.killActive()
}

// ShouldPause reports whether a pause has been requested.
func (c *Control) ShouldPause() bool { return c.pauseRequested.Load() }

// ShouldCancel reports whether a cancel has been requested.
func (c *Control) ShouldCancel() bool { return c.cancelRequested.Load() }

// DeleteOnCancel reports the delete_data flag passed to the most recent
// cancel request.
func (c *Control) DeleteOnCancel() bool { return c.deleteOnCancel.Load() }

// Reset clears both flags, for reuse across a job's lifetime (e.g. after a
// pause is acknowledged and the job later resumes).
func (c *Control) Reset() {
	c.pauseRequested.Store(false)
	c.cancelRequested.Store(false)
	c.deleteOnCancel.Store(false)
}
