package termexec

import (
	"fmt"
	"sync"
	"syscall"
)

// runningStep is one entry of the process-wide running_steps map (spec
// §4.6), which gates the already-running check. An entry records the
// child's pid and whether it was cancelled; it does not hold the pty
// master or a status value. Global because loom's terminal runtime binds
// at most one pipeline per process.
type runningStep struct {
	pid       int
	cancelled bool
}

// Registry is the running_steps map. Initialised empty, entries cleared
// on completion, cancellation, or error.
type Registry struct {
	mu    sync.Mutex
	steps map[string]*runningStep
}

// NewRegistry returns an empty running_steps registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]*runningStep)}
}

// Reserve registers name as running before its child is even spawned,
// returning false if the step was already recorded running globally (spec
// §4.6's independent-step pre-check). The pid is filled in once known via
// SetPID.
func (r *Registry) Reserve(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.steps[name]; running {
		return false
	}
	r.steps[name] = &runningStep{}
	return true
}

// SetPID records the spawned child's pid against an already-reserved
// step name.
func (r *Registry) SetPID(name string, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.steps[name]; ok {
		s.pid = pid
	}
}

// IsRunning reports whether name is currently registered running.
func (r *Registry) IsRunning(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, running := r.steps[name]
	return running
}

// Finish deregisters name and reports whether it had been cancelled, so
// the caller can pick the CANCELLED banner over FAILED (spec §4.6: "A
// cancellation does not retroactively change earlier running frames" but
// it does determine the final one). State is cleared per entry
// regardless of outcome.
func (r *Registry) Finish(name string) (wasCancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.steps[name]; ok {
		wasCancelled = s.cancelled
	}
	delete(r.steps, name)
	return wasCancelled
}

// Cancel sends SIGTERM to name's process group (spec §4.6: cancellation
// is advisory and immediate, sent to the child's process group). Returns
// an error if name isn't currently running. A step reserved but without a
// pid yet is only marked cancelled, and nil is returned.
func (r *Registry) Cancel(name string) error {
	r.mu.Lock()
	step, running := r.steps[name]
	if running {
		step.cancelled = true
	}
	r.mu.Unlock()
	if !running {
		return fmt.Errorf("step %q is not running", name)
	}
	if step.pid == 0 {
		return nil // spawn hasn't reached SetPID yet; nothing to signal
	}
	return syscall.Kill(-step.pid, syscall.SIGTERM)
}

// CancelAll sends SIGTERM to every currently running step's process
// group, for a session-wide cancel or client disconnect (spec §4.6).
func (r *Registry) CancelAll() {
	r.mu.Lock()
	pids := make([]int, 0, len(r.steps))
	for _, s := range r.steps {
		s.cancelled = true
		if s.pid != 0 {
			pids = append(pids, s.pid)
		}
	}
	r.mu.Unlock()
	for _, pid := range pids {
		_ = syscall.Kill(-pid, syscall.SIGTERM)
	}
}

// Names returns the currently running step names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.steps))
	for name := range r.steps {
		out = append(out, name)
	}
	return out
}
