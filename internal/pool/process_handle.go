package pool

import (
	"os"
	"syscall"
)

// ProcessHandle is a live OS process the WLM can terminate directly,
// bypassing the pool's own idle/busy bookkeeping (spec.md §4.3 — a
// worker over the per-worker cap is considered malfunctioning and is
// killed without coordinating with the pool).
type ProcessHandle struct {
	proc *os.Process
}

// ForciblyTerminate sends SIGKILL to the process.
func (h *ProcessHandle) ForciblyTerminate() error {
	return h.proc.Signal(syscall.SIGKILL)
}

// ProcessLocator resolves OS process handles by pid.
type ProcessLocator struct{}

// NewProcessLocator returns the default locator.
func NewProcessLocator() *ProcessLocator {
	return &ProcessLocator{}
}

// Lookup returns a handle for pid, or false if the process is already
// gone.
func (l *ProcessLocator) Lookup(pid int) (*ProcessHandle, bool) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil, false
	}
	return &ProcessHandle{proc: proc}, true
}
