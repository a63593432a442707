// Package wlm implements the Worker Lifecycle Manager: a background
// control loop that enforces memory budgets over a pool of long-lived
// build-action worker subprocesses (spec.md).
package wlm

import "github.com/steelforge/wlm/internal/pool"

// WorkerProcessMetrics is a single tick's read-only snapshot of one
// worker process, supplied fresh each tick by an external collector and
// never retained across ticks (spec.md §3).
type WorkerProcessMetrics struct {
	PID           int
	WorkerKeyHash string
	Mnemonic      string
	WorkerIDs     []string
	ResidentKiB   int64
	Status        *pool.Status
}

// ResidentMB truncates resident KiB to whole megabytes. This truncation
// (floor(kib/1000), not /1024) is spec-locked for compatibility — see
// spec.md §9's note on the 1001-1999 KiB observable precision loss.
func (m WorkerProcessMetrics) ResidentMB() int64 {
	return m.ResidentKiB / 1000
}

// MetricsCollector supplies a fresh snapshot of every currently-live
// worker process, once per control-loop tick.
type MetricsCollector interface {
	LiveMetrics() []WorkerProcessMetrics
}

// Pool is the subset of the worker pool's contract the WLM needs: a
// single sweep primitive serving both the inspect and destructive
// passes, keyed by whether the supplied policy ever returns
// pool.Destroy.
type Pool interface {
	EvictWithPolicy(policy pool.SweepPolicy) (destroyedWorkerIDs []string)
}

// ProcessHandle is a live OS process the per-worker-cap killer can
// forcibly terminate.
type ProcessHandle interface {
	ForciblyTerminate() error
}

// ProcessLocator resolves an OS process handle for a pid, or reports
// that the process is already gone.
type ProcessLocator interface {
	Lookup(pid int) (ProcessHandle, bool)
}

// Reporter is the optional user-facing message sink (spec.md §6).
type Reporter interface {
	Info(msg string)
	Warn(msg string)
}

// EventBus is the optional, fire-and-forget machine-consumer sink.
type EventBus interface {
	Post(event WorkerEvictedEvent)
}

// WorkerEvictedEvent is published once per logical worker id per
// eviction or kill (spec.md §3, §8 invariant 4).
type WorkerEvictedEvent struct {
	WorkerID      string
	WorkerKeyHash string
	Mnemonic      string
}
