package wlm

import (
	"fmt"

	"github.com/steelforge/wlm/internal/pool"
)

// SingleWorkerKiller implements spec.md §4.3: any worker exceeding the
// per-worker cap is killed directly via its OS process handle, bypassing
// the pool's idle/busy bookkeeping entirely — the pool discovers the
// death on next use.
type SingleWorkerKiller struct {
	locator  ProcessLocator
	reporter Reporter
	bus      EventBus
}

// NewSingleWorkerKiller builds a killer. reporter and bus may be nil.
func NewSingleWorkerKiller(locator ProcessLocator, reporter Reporter, bus EventBus) *SingleWorkerKiller {
	return &SingleWorkerKiller{locator: locator, reporter: reporter, bus: bus}
}

// KillOverLimit kills every metric exceeding capMB and returns the
// number of worker processes actually killed.
func (k *SingleWorkerKiller) KillOverLimit(metrics []WorkerProcessMetrics, capMB int64) int {
	killed := 0
	for _, m := range metrics {
		if m.ResidentMB() <= capMB {
			continue
		}
		if k.killOne(m, capMB) {
			killed++
		}
	}
	return killed
}

func (k *SingleWorkerKiller) killOne(m WorkerProcessMetrics, capMB int64) bool {
	handle, ok := k.locator.Lookup(m.PID)
	if !ok {
		// Transient observation gap: process already gone. Skip, retry
		// next tick if it's still reported.
		return false
	}

	msg := fmt.Sprintf("worker %s (pid=%d) using %dMB exceeds per-worker cap of %dMB — killing",
		m.Mnemonic, m.PID, m.ResidentMB(), capMB)
	if k.reporter != nil {
		// Always reported regardless of verbosity: a per-worker-cap
		// breach can fail an in-flight action.
		k.reporter.Warn(msg)
	}

	if err := handle.ForciblyTerminate(); err != nil {
		return false
	}

	if !m.Status.MaybeUpdate(pool.StatusKilledDueToMemoryPressure) {
		return false
	}

	if k.bus != nil {
		for _, id := range m.WorkerIDs {
			k.bus.Post(WorkerEvictedEvent{
				WorkerID:      id,
				WorkerKeyHash: m.WorkerKeyHash,
				Mnemonic:      m.Mnemonic,
			})
		}
	}
	return true
}
