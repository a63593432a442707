package wlm

import "github.com/steelforge/wlm/internal/pool"

// inspectPolicy never destroys; it just records every idle worker's
// logical ids so the fleet pipeline can restrict eligible metrics to
// those currently idle (spec.md §4.2 Step A/B).
type inspectPolicy struct {
	idleWorkerIDs map[string]struct{}
}

func newInspectPolicy() *inspectPolicy {
	return &inspectPolicy{idleWorkerIDs: make(map[string]struct{})}
}

func (p *inspectPolicy) Visit(w pool.PooledWorker, _ int) pool.Verdict {
	for _, id := range w.WorkerIDs() {
		p.idleWorkerIDs[id] = struct{}{}
	}
	return pool.Keep
}

// inspectIdleWorkerIDs runs the inspect-only sweep (§4.5): walk every
// idle pooled object, destroy nothing, return the observed idle worker
// id set.
func inspectIdleWorkerIDs(p Pool) map[string]struct{} {
	policy := newInspectPolicy()
	p.EvictWithPolicy(policy)
	return policy.idleWorkerIDs
}

// destructivePolicy tags each candidate's Status for deferred kill and
// signals destruction, matching §4.2 Step D: "the pool destroys the
// object and marks the process's Status to PENDING_KILL_DUE_TO_MEMORY_PRESSURE
// before destruction."
type destructivePolicy struct {
	candidateWorkerIDs map[string]struct{}
}

func newDestructivePolicy(candidates map[string]struct{}) *destructivePolicy {
	return &destructivePolicy{candidateWorkerIDs: candidates}
}

func (p *destructivePolicy) Visit(w pool.PooledWorker, _ int) pool.Verdict {
	for _, id := range w.WorkerIDs() {
		if _, selected := p.candidateWorkerIDs[id]; selected {
			w.Status().MaybeUpdate(pool.StatusPendingKillDueToMemoryPressure)
			return pool.Destroy
		}
	}
	return pool.Keep
}

// destructiveSweep runs the destructive sweep (§4.5): visits every idle
// worker, destroying those whose id is in candidateWorkerIDs. Returns
// the ids actually destroyed — a candidate that transitioned from idle
// to checked-out between the inspect and destructive sweeps escapes and
// is not included.
func destructiveSweep(p Pool, candidateWorkerIDs map[string]struct{}) []string {
	policy := newDestructivePolicy(candidateWorkerIDs)
	return p.EvictWithPolicy(policy)
}

// The shrink step (§4.2 Step E) has no sweep policy: it selects
// candidates from not-evicted (including busy) metrics, which a sweep
// over idle workers would not visit, so it tags them for deferred kill
// directly through the Status handles on the selected metrics. See
// fleet_pipeline.go.
