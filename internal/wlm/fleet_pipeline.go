package wlm

import "github.com/steelforge/wlm/internal/pool"

// FleetEvictionResult summarizes one tick's fleet-cap pipeline run, for
// logging and tests.
type FleetEvictionResult struct {
	UsageMB          int64
	CapMB            int64
	EligibleCount    int
	DestroyedWorkerIDs []string
	ShrinkTaggedIDs  []string
	Compliant        bool
}

// FleetPipeline implements spec.md §4.2: the two-phase (inspect,
// destructive) fleet-cap eviction pipeline, plus the optional shrink
// step. It is stateful only in the "no candidates found" log
// suppression (spec.md §8 invariant 6); everything else is a pure
// function of the tick's metrics snapshot.
type FleetPipeline struct {
	pool     Pool
	reporter Reporter
	bus      EventBus
	shrink   bool

	noCandidatesLogSuppressed bool
}

// NewFleetPipeline builds a pipeline. reporter and bus may be nil.
func NewFleetPipeline(p Pool, reporter Reporter, bus EventBus, shrinkEnabled bool) *FleetPipeline {
	return &FleetPipeline{pool: p, reporter: reporter, bus: bus, shrink: shrinkEnabled}
}

// Run executes one tick of the fleet-cap pipeline against metrics,
// given the fleet cap capMB. If usage is already within budget it
// returns a Compliant result without touching the pool. A capMB of 0
// is not treated as disabled here; ControlLoop skips Run in that case.
func (fp *FleetPipeline) Run(metrics []WorkerProcessMetrics, capMB int64) *FleetEvictionResult {
	usage := aggregateUsageMB(metrics)
	if usage <= capMB {
		return &FleetEvictionResult{UsageMB: usage, CapMB: capMB, Compliant: true}
	}

	// Step A — inspect.
	idleWorkerIDs := inspectIdleWorkerIDs(fp.pool)

	// Step B — restrict to idle-eligible metrics: eligible if ANY of the
	// metric's logical ids is idle (spec.md §9 Open Question, resolved
	// as "any").
	eligible := make([]WorkerProcessMetrics, 0, len(metrics))
	for _, m := range metrics {
		if anyIDIdle(m.WorkerIDs, idleWorkerIDs) {
			eligible = append(eligible, m)
		}
	}

	if len(eligible) == 0 {
		fp.logNoCandidates()
		return &FleetEvictionResult{UsageMB: usage, CapMB: capMB, Compliant: false}
	}
	fp.noCandidatesLogSuppressed = false

	// Step C — select candidates.
	candidates := SelectCandidates(eligible, capMB, usage)
	candidateIDs := unionWorkerIDs(candidates)

	// Step D — destructive sweep.
	destroyed := destructiveSweep(fp.pool, candidateIDs)

	result := &FleetEvictionResult{
		UsageMB:            usage,
		CapMB:              capMB,
		EligibleCount:      len(eligible),
		DestroyedWorkerIDs: destroyed,
	}

	// Step E — shrink (optional).
	if fp.shrink {
		notEvicted := excludeDestroyed(metrics, destroyed)
		remaining := aggregateUsageMB(notEvicted)
		if remaining > capMB {
			shrinkCandidates := SelectCandidates(notEvicted, capMB, remaining)
			for _, m := range shrinkCandidates {
				if m.Status.MaybeUpdate(pool.StatusPendingKillDueToMemoryPressure) {
					result.ShrinkTaggedIDs = append(result.ShrinkTaggedIDs, m.WorkerIDs...)
				}
			}
		}
	}

	result.Compliant = aggregateUsageMB(excludeDestroyed(metrics, destroyed)) <= capMB

	if !result.Compliant && fp.reporter != nil {
		fp.reporter.Info("fleet memory cap tick could not bring usage fully under budget — active workers alone may exceed the cap")
	}

	// Step F — publish.
	for _, id := range destroyed {
		fp.publish(id, metrics)
	}

	return result
}

func (fp *FleetPipeline) publish(workerID string, metrics []WorkerProcessMetrics) {
	if fp.bus == nil {
		return
	}
	keyHash, mnemonic := lookupIdentity(workerID, metrics)
	fp.bus.Post(WorkerEvictedEvent{WorkerID: workerID, WorkerKeyHash: keyHash, Mnemonic: mnemonic})
}

func (fp *FleetPipeline) logNoCandidates() {
	if fp.noCandidatesLogSuppressed {
		return
	}
	fp.noCandidatesLogSuppressed = true
	if fp.reporter != nil {
		fp.reporter.Info("fleet over memory budget but no idle candidates found — suppressing until candidates reappear")
	}
}

func aggregateUsageMB(metrics []WorkerProcessMetrics) int64 {
	var total int64
	for _, m := range metrics {
		total += m.ResidentMB()
	}
	return total
}

func anyIDIdle(ids []string, idle map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := idle[id]; ok {
			return true
		}
	}
	return false
}

func unionWorkerIDs(metrics []WorkerProcessMetrics) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range metrics {
		for _, id := range m.WorkerIDs {
			out[id] = struct{}{}
		}
	}
	return out
}

func excludeDestroyed(metrics []WorkerProcessMetrics, destroyed []string) []WorkerProcessMetrics {
	destroyedSet := make(map[string]struct{}, len(destroyed))
	for _, id := range destroyed {
		destroyedSet[id] = struct{}{}
	}
	out := make([]WorkerProcessMetrics, 0, len(metrics))
	for _, m := range metrics {
		evicted := false
		for _, id := range m.WorkerIDs {
			if _, ok := destroyedSet[id]; ok {
				evicted = true
				break
			}
		}
		if !evicted {
			out = append(out, m)
		}
	}
	return out
}

func lookupIdentity(workerID string, metrics []WorkerProcessMetrics) (keyHash, mnemonic string) {
	for _, m := range metrics {
		for _, id := range m.WorkerIDs {
			if id == workerID {
				return m.WorkerKeyHash, m.Mnemonic
			}
		}
	}
	return "", ""
}
