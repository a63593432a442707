package wlm

// SelectCandidates implements spec.md §4.4: given metrics, a fleet cap
// and the current aggregate usage, sort a copy of the metrics
// largest-first by memory, walk the sorted list accumulating a "would-free" total and stop at
// the first prefix where usedMB - freed <= capMB. If no prefix
// achieves compliance, the full input is returned (accepted as
// best-effort non-compliance, never an error).
//
// The result is the minimum descending-memory prefix achieving
// compliance, or the full list — spec.md §8 invariant 1.
func SelectCandidates(metrics []WorkerProcessMetrics, capMB, usedMB int64) []WorkerProcessMetrics {
	sorted := SortByDescendingMemory(metrics)

	if usedMB <= capMB {
		return nil
	}

	var freed int64
	for i, m := range sorted {
		freed += m.ResidentMB()
		if usedMB-freed <= capMB {
			return sorted[:i+1]
		}
	}

	// Active workers alone exceed capMB: no prefix suffices, return
	// everything eligible. Still non-empty whenever sorted is non-empty.
	return sorted
}
