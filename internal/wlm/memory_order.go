package wlm

import "sort"

// byDescendingMemory sorts WorkerProcessMetrics by descending resident
// memory. Comparisons use explicit less-than/greater-than on KiB, never
// subtraction, so they can't overflow (spec.md §9).
type byDescendingMemory []WorkerProcessMetrics

func (s byDescendingMemory) Len() int      { return len(s) }
func (s byDescendingMemory) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byDescendingMemory) Less(i, j int) bool {
	return s[i].ResidentKiB > s[j].ResidentKiB
}

// SortByDescendingMemory returns a copy of metrics ordered largest-first
// by resident memory. The sort is stable, so metrics with equal memory
// retain their relative input order — there is no secondary tie-break
// key.
func SortByDescendingMemory(metrics []WorkerProcessMetrics) []WorkerProcessMetrics {
	out := make([]WorkerProcessMetrics, len(metrics))
	copy(out, metrics)
	sort.Stable(byDescendingMemory(out))
	return out
}
