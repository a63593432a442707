package wlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortByDescendingMemory(t *testing.T) {
	metrics := []WorkerProcessMetrics{metric(100_000), metric(500_000), metric(200_000)}
	sorted := SortByDescendingMemory(metrics)

	assert.Equal(t, int64(500_000), sorted[0].ResidentKiB)
	assert.Equal(t, int64(200_000), sorted[1].ResidentKiB)
	assert.Equal(t, int64(100_000), sorted[2].ResidentKiB)
}

func TestSortByDescendingMemory_DoesNotMutateInput(t *testing.T) {
	metrics := []WorkerProcessMetrics{metric(100_000), metric(500_000)}
	_ = SortByDescendingMemory(metrics)
	assert.Equal(t, int64(100_000), metrics[0].ResidentKiB)
}

func TestResidentMB_TruncatesNotRounds(t *testing.T) {
	m := metric(1999)
	assert.Equal(t, int64(1), m.ResidentMB())
}
