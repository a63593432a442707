package wlm

import (
	"testing"

	"github.com/steelforge/wlm/internal/pool"
	"github.com/stretchr/testify/assert"
)

func metric(kib int64) WorkerProcessMetrics {
	return WorkerProcessMetrics{ResidentKiB: kib, Status: pool.NewStatus()}
}

func TestSelectCandidates_UnderBudget(t *testing.T) {
	metrics := []WorkerProcessMetrics{metric(300_000), metric(400_000), metric(200_000)}
	got := SelectCandidates(metrics, 1000, 900)
	assert.Nil(t, got)
}

func TestSelectCandidates_MinimalPrefix(t *testing.T) {
	a := metric(600_000)
	b := metric(100_000)
	metrics := []WorkerProcessMetrics{a, b}
	got := SelectCandidates(metrics, 500, 700)
	assert.Len(t, got, 1)
	assert.Equal(t, a.ResidentKiB, got[0].ResidentKiB)
}

func TestSelectCandidates_NoPrefixSuffices_ReturnsAll(t *testing.T) {
	metrics := []WorkerProcessMetrics{metric(200_000), metric(100_000)}
	got := SelectCandidates(metrics, 500, 900)
	assert.Len(t, got, 2)
}

func TestSelectCandidates_Empty(t *testing.T) {
	got := SelectCandidates(nil, 500, 0)
	assert.Nil(t, got)
}

func TestSelectCandidates_StableTieBreak(t *testing.T) {
	a := WorkerProcessMetrics{WorkerIDs: []string{"a"}, ResidentKiB: 300_000, Status: pool.NewStatus()}
	b := WorkerProcessMetrics{WorkerIDs: []string{"b"}, ResidentKiB: 300_000, Status: pool.NewStatus()}
	metrics := []WorkerProcessMetrics{a, b}
	got := SelectCandidates(metrics, 0, 600)
	assert.Equal(t, []string{"a"}, got[0].WorkerIDs)
	assert.Equal(t, []string{"b"}, got[1].WorkerIDs)
}
