package wlm

import (
	"testing"

	"github.com/steelforge/wlm/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorker is a minimal pool.PooledWorker for pipeline tests.
type fakeWorker struct {
	key     pool.WorkerKey
	pid     int
	ids     []string
	status  *pool.Status
	idle    bool
}

func (w *fakeWorker) Key() pool.WorkerKey  { return w.key }
func (w *fakeWorker) PID() int             { return w.pid }
func (w *fakeWorker) WorkerIDs() []string  { return w.ids }
func (w *fakeWorker) Status() *pool.Status { return w.status }

// fakePool visits only workers marked idle, mirroring the real pool's
// sweep-over-idle-objects-only contract.
type fakePool struct {
	workers []*fakeWorker
}

func (p *fakePool) EvictWithPolicy(policy pool.SweepPolicy) []string {
	idleCount := 0
	for _, w := range p.workers {
		if w.idle {
			idleCount++
		}
	}

	var destroyed []string
	var remaining []*fakeWorker
	for _, w := range p.workers {
		if !w.idle {
			remaining = append(remaining, w)
			continue
		}
		if policy.Visit(w, idleCount) == pool.Destroy {
			destroyed = append(destroyed, w.ids...)
			continue
		}
		remaining = append(remaining, w)
	}
	p.workers = remaining
	return destroyed
}

func TestFleetPipeline_UnderBudget_NoOp(t *testing.T) {
	p := &fakePool{}
	fp := NewFleetPipeline(p, nil, nil, false)

	metrics := []WorkerProcessMetrics{
		{WorkerIDs: []string{"a"}, ResidentKiB: 300_000, Status: pool.NewStatus()},
	}
	result := fp.Run(metrics, 1000)
	assert.True(t, result.Compliant)
	assert.Empty(t, result.DestroyedWorkerIDs)
}

func TestFleetPipeline_EvictsLargestIdle(t *testing.T) {
	a := &fakeWorker{ids: []string{"a"}, status: pool.NewStatus(), idle: true}
	b := &fakeWorker{ids: []string{"b"}, status: pool.NewStatus(), idle: true}
	p := &fakePool{workers: []*fakeWorker{a, b}}
	fp := NewFleetPipeline(p, nil, nil, false)

	metrics := []WorkerProcessMetrics{
		{WorkerIDs: []string{"a"}, ResidentKiB: 600_000, Status: a.status},
		{WorkerIDs: []string{"b"}, ResidentKiB: 100_000, Status: b.status},
	}
	result := fp.Run(metrics, 500)

	assert.Equal(t, []string{"a"}, result.DestroyedWorkerIDs)
	assert.Equal(t, pool.StatusPendingKillDueToMemoryPressure, a.status.Load())
}

func TestFleetPipeline_BusyLargestIsNotDestroyed(t *testing.T) {
	a := &fakeWorker{ids: []string{"a"}, status: pool.NewStatus(), idle: false} // busy, 800MB
	b := &fakeWorker{ids: []string{"b"}, status: pool.NewStatus(), idle: true}
	c := &fakeWorker{ids: []string{"c"}, status: pool.NewStatus(), idle: true}
	p := &fakePool{workers: []*fakeWorker{a, b, c}}
	fp := NewFleetPipeline(p, nil, nil, false)

	metrics := []WorkerProcessMetrics{
		{WorkerIDs: []string{"a"}, ResidentKiB: 800_000, Status: a.status},
		{WorkerIDs: []string{"b"}, ResidentKiB: 200_000, Status: b.status},
		{WorkerIDs: []string{"c"}, ResidentKiB: 100_000, Status: c.status},
	}
	result := fp.Run(metrics, 500)

	assert.ElementsMatch(t, []string{"b", "c"}, result.DestroyedWorkerIDs)
	assert.False(t, result.Compliant)
	assert.Equal(t, pool.StatusAlive, a.status.Load())
}

func TestFleetPipeline_NoIdleEligible_NoDestruction(t *testing.T) {
	a := &fakeWorker{ids: []string{"a"}, status: pool.NewStatus(), idle: false}
	p := &fakePool{workers: []*fakeWorker{a}}
	fp := NewFleetPipeline(p, nil, nil, false)

	metrics := []WorkerProcessMetrics{
		{WorkerIDs: []string{"a"}, ResidentKiB: 900_000, Status: a.status},
	}
	result := fp.Run(metrics, 500)

	assert.Empty(t, result.DestroyedWorkerIDs)
	assert.False(t, result.Compliant)
}

func TestFleetPipeline_Shrink_TagsWithoutDestroying(t *testing.T) {
	a := &fakeWorker{ids: []string{"a"}, status: pool.NewStatus(), idle: true}
	b := &fakeWorker{ids: []string{"b"}, status: pool.NewStatus(), idle: false}
	p := &fakePool{workers: []*fakeWorker{a, b}}
	fp := NewFleetPipeline(p, nil, nil, true)

	metrics := []WorkerProcessMetrics{
		{WorkerIDs: []string{"a"}, ResidentKiB: 200_000, Status: a.status},
		{WorkerIDs: []string{"b"}, ResidentKiB: 400_000, Status: b.status},
	}
	result := fp.Run(metrics, 300)

	require.Equal(t, []string{"a"}, result.DestroyedWorkerIDs)
	assert.Equal(t, []string{"b"}, result.ShrinkTaggedIDs)
	assert.Equal(t, pool.StatusPendingKillDueToMemoryPressure, b.status.Load())
	assert.NotContains(t, result.DestroyedWorkerIDs, "b")
}

func TestFleetPipeline_PublishesOneEventPerEvictedID(t *testing.T) {
	a := &fakeWorker{ids: []string{"a1", "a2"}, status: pool.NewStatus(), idle: true}
	p := &fakePool{workers: []*fakeWorker{a}}

	var posted []WorkerEvictedEvent
	bus := busFunc(func(e WorkerEvictedEvent) { posted = append(posted, e) })
	fp := NewFleetPipeline(p, nil, bus, false)

	metrics := []WorkerProcessMetrics{
		{WorkerIDs: []string{"a1", "a2"}, ResidentKiB: 900_000, Status: a.status, Mnemonic: "Javac"},
	}
	fp.Run(metrics, 100)

	require.Len(t, posted, 2)
	ids := []string{posted[0].WorkerID, posted[1].WorkerID}
	assert.ElementsMatch(t, []string{"a1", "a2"}, ids)
}

type busFunc func(WorkerEvictedEvent)

func (f busFunc) Post(e WorkerEvictedEvent) { f(e) }
