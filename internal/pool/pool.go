// Package pool implements the worker-process object pool the Worker
// Lifecycle Manager mediates: a keyed pool of long-lived build-action
// subprocesses, reused across actions and scaled between a configured
// min and max per key.
package pool

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Verdict is a sweep policy's decision for one idle worker.
type Verdict int

const (
	Keep Verdict = iota
	Destroy
)

// PooledWorker is the read surface, plus the shared Status handle, that
// a sweep policy sees for one idle worker process.
type PooledWorker interface {
	Key() WorkerKey
	PID() int
	WorkerIDs() []string
	Status() *Status
}

// SweepPolicy is invoked once per idle worker across every sub-pool,
// under each sub-pool's own iteration lock (spec.md §6's
// evictWithPolicy contract). Destroy verdicts are removed through the
// destruction path; the pool never partially-sweeps a sub-pool under
// concurrent check-out.
type SweepPolicy interface {
	Visit(w PooledWorker, idleCount int) Verdict
}

// WorkerPool is a keyed object pool of WorkerProcess. Each key
// (mnemonic + config fingerprint) gets its own sub-pool with a
// configurable capacity.
type WorkerPool struct {
	mu         sync.RWMutex
	subPools   map[string]*subPool
	minPerKey  int
	maxPerKey  int
	binaryPath string
	checkouts  *CheckoutTracker

	// CrashHandler is invoked with the worker id active at time of crash.
	CrashHandler func(workerID string)
}

// NewWorkerPool creates an empty keyed pool. Sub-pools are created
// lazily on first Acquire for a previously-unseen key.
func NewWorkerPool(minPerKey, maxPerKey int, binaryPath string) *WorkerPool {
	p := &WorkerPool{
		subPools:   make(map[string]*subPool),
		minPerKey:  minPerKey,
		maxPerKey:  maxPerKey,
		binaryPath: binaryPath,
	}
	p.checkouts = NewCheckoutTracker(func(w *WorkerProcess) { p.Release(w) })
	return p
}

// Acquire blocks until a worker process for key is available, scaling up
// a new one if the sub-pool has room and none is free. Returns the
// process and a fresh logical worker id bound to it.
func (p *WorkerPool) Acquire(ctx context.Context, key WorkerKey) (*WorkerProcess, string, error) {
	sp := p.subPoolFor(key)

	if err := sp.ensureMin(); err != nil {
		return nil, "", err
	}

	w, err := sp.acquire(ctx)
	if err != nil {
		return nil, "", err
	}
	id := w.checkOut()
	p.checkouts.Add(id, w)
	return w, id, nil
}

// Release returns a worker process to its sub-pool after a logical
// worker id finishes using it. If the process has been tagged for
// deferred kill, it is destroyed instead of returned.
func (p *WorkerPool) Release(w *WorkerProcess) {
	if w.checkIn() {
		log.Printf("[pool] worker %d pending-kill — destroying on check-in instead of returning", w.ID)
		w.Kill()
		p.subPoolFor(w.Key()).remove(w)
		return
	}
	p.subPoolFor(w.Key()).release(w)
}

// ReleaseByWorkerID looks up the process currently serving workerID and
// releases it, removing the checkout mapping. Returns false if workerID
// is not a known checkout.
func (p *WorkerPool) ReleaseByWorkerID(workerID string) bool {
	w, ok := p.checkouts.Remove(workerID)
	if !ok {
		return false
	}
	p.Release(w)
	return true
}

// EvictWithPolicy runs policy.Visit once per idle worker across every
// sub-pool, serialized per sub-pool so a worker cannot be checked out
// mid-decision for that sub-pool's traversal. Returns the worker ids of
// workers actually destroyed.
func (p *WorkerPool) EvictWithPolicy(policy SweepPolicy) []string {
	p.mu.RLock()
	subPools := make([]*subPool, 0, len(p.subPools))
	for _, sp := range p.subPools {
		subPools = append(subPools, sp)
	}
	p.mu.RUnlock()

	var destroyed []string
	for _, sp := range subPools {
		destroyed = append(destroyed, sp.evictWithPolicy(policy)...)
	}
	return destroyed
}

// AllWorkers returns every worker process across every sub-pool, for
// metrics collection and status reporting.
func (p *WorkerPool) AllWorkers() []*WorkerProcess {
	p.mu.RLock()
	subPools := make([]*subPool, 0, len(p.subPools))
	for _, sp := range p.subPools {
		subPools = append(subPools, sp)
	}
	p.mu.RUnlock()

	var out []*WorkerProcess
	for _, sp := range subPools {
		out = append(out, sp.workersSnapshot()...)
	}
	return out
}

// FindWorker returns the process currently known to be serving
// workerID. The checkout tracker is the fast path; a linear scan over
// every worker's id history covers ids the tracker has already expired
// but that still linger in a process's recent history.
func (p *WorkerPool) FindWorker(workerID string) (*WorkerProcess, bool) {
	if w, ok := p.checkouts.Get(workerID); ok {
		return w, true
	}
	for _, w := range p.AllWorkers() {
		for _, id := range w.WorkerIDs() {
			if id == workerID {
				return w, true
			}
		}
	}
	return nil, false
}

// Shutdown drains and kills every worker in every sub-pool.
func (p *WorkerPool) Shutdown() {
	p.checkouts.Stop()

	p.mu.Lock()
	subPools := make([]*subPool, 0, len(p.subPools))
	for _, sp := range p.subPools {
		subPools = append(subPools, sp)
	}
	p.mu.Unlock()

	for _, sp := range subPools {
		sp.shutdown()
	}
}

func (p *WorkerPool) subPoolFor(key WorkerKey) *subPool {
	hash := key.Hash()

	p.mu.RLock()
	sp, ok := p.subPools[hash]
	p.mu.RUnlock()
	if ok {
		return sp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if sp, ok := p.subPools[hash]; ok {
		return sp
	}
	sp = newSubPool(key, p.minPerKey, p.maxPerKey, p.binaryPath, p.CrashHandler)
	p.subPools[hash] = sp
	return sp
}

// subPool is a single key's pool of worker processes, structured after
// the teacher's flat Pool: a slice of workers plus a buffered channel
// used as an availability semaphore.
type subPool struct {
	key WorkerKey

	mu      sync.RWMutex
	workers []*WorkerProcess

	available   chan *WorkerProcess
	min         int
	max         int
	nextID      int
	pendingAdds int
	binaryPath  string
	crashHandler func(string)
}

func newSubPool(key WorkerKey, min, max int, binaryPath string, crashHandler func(string)) *subPool {
	sp := &subPool{
		key:          key,
		workers:      make([]*WorkerProcess, 0, max),
		available:    make(chan *WorkerProcess, max),
		min:          min,
		max:          max,
		binaryPath:   binaryPath,
		crashHandler: crashHandler,
	}

	go sp.scaleLoop()
	go sp.healthCheckLoop()

	return sp
}

func (sp *subPool) ensureMin() error {
	sp.mu.Lock()
	toStart := sp.min - (len(sp.workers) + sp.pendingAdds)
	sp.mu.Unlock()

	for i := 0; i < toStart; i++ {
		if err := sp.addWorker(); err != nil {
			return err
		}
	}
	return nil
}

func (sp *subPool) acquire(ctx context.Context) (*WorkerProcess, error) {
	if len(sp.available) == 0 {
		sp.mu.RLock()
		total := len(sp.workers) + sp.pendingAdds
		sp.mu.RUnlock()
		if total < sp.max {
			go func() { _ = sp.addWorker() }()
		}
	}

	select {
	case w := <-sp.available:
		return w, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for available worker (%s): %w", sp.key.Mnemonic, ctx.Err())
	}
}

func (sp *subPool) release(w *WorkerProcess) {
	select {
	case sp.available <- w:
	default:
		log.Printf("[pool] worker %d (%s) release skipped — already available", w.ID, sp.key.Mnemonic)
	}
}

func (sp *subPool) remove(w *WorkerProcess) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for i, existing := range sp.workers {
		if existing == w {
			sp.workers = append(sp.workers[:i], sp.workers[i+1:]...)
			return
		}
	}
}

func (sp *subPool) addWorker() error {
	sp.mu.Lock()
	if len(sp.workers)+sp.pendingAdds >= sp.max {
		sp.mu.Unlock()
		return nil
	}
	id := sp.nextID
	sp.nextID++
	sp.pendingAdds++
	sp.mu.Unlock()

	w := NewWorkerProcess(id, sp.key, sp.binaryPath, sp)
	if sp.crashHandler != nil {
		w.OnCrash = sp.crashHandler
	}

	if err := w.Start(); err != nil {
		sp.mu.Lock()
		sp.pendingAdds--
		sp.mu.Unlock()
		return fmt.Errorf("failed to start worker %d (%s): %w", id, sp.key.Mnemonic, err)
	}

	sp.mu.Lock()
	sp.workers = append(sp.workers, w)
	sp.pendingAdds--
	sp.mu.Unlock()

	return nil
}

// scaleLoop removes idle workers above min after sustained idleness,
// mirroring the teacher's idle-tick debounce.
func (sp *subPool) scaleLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	idleTicks := 0
	for range ticker.C {
		sp.mu.RLock()
		count := len(sp.workers)
		sp.mu.RUnlock()

		if len(sp.available) > 0 && count > sp.min {
			idleTicks++
		} else {
			idleTicks = 0
		}

		if idleTicks >= 2 {
			sp.removeIdleWorker()
			idleTicks = 0
		}
	}
}

func (sp *subPool) removeIdleWorker() {
	select {
	case w := <-sp.available:
		sp.remove(w)
		w.Drain()
		w.Kill()
	default:
	}
}

func (sp *subPool) healthCheckLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		for _, w := range sp.workersSnapshot() {
			state := w.State()
			if state == ProcessDead || state == ProcessStarting {
				continue
			}
			if !w.HealthCheck() {
				log.Printf("[pool] worker %d (%s) failed health check (state=%s) — killing", w.ID, sp.key.Mnemonic, state)
				w.Kill()
			}
		}
	}
}

func (sp *subPool) workersSnapshot() []*WorkerProcess {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	out := make([]*WorkerProcess, len(sp.workers))
	copy(out, sp.workers)
	return out
}

// evictWithPolicy implements the pool side of spec.md §4.5/§6: it visits
// every idle worker in this sub-pool exactly once, under sp.mu, and
// destroys those for which the policy returns Destroy. A policy that
// never returns Destroy is an inspect-only sweep; one that does is the
// destructive sweep — the same iteration primitive serves both.
func (sp *subPool) evictWithPolicy(policy SweepPolicy) []string {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	idle := sp.drainIdleLocked()
	idleCount := len(idle)

	var destroyed []string
	var keep []*WorkerProcess
	for _, w := range idle {
		verdict := policy.Visit(w, idleCount)
		if verdict == Destroy {
			destroyed = append(destroyed, w.WorkerIDs()...)
			w.Drain()
			w.Kill()
			for i, existing := range sp.workers {
				if existing == w {
					sp.workers = append(sp.workers[:i], sp.workers[i+1:]...)
					break
				}
			}
		} else {
			keep = append(keep, w)
		}
	}

	for _, w := range keep {
		sp.available <- w
	}

	return destroyed
}

// drainIdleLocked empties the available channel and returns its
// contents; caller holds sp.mu.
func (sp *subPool) drainIdleLocked() []*WorkerProcess {
	var idle []*WorkerProcess
	for {
		select {
		case w := <-sp.available:
			idle = append(idle, w)
		default:
			return idle
		}
	}
}

func (sp *subPool) shutdown() {
	for _, w := range sp.workersSnapshot() {
		w.Drain()
		w.Kill()
	}
}
