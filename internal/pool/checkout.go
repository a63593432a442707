package pool

import (
	"log"
	"sync"
	"time"
)

const checkoutTTL = 5 * time.Minute

// checkoutEntry tracks a logical worker id's binding to a process and
// its last access time, for TTL expiry of abandoned checkouts.
type checkoutEntry struct {
	WorkerID     string
	Process      *WorkerProcess
	LastAccessed time.Time
}

// CheckoutTracker maps logical worker ids (checkout tokens) to the
// WorkerProcess currently serving them, expiring stale entries. This is
// the build-action analog of the teacher's session-to-worker map.
type CheckoutTracker struct {
	mu        sync.RWMutex
	checkouts map[string]*checkoutEntry
	stopOnce  sync.Once
	stopCh    chan struct{}

	// expireCallback, if set, is invoked (off the lock) with the process
	// belonging to each checkout the TTL sweeper expires, so the pool can
	// release it instead of leaving it permanently checked out.
	expireCallback func(*WorkerProcess)
}

// NewCheckoutTracker creates a tracker and starts its TTL sweeper.
// expireCallback may be nil; if set, it is called for each checkout the
// sweeper expires.
func NewCheckoutTracker(expireCallback func(*WorkerProcess)) *CheckoutTracker {
	ct := &CheckoutTracker{
		checkouts:      make(map[string]*checkoutEntry),
		stopCh:         make(chan struct{}),
		expireCallback: expireCallback,
	}
	go ct.ttlSweeper()
	return ct
}

// Add registers a new checkout mapping.
func (ct *CheckoutTracker) Add(workerID string, w *WorkerProcess) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.checkouts[workerID] = &checkoutEntry{
		WorkerID:     workerID,
		Process:      w,
		LastAccessed: time.Now(),
	}
}

// Get looks up a checkout, refreshing its last-access time.
func (ct *CheckoutTracker) Get(workerID string) (*WorkerProcess, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	entry, ok := ct.checkouts[workerID]
	if !ok {
		return nil, false
	}
	entry.LastAccessed = time.Now()
	return entry.Process, true
}

// Remove deletes a checkout mapping and returns the process it pointed
// to, if any.
func (ct *CheckoutTracker) Remove(workerID string) (*WorkerProcess, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	entry, ok := ct.checkouts[workerID]
	if !ok {
		return nil, false
	}
	delete(ct.checkouts, workerID)
	return entry.Process, true
}

// Count returns the number of tracked checkouts.
func (ct *CheckoutTracker) Count() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.checkouts)
}

// Stop halts the TTL sweeper.
func (ct *CheckoutTracker) Stop() {
	ct.stopOnce.Do(func() { close(ct.stopCh) })
}

func (ct *CheckoutTracker) ttlSweeper() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ct.expireStale()
		case <-ct.stopCh:
			return
		}
	}
}

func (ct *CheckoutTracker) expireStale() {
	ct.mu.Lock()
	var expired []*checkoutEntry
	for id, entry := range ct.checkouts {
		if time.Since(entry.LastAccessed) > checkoutTTL {
			expired = append(expired, entry)
			delete(ct.checkouts, id)
		}
	}
	ct.mu.Unlock()

	for _, entry := range expired {
		log.Printf("[pool] checkout %s expired (worker %d) — releasing", entry.WorkerID, entry.Process.ID)
		if ct.expireCallback != nil {
			ct.expireCallback(entry.Process)
		}
	}
}
