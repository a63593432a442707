package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutTracker_AddGetRemove(t *testing.T) {
	ct := NewCheckoutTracker(nil)
	defer ct.Stop()

	w := &WorkerProcess{ID: 1, status: NewStatus()}
	ct.Add("worker-1", w)

	got, ok := ct.Get("worker-1")
	require.True(t, ok)
	assert.Same(t, w, got)
	assert.Equal(t, 1, ct.Count())

	removed, ok := ct.Remove("worker-1")
	require.True(t, ok)
	assert.Same(t, w, removed)
	assert.Equal(t, 0, ct.Count())
}

func TestCheckoutTracker_GetMissing(t *testing.T) {
	ct := NewCheckoutTracker(nil)
	defer ct.Stop()

	_, ok := ct.Get("nope")
	assert.False(t, ok)
}

func TestCheckoutTracker_ExpireStale_InvokesCallback(t *testing.T) {
	var released *WorkerProcess
	ct := &CheckoutTracker{
		checkouts:      make(map[string]*checkoutEntry),
		stopCh:         make(chan struct{}),
		expireCallback: func(w *WorkerProcess) { released = w },
	}

	w := &WorkerProcess{ID: 2, status: NewStatus()}
	ct.checkouts["stale"] = &checkoutEntry{
		WorkerID:     "stale",
		Process:      w,
		LastAccessed: time.Now().Add(-checkoutTTL - time.Minute),
	}

	ct.expireStale()

	assert.Same(t, w, released)
	assert.Equal(t, 0, ct.Count())
}

func TestCheckoutTracker_ExpireStale_KeepsFreshEntries(t *testing.T) {
	ct := NewCheckoutTracker(nil)
	defer ct.Stop()

	w := &WorkerProcess{ID: 3, status: NewStatus()}
	ct.Add("fresh", w)

	ct.expireStale()

	assert.Equal(t, 1, ct.Count())
}
