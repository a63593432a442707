// Package eventbus provides a minimal in-process, fire-and-forget
// event bus for worker-eviction notifications (spec.md §6).
package eventbus

import (
	"sync"

	"github.com/steelforge/wlm/internal/wlm"
)

const defaultBufferSize = 256

// Bus is a buffered-channel event bus. Post never blocks: a full
// buffer drops the event rather than stalling the control loop, since
// these notifications are advisory, not delivery-guaranteed (spec.md
// §6's "fire-and-forget" framing).
type Bus struct {
	mu      sync.RWMutex
	pending chan wlm.WorkerEvictedEvent
	closed  bool
	dropped uint64
}

// New builds a Bus with the given buffer size. A non-positive size
// falls back to a sane default.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{pending: make(chan wlm.WorkerEvictedEvent, bufferSize)}
}

// Post implements wlm.EventBus.
func (b *Bus) Post(event wlm.WorkerEvictedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.pending <- event:
	default:
		b.dropped++
	}
}

// Events returns the channel consumers should range over. Closed when
// Close is called.
func (b *Bus) Events() <-chan wlm.WorkerEvictedEvent {
	return b.pending
}

// Dropped reports how many events were discarded because the buffer
// was full.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close stops accepting new events and closes the channel consumers
// range over.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.pending)
}
