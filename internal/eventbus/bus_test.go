package eventbus

import (
	"testing"

	"github.com/steelforge/wlm/internal/wlm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PostAndReceive(t *testing.T) {
	b := New(4)
	defer b.Close()

	b.Post(wlm.WorkerEvictedEvent{WorkerID: "w1"})

	select {
	case evt := <-b.Events():
		assert.Equal(t, "w1", evt.WorkerID)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New(1)
	defer b.Close()

	b.Post(wlm.WorkerEvictedEvent{WorkerID: "first"})
	b.Post(wlm.WorkerEvictedEvent{WorkerID: "second"})

	assert.Equal(t, uint64(1), b.Dropped())
}

func TestBus_PostAfterCloseIsNoOp(t *testing.T) {
	b := New(4)
	b.Close()

	assert.NotPanics(t, func() {
		b.Post(wlm.WorkerEvictedEvent{WorkerID: "late"})
	})
}

func TestBus_DefaultBufferSizeOnNonPositive(t *testing.T) {
	b := New(0)
	defer b.Close()
	require.NotNil(t, b.Events())
}
