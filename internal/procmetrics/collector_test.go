package procmetrics

import (
	"os"
	"testing"

	"github.com/steelforge/wlm/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVmRSSKiB_CurrentProcess(t *testing.T) {
	kib, err := readVmRSSKiB(os.Getpid())
	require.NoError(t, err)
	assert.Greater(t, kib, int64(0))
}

func TestReadVmRSSKiB_NoSuchProcess(t *testing.T) {
	_, err := readVmRSSKiB(1 << 30)
	assert.Error(t, err)
}

type fakeSource struct {
	workers []*pool.WorkerProcess
}

func (s *fakeSource) AllWorkers() []*pool.WorkerProcess { return s.workers }

func TestCollector_LiveMetrics_EmptySource(t *testing.T) {
	c := New(&fakeSource{})
	assert.Empty(t, c.LiveMetrics())
}

func TestCollector_LiveMetrics_SkipsNeverStartedWorker(t *testing.T) {
	key := pool.WorkerKey{Mnemonic: "Javac"}
	unstarted := pool.NewWorkerProcess(1, key, "/bin/true", nil)

	c := New(&fakeSource{workers: []*pool.WorkerProcess{unstarted}})
	assert.Empty(t, c.LiveMetrics())
}
