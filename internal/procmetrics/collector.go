// Package procmetrics reads live memory usage for worker processes
// directly from /proc, the same way a build system would observe its
// own worker fleet on Linux.
package procmetrics

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/steelforge/wlm/internal/pool"
	"github.com/steelforge/wlm/internal/wlm"
)

// WorkerSource enumerates the processes currently tracked by the
// pool. Satisfied by *pool.WorkerPool.
type WorkerSource interface {
	AllWorkers() []*pool.WorkerProcess
}

// Collector implements wlm.MetricsCollector by reading
// /proc/[pid]/status VmRSS for every process the pool currently
// tracks. A process that has exited since the pool last observed it
// (status file gone) is silently omitted from the snapshot — the next
// tick's pool state will reflect the exit.
type Collector struct {
	source WorkerSource
}

// New builds a Collector over source.
func New(source WorkerSource) *Collector {
	return &Collector{source: source}
}

// LiveMetrics implements wlm.MetricsCollector.
func (c *Collector) LiveMetrics() []wlm.WorkerProcessMetrics {
	workers := c.source.AllWorkers()
	out := make([]wlm.WorkerProcessMetrics, 0, len(workers))
	for _, w := range workers {
		pid := w.PID()
		if pid <= 0 {
			continue
		}
		kib, err := readVmRSSKiB(pid)
		if err != nil {
			continue
		}
		key := w.Key()
		out = append(out, wlm.WorkerProcessMetrics{
			PID:           pid,
			WorkerKeyHash: key.Hash(),
			Mnemonic:      key.Mnemonic,
			WorkerIDs:     w.WorkerIDs(),
			ResidentKiB:   kib,
			Status:        w.Status(),
		})
	}
	return out
}

// readVmRSSKiB reads the VmRSS line out of /proc/[pid]/status,
// returning resident memory in KiB.
func readVmRSSKiB(pid int) (int64, error) {
	statusPath := filepath.Join("/proc", strconv.Itoa(pid), "status")
	f, err := os.Open(statusPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed VmRSS line for pid %d", pid)
		}
		kib, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse VmRSS for pid %d: %w", pid, err)
		}
		return kib, nil
	}
	return 0, fmt.Errorf("no VmRSS line for pid %d", pid)
}
