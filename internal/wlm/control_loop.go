package wlm

import (
	"context"
	"fmt"
	"time"
)

// ControlLoopConfig mirrors internal/config.WLMConfig, kept as its own
// type so this package never imports internal/config (spec.md §6).
type ControlLoopConfig struct {
	TotalWorkerMemoryLimitMB int64
	WorkerMemoryLimitMB      int64
	PollInterval             time.Duration
	ShrinkWorkerPool         bool
	Verbose                  bool
}

// ControlLoop is the WLM's main loop (spec.md §4.1): once per
// PollInterval, it collects a fresh metrics snapshot, runs the
// fleet-cap pipeline (§4.2) and the per-worker-cap pass (§4.3), and
// reports a usage summary.
type ControlLoop struct {
	cfg       ControlLoopConfig
	collector MetricsCollector
	fleet     *FleetPipeline
	killer    *SingleWorkerKiller
	reporter  Reporter
	promo     *PrometheusReporter

	tickCount int64
}

// NewControlLoop wires the pipeline. pool and locator back the fleet
// and per-worker passes respectively; reporter, bus and promo may all
// be nil.
func NewControlLoop(cfg ControlLoopConfig, collector MetricsCollector, p Pool, locator ProcessLocator, reporter Reporter, bus EventBus, promo *PrometheusReporter) *ControlLoop {
	return &ControlLoop{
		cfg:       cfg,
		collector: collector,
		fleet:     NewFleetPipeline(p, reporter, bus, cfg.ShrinkWorkerPool),
		killer:    NewSingleWorkerKiller(locator, reporter, bus),
		reporter:  reporter,
		promo:     promo,
	}
}

// Run blocks, ticking every PollInterval until ctx is cancelled. It
// never returns an error: a tick that fails to fully enforce the
// budget is logged and retried next tick, per spec.md §4.1's
// best-effort framing.
func (c *ControlLoop) Run(ctx context.Context) {
	interval := c.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick runs a single iteration of the control loop. Exported so tests
// and callers needing deterministic stepping don't have to drive a
// real ticker. With both caps at zero it does nothing.
func (c *ControlLoop) Tick() {
	if c.cfg.TotalWorkerMemoryLimitMB <= 0 && c.cfg.WorkerMemoryLimitMB <= 0 {
		return
	}
	c.tickCount++
	metrics := c.collector.LiveMetrics()

	var fleetResult *FleetEvictionResult
	if c.cfg.TotalWorkerMemoryLimitMB > 0 {
		fleetResult = c.fleet.Run(metrics, c.cfg.TotalWorkerMemoryLimitMB)
	}

	killedByCap := 0
	if c.cfg.WorkerMemoryLimitMB > 0 {
		// Per-worker kills act on this tick's original snapshot: a
		// process the fleet pass just destroyed is absent from a
		// re-collected snapshot, but reusing the same slice here is
		// safe because killOne tolerates a vanished pid (ProcessLocator
		// miss is treated as already-gone, not an error).
		killedByCap = c.killer.KillOverLimit(metrics, c.cfg.WorkerMemoryLimitMB)
	}

	if c.promo != nil {
		c.promo.Observe(metrics, fleetResult, killedByCap)
	}

	c.reportSummary(metrics, fleetResult, killedByCap)
}

func (c *ControlLoop) reportSummary(metrics []WorkerProcessMetrics, fleetResult *FleetEvictionResult, killedByCap int) {
	if c.reporter == nil || !c.cfg.Verbose {
		return
	}
	usage := aggregateUsageMB(metrics)
	msg := fmt.Sprintf("wlm tick: %d workers, %dMB resident", len(metrics), usage)
	if fleetResult != nil && len(fleetResult.DestroyedWorkerIDs) > 0 {
		msg += fmt.Sprintf(", %d evicted for fleet cap", len(fleetResult.DestroyedWorkerIDs))
	}
	if fleetResult != nil && len(fleetResult.ShrinkTaggedIDs) > 0 {
		msg += fmt.Sprintf(", %d tagged for shrink", len(fleetResult.ShrinkTaggedIDs))
	}
	if killedByCap > 0 {
		msg += fmt.Sprintf(", %d killed for per-worker cap", killedByCap)
	}
	c.reporter.Info(msg)
}
