package wlm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusReporter exposes the control loop's counters and gauges.
// ControlLoop updates it once per tick through Observe; it is not an
// EventBus and its counters carry no labels — callers still need a
// separate Reporter for human-readable log lines.
type PrometheusReporter struct {
	residentMB      prometheus.Gauge
	workersTracked  prometheus.Gauge
	fleetEvictions  prometheus.Counter
	shrinkTagged    prometheus.Counter
	capKills        prometheus.Counter
	ticks           prometheus.Counter
}

// NewPrometheusReporter registers the WLM's metrics against reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewPrometheusReporter(reg prometheus.Registerer) *PrometheusReporter {
	factory := promauto.With(reg)
	return &PrometheusReporter{
		residentMB: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "wlm",
			Name:      "fleet_resident_mb",
			Help:      "Total resident memory across tracked worker processes, in megabytes.",
		}),
		workersTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "wlm",
			Name:      "workers_tracked",
			Help:      "Number of worker processes in the last metrics snapshot.",
		}),
		fleetEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wlm",
			Name:      "fleet_evictions_total",
			Help:      "Logical worker ids of processes destroyed to satisfy the fleet memory cap.",
		}),
		shrinkTagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wlm",
			Name:      "shrink_tagged_total",
			Help:      "Logical worker ids of processes tagged PENDING_KILL by the shrink step.",
		}),
		capKills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wlm",
			Name:      "per_worker_cap_kills_total",
			Help:      "Worker processes killed for exceeding the per-worker memory cap.",
		}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wlm",
			Name:      "ticks_total",
			Help:      "Control loop ticks executed.",
		}),
	}
}

// Observe records one tick's outcome. Called by ControlLoop after
// running the fleet and per-worker passes.
func (p *PrometheusReporter) Observe(metrics []WorkerProcessMetrics, fleetResult *FleetEvictionResult, killedByCap int) {
	p.ticks.Inc()
	p.workersTracked.Set(float64(len(metrics)))
	p.residentMB.Set(float64(aggregateUsageMB(metrics)))
	if fleetResult != nil {
		p.fleetEvictions.Add(float64(len(fleetResult.DestroyedWorkerIDs)))
		p.shrinkTagged.Add(float64(len(fleetResult.ShrinkTaggedIDs)))
	}
	p.capKills.Add(float64(killedByCap))
}
