package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/graft/metric"
)

// Metrics holds pipeline-specific Prometheus metrics
type Metrics struct {
	stagesInstantiated prometheus.Counter
	linksStatic        prometheus.Counter
	linksDeferred      prometheus.Counter
	pendingResolved    prometheus.Counter
	pendingUnresolved  prometheus.Counter
	outputsDangling    prometheus.Counter
	buildDuration      prometheus.Histogram
}

// newMetrics creates and registers pipeline metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		stagesInstantiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "pipeline",
			Name:      "stages_instantiated_total",
			Help:      "Stage elements created by pipeline builds",
		}),
		linksStatic: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "pipeline",
			Name:      "links_static_total",
			Help:      "Connections made synchronously at build time",
		}),
		linksDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "pipeline",
			Name:      "links_deferred_total",
			Help:      "Connections deferred behind a dynamic-output stage",
		}),
		pendingResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "pipeline",
			Name:      "pending_resolved_total",
			Help:      "Pending peers connected when dynamic outputs appeared",
		}),
		pendingUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "pipeline",
			Name:      "pending_unresolved_total",
			Help:      "Pending peers left unconnected after dynamic output discovery",
		}),
		outputsDangling: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "pipeline",
			Name:      "outputs_dangling_total",
			Help:      "Dynamic outputs that found no compatible pending peer",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "graft",
			Subsystem: "pipeline",
			Name:      "build_duration_seconds",
			Help:      "Time spent building pipelines",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.RegisterCounter("pipeline", "stages_instantiated", metrics.stagesInstantiated)
	registry.RegisterCounter("pipeline", "links_static", metrics.linksStatic)
	registry.RegisterCounter("pipeline", "links_deferred", metrics.linksDeferred)
	registry.RegisterCounter("pipeline", "pending_resolved", metrics.pendingResolved)
	registry.RegisterCounter("pipeline", "pending_unresolved", metrics.pendingUnresolved)
	registry.RegisterCounter("pipeline", "outputs_dangling", metrics.outputsDangling)
	registry.RegisterHistogram("pipeline", "build_duration", metrics.buildDuration)

	return metrics
}
