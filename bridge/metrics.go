package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/graft/metric"
)

// Metrics holds bridge-specific Prometheus metrics
type Metrics struct {
	typesRegistered      prometheus.Counter
	registrationHits     prometheus.Counter
	registrationFailures prometheus.Counter
	instancesLive        prometheus.Gauge
}

// newMetrics creates and registers bridge metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		typesRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "bridge",
			Name:      "types_registered_total",
			Help:      "Types registered into the foreign system",
		}),
		registrationHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "bridge",
			Name:      "registration_hits_total",
			Help:      "Registrations answered from the cache",
		}),
		registrationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "bridge",
			Name:      "registration_failures_total",
			Help:      "Registrations rejected at validation or class init",
		}),
		instancesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graft",
			Subsystem: "bridge",
			Name:      "instances_live",
			Help:      "Managed instances currently pinned in the handle table",
		}),
	}

	registry.RegisterCounter("bridge", "types_registered", metrics.typesRegistered)
	registry.RegisterCounter("bridge", "registration_hits", metrics.registrationHits)
	registry.RegisterCounter("bridge", "registration_failures", metrics.registrationFailures)
	registry.RegisterGauge("bridge", "instances_live", metrics.instancesLive)

	return metrics
}
