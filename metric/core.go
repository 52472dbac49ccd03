package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains platform-level metrics shared across graphs. Package-level
// metrics (bridge registrations, linker activity) live with their packages.
type Metrics struct {
	// GraphStatus tracks graph lifecycle per graph name
	// (0=created, 1=starting, 2=running, 3=stopping, 4=stopped)
	GraphStatus *prometheus.GaugeVec

	// BusMessages counts messages drained from graph buses by severity
	BusMessages *prometheus.CounterVec

	// BusDropped counts bus messages dropped due to a full queue
	BusDropped *prometheus.CounterVec

	// ErrorsTotal counts errors by component and class
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		GraphStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "graft",
				Subsystem: "graph",
				Name:      "status",
				Help:      "Graph status (0=created, 1=starting, 2=running, 3=stopping, 4=stopped)",
			},
			[]string{"graph"},
		),

		BusMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graft",
				Subsystem: "bus",
				Name:      "messages_total",
				Help:      "Total number of bus messages drained, by severity",
			},
			[]string{"graph", "severity"},
		),

		BusDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graft",
				Subsystem: "bus",
				Name:      "dropped_total",
				Help:      "Total number of bus messages dropped on overflow",
			},
			[]string{"graph"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graft",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),
	}
}

// RecordGraphStatus updates the graph status metric
func (c *Metrics) RecordGraphStatus(graph string, status int) {
	c.GraphStatus.WithLabelValues(graph).Set(float64(status))
}

// RecordBusMessage increments the drained bus message counter
func (c *Metrics) RecordBusMessage(graph, severity string) {
	c.BusMessages.WithLabelValues(graph, severity).Inc()
}

// RecordBusDropped increments the dropped bus message counter
func (c *Metrics) RecordBusDropped(graph string) {
	c.BusDropped.WithLabelValues(graph).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}
