package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
	"github.com/c360/graft/metric"
)

// Builder assembles pipelines on a foreign runtime.
type Builder struct {
	runtime  *foreign.Runtime
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *Metrics
	policy   UnmatchedPolicy
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for the builder and its pipelines.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(b *Builder) {
		b.registry = registry
	}
}

// WithUnmatchedPolicy sets how leftovers from dynamic-output resolution are
// reported.
func WithUnmatchedPolicy(policy UnmatchedPolicy) Option {
	return func(b *Builder) {
		b.policy = policy
	}
}

// NewBuilder creates a pipeline builder bound to a foreign runtime.
func NewBuilder(rt *foreign.Runtime, opts ...Option) (*Builder, error) {
	if rt == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("foreign runtime is required"),
			"Builder", "NewBuilder", "validate dependencies")
	}
	b := &Builder{
		runtime: rt,
		logger:  slog.Default(),
		policy:  UnmatchedSilent,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "pipeline.builder")
	b.metrics = newMetrics(b.registry)
	return b, nil
}

// Build validates the spec and assembles its graph. Static connections
// complete before Build returns; connections behind dynamic-output stages
// complete asynchronously after the pipeline starts. On any error every
// element created so far is released and no pipeline is returned.
//
// Build mutates the spec's recorded build state. Building the same spec
// again starts from a clean slate and produces a fresh graph.
func (b *Builder) Build(spec *Spec) (*Pipeline, error) {
	start := time.Now()
	if spec == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("pipeline spec is required"),
			"Builder", "Build", "validate spec")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.reset()

	name := spec.Name
	if name == "" {
		name = "pipeline"
	}
	p := &Pipeline{
		spec:    spec,
		graph:   b.runtime.NewGraph(name),
		runtime: b.runtime,
		logger:  b.logger.With("pipeline", name),
		metrics: b.metrics,
		policy:  b.policy,
	}

	if err := p.build(); err != nil {
		p.graph.Release()
		b.logger.Error("pipeline build failed",
			"pipeline", name,
			"error", err)
		return nil, err
	}

	if b.metrics != nil {
		b.metrics.buildDuration.Observe(time.Since(start).Seconds())
	}
	diags := p.Diagnostics()
	b.logger.Info("pipeline built",
		"pipeline", name,
		"stages", p.graph.ElementCount(),
		"connections", len(diags.Connections))
	return p, nil
}
