// Package metric provides Prometheus-based metrics collection and HTTP server
// for graft observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (graph status, bus activity, errors) and custom
// package-specific metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for package-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Fatalf("metrics server: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
// Packages register their own metrics through the registrar:
//
//	breg, err := bridge.NewRegistry(rt, registry, logger)
//	builder, err := pipeline.NewBuilder(rt, pipeline.WithMetrics(registry))
//
// # Registration Discipline
//
// Metrics register under a "component.metric" key; a second registration of
// the same key is an Invalid error rather than a panic, so a misconfigured
// caller fails its own setup instead of taking the process down. Prometheus
// AlreadyRegisteredError conflicts surface the same way.
//
// Every package-level Metrics constructor in graft accepts a nil registry and
// returns nil metrics; recording methods are nil-safe. Metrics are strictly
// optional wiring.
package metric
