// Package main implements the entry point for the graft pipeline runner.
// graft assembles element graphs from declarative pipeline documents,
// completing the topology at runtime as elements discover their outputs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/graft/bridge"
	"github.com/c360/graft/config"
	"github.com/c360/graft/foreign"
	"github.com/c360/graft/kinds"
	"github.com/c360/graft/metric"
	"github.com/c360/graft/pipeline"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "graft"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate the pipeline document
	doc, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load pipeline document: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Pipeline document is valid",
			"pipeline", doc.Pipeline.Name,
			"stages", len(doc.Pipeline.Stages))
		return nil
	}

	// Set up the runtime, the bridge, and the element catalog
	metricsRegistry := metric.NewMetricsRegistry()
	rt := foreign.NewRuntime(
		foreign.WithLogger(logger),
		foreign.WithMetrics(metricsRegistry.CoreMetrics()),
	)

	bridgeRegistry, err := bridge.NewRegistry(rt, metricsRegistry, logger)
	if err != nil {
		return fmt.Errorf("create bridge registry: %w", err)
	}
	if err := kinds.Register(rt, bridgeRegistry); err != nil {
		return fmt.Errorf("register element kinds: %w", err)
	}
	slog.Info("element kinds registered", "kinds", rt.Kinds())

	// Assemble the pipeline
	policy, ok := pipeline.ParseUnmatchedPolicy(cliCfg.Unmatched)
	if !ok {
		return fmt.Errorf("unknown unmatched policy %q", cliCfg.Unmatched)
	}
	builder, err := pipeline.NewBuilder(rt,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metricsRegistry),
		pipeline.WithUnmatchedPolicy(policy),
	)
	if err != nil {
		return fmt.Errorf("create pipeline builder: %w", err)
	}

	p, err := builder.Build(&doc.Pipeline)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	// Run until signalled
	return runWithSignalHandling(p, metricsRegistry, cliCfg)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting graft (dynamic pipeline assembly)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// runWithSignalHandling starts the pipeline and drives it until a shutdown
// signal arrives, serving metrics and draining the graph bus meanwhile.
func runWithSignalHandling(p *pipeline.Pipeline, registry *metric.MetricsRegistry, cliCfg *CLIConfig) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	group, groupCtx := errgroup.WithContext(signalCtx)

	var metricsServer *http.Server
	if cliCfg.MetricsPort > 0 {
		metricsServer = newMetricsServer(cliCfg.MetricsPort, registry, p)
		group.Go(func() error {
			slog.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// Surface graph messages as log records. The loop ends when the bus
	// closes during shutdown.
	bus := p.Graph().Bus()
	group.Go(func() error {
		drainBus(bus)
		return nil
	})

	if err := p.Start(signalCtx); err != nil {
		bus.Close()
		shutdownMetricsServer(metricsServer)
		_ = group.Wait()
		return fmt.Errorf("start pipeline: %w", err)
	}
	slog.Info("graft started successfully (pipeline running)",
		"pipeline", p.Spec().Name,
		"elements", p.Graph().ElementCount())

	<-groupCtx.Done()
	slog.Info("Received shutdown signal")

	stopErr := p.Stop(cliCfg.ShutdownTimeout)
	if stopErr != nil {
		slog.Error("Error stopping pipeline", "error", stopErr)
	}
	// Unblocks the drain goroutine if a timed-out stop left the bus open.
	bus.Close()

	reportDiagnostics(p.Diagnostics())

	shutdownMetricsServer(metricsServer)
	if err := group.Wait(); err != nil {
		return err
	}
	if stopErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", stopErr)
	}

	slog.Info("graft shutdown complete")
	return nil
}

// newMetricsServer builds the observability endpoint: Prometheus scrapes
// and a readiness probe reporting the graph state.
func newMetricsServer(port int, registry *metric.MetricsRegistry, p *pipeline.Pipeline) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metric.Handler(registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		state := p.Graph().State()
		status := http.StatusOK
		if state != foreign.StateRunning {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   state.String(),
			"pipeline": p.Spec().Name,
			"elements": p.Graph().ElementCount(),
		})
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown", "error", err)
	}
}

// drainBus logs every message the graph posts until the bus closes.
func drainBus(bus *foreign.Bus) {
	for msg := range bus.Messages() {
		switch msg.Severity {
		case foreign.SeverityError:
			slog.Error("graph message", "source", msg.Source, "text", msg.Text, "error", msg.Err)
		case foreign.SeverityWarning:
			slog.Warn("graph message", "source", msg.Source, "text", msg.Text)
		default:
			slog.Info("graph message", "source", msg.Source, "text", msg.Text)
		}
	}
}

// reportDiagnostics summarizes what the build and runtime resolution
// produced, including anything resolution left unconnected.
func reportDiagnostics(diags pipeline.Diagnostics) {
	deferred := 0
	for _, conn := range diags.Connections {
		if conn.Deferred {
			deferred++
		}
	}
	slog.Info("pipeline diagnostics",
		"connections", len(diags.Connections),
		"deferred", deferred,
		"unresolved_peers", len(diags.UnresolvedPeers),
		"dangling_outputs", len(diags.DanglingOutputs))

	for _, peer := range diags.UnresolvedPeers {
		slog.Warn("stage never connected",
			"upstream", peer.Upstream,
			"peer", peer.Peer,
			"reason", peer.Reason)
	}
	for _, out := range diags.DanglingOutputs {
		slog.Warn("dynamic output never connected",
			"element", out.Element,
			"port", out.Port,
			"contract", out.Contract)
	}
}
