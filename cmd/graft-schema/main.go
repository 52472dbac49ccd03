// Command graft-schema exports the machine-readable descriptions of a graft
// installation: the pipeline document schema and one descriptor per
// registered element kind. Editors and document generators consume the
// output; CI compares it against committed artifacts to catch drift.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/c360/graft/bridge"
	"github.com/c360/graft/config"
	"github.com/c360/graft/foreign"
	"github.com/c360/graft/kinds"
	"github.com/c360/graft/metric"
)

func main() {
	outDir := flag.String("out", "./schemas", "Output directory for schemas and kind descriptors")
	flag.Parse()

	log.Printf("Schema Exporter")
	log.Printf("  Output dir: %s", *outDir)

	if err := export(*outDir); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
}

func export(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// The document schema ships embedded; write it out verbatim.
	schemaPath := filepath.Join(outDir, "pipeline-document.v1.json")
	if err := os.WriteFile(schemaPath, config.DocumentSchema(), 0o644); err != nil {
		return fmt.Errorf("write document schema: %w", err)
	}
	log.Printf("  ✓ Generated: %s", schemaPath)

	// Register the built-in catalog and describe every kind.
	rt := foreign.NewRuntime()
	breg, err := bridge.NewRegistry(rt, metric.NewMetricsRegistry(), nil)
	if err != nil {
		return fmt.Errorf("create bridge registry: %w", err)
	}
	if err := kinds.Register(rt, breg); err != nil {
		return fmt.Errorf("register kinds: %w", err)
	}

	names := rt.Kinds()
	log.Printf("Found %d element kinds", len(names))
	for _, name := range names {
		kind, err := rt.LookupKind(name)
		if err != nil {
			return fmt.Errorf("look up kind %s: %w", name, err)
		}

		outFile := filepath.Join(outDir, fmt.Sprintf("kind.%s.v1.json", name))
		if err := writeDescriptor(outFile, describeKind(kind)); err != nil {
			return fmt.Errorf("write descriptor for %s: %w", name, err)
		}
		log.Printf("  ✓ Generated: %s", outFile)
	}
	return nil
}

func writeDescriptor(path string, desc KindDescriptor) error {
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
