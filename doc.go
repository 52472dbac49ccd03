// Package graft provides a foreign-type bridge and a dynamic pipeline
// linker: Go implementations registered as first-class types in a
// refcounted object system, assembled into processing graphs whose
// topology completes itself at runtime.
//
// # Philosophy: Two Independent Halves
//
// graft is a framework with two halves that meet at the element graph:
//
// Half 1 - Foreign-Type Bridge (type system plumbing):
//   - Classes: single-inheritance chains over a universal base
//   - Objects: refcounted instances with exactly-once finalization
//   - Bridge: managed Go implementations projected into the class system
//   - Capabilities: property access and construction hooks installed
//     selectively, only for what an implementation actually provides
//
// Half 2 - Dynamic Pipeline Linker (graph assembly):
//   - Documents: declarative JSON/YAML pipeline descriptions
//   - Walk: a cursor over stage entries with go_to and link_to directives
//   - Static links: connected synchronously during the build, failures fatal
//   - Deferred links: downstream stages wait for outputs their upstream
//     only exposes once it has seen data
//
// graft MUST NOT contain:
//   - Domain-specific element kinds (codecs, device drivers, protocol stacks)
//   - A data plane; elements are topology, transport belongs to callers
//   - Assumptions about what streams carry
//
// Domain catalogs belong in separate modules that register their kinds on
// the runtime next to the built-in ones.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        Pipeline Builder             │  document walk,
//	│   (resolve, instantiate, link)      │  deferred resolution
//	└─────────────────────────────────────┘
//	           ↓ assembles
//	┌─────────────────────────────────────┐
//	│         Element Graph               │  elements, ports,
//	│    (start, discover, stop)          │  message bus
//	└─────────────────────────────────────┘
//	           ↓ instances of
//	┌──────────────────┬──────────────────┐
//	│  Native kinds    │  Managed types   │  classes, objects,
//	│  (class system)  │  (via bridge)    │  refcounts, handles
//	└──────────────────┴──────────────────┘
//
// # The Walk
//
// A pipeline document is an ordered list of stage entries. The builder
// keeps a cursor on the most recent element and extends it entry by entry;
// two directives reshape the path without changing declaration order:
//
//	[source] → [go_to source, decode "d"] → [go_to d, queue "queueA"]
//	         → [link_to mux] → [go_to d, queue "queueB"] → [mux "mux"] → [sink]
//
// builds the diamond
//
//	            ┌─────────┐
//	            │ decode  │  dynamic outputs
//	            └──┬───┬──┘
//	     (deferred)│   │(deferred)
//	          ┌────┘   └────┐
//	          ↓             ↓
//	     ┌────────┐    ┌────────┐
//	     │ queueA │    │ queueB │
//	     └───┬────┘    └───┬────┘
//	         └─────┬───────┘
//	               ↓
//	            ┌─────┐
//	            │ mux │ → sink
//	            └─────┘
//
// go_to moves the cursor to an already-declared alias; link_to connects the
// cursor to an alias declared anywhere in the document, instantiating it
// early on first reference. Referring to an alias never creates a second
// element.
//
// # Deferred Resolution
//
// Elements that cannot know their outputs until runtime (demuxers, format
// sniffers) declare dynamic outputs. Downstream stages connect to them by
// entering a pending list instead of failing the build. When the element
// signals that no more outputs will appear, pending peers are matched
// first-compatible-wins in declaration order; whatever stays unmatched is
// reported through diagnostics and the graph bus, never as an error. An
// incomplete topology is a data-dependent outcome, not a configuration
// mistake.
//
// # Framework Packages
//
// Type system:
//   - foreign: classes, refcounted objects, elements, ports, graphs
//   - bridge: managed type registration, capability trampolines, handles
//
// Assembly:
//   - pipeline: document model, walk, deferred resolution, diagnostics
//   - config: document loading, schema validation, property helpers
//   - kinds: the built-in element catalog
//
// Infrastructure:
//   - errors: classified errors (invalid, not found, fatal)
//   - metric: Prometheus registry and core metrics
//
// Binaries:
//   - cmd/graft: pipeline runner with metrics and health endpoints
//   - cmd/graft-schema: document schema and kind descriptor exporter
package graft
