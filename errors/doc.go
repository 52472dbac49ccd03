// Package errors provides standardized error handling for graft's registration
// and graph-construction paths.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// systems that build foreign-runtime graphs from declarative configuration:
// Invalid (bad input or configuration, raised at build time), NotFound (failed
// identity lookup, recoverable by the caller), and Fatal (unrecoverable,
// aborts construction).
//
// A fourth condition in the taxonomy, an unresolved capability (a dynamic
// output or pending peer that never finds a compatible match), is deliberately
// NOT an error: it is silently tolerated and surfaced through diagnostics and
// metrics instead. See the pipeline package.
//
// # Error Classification
//
//   - Invalid: missing factories, malformed extension chains, duplicate
//     aliases, conflicting directives. Construction must not proceed.
//   - NotFound: name or identity lookups that missed. Callers distinguish
//     "absent" from "broken" with this class.
//   - Fatal: failed synchronous connections and other conditions that abort
//     graph construction and tear down everything built so far.
//
// The classification integrates with Go's standard error handling, supporting
// errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if cfg.Kind == "" {
//	    return errors.ErrEmptyStage
//	}
//
// Wrap errors with context following the "component.method: action failed"
// pattern:
//
//	if err := out.Link(in); err != nil {
//	    return errors.WrapFatal(err, "Builder", "connect", "static link")
//	}
//
// Check classification at the call site:
//
//	if _, err := reg.InstanceFor(obj); err != nil {
//	    if errors.IsNotFound(err) {
//	        // instance-init has not run yet; not a crash
//	    }
//	}
//
// # Propagation Policy
//
// Construction-time errors unwind immediately and leave no partially
// registered type or partially built graph reachable by name. Asynchronous
// callback errors on the foreign runtime's execution path are never allowed
// to crash the driving goroutine; they are recovered and posted to the owning
// graph's message bus attributed to the originating stage (see foreign.Bus).
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
