// Package foreign implements the reference-counted object runtime that the
// bridge and pipeline packages target: typed classes with single
// inheritance, dispatch-table method resolution, element kinds with static
// and dynamic ports, and graphs that drive dynamic elements on their own
// goroutines.
//
// # Overview
//
// The runtime models an object system in the C tradition. A Class carries
// identity, a parent pointer, allocation size hints, a dispatch table, and
// declared properties; classes form chains terminating at the universal base
// class that every Runtime owns. An Object is an instance with an atomic
// reference count that starts at one. Dispatch slots left nil on a class
// resolve through the parent chain, so the base class answers property reads
// and writes from the object's own store unless a derived class overrides
// them.
//
// # Class Registration Pattern
//
// Classes are registered EXPLICITLY against a Runtime rather than through
// package init(). This provides:
//   - Testability: each test creates an isolated runtime
//   - Explicitness: the class chain is visible at the registration site
//   - No side effects: no global state touched during package initialization
//
// Registration flow:
//
//  1. Build a ClassSpec naming the class, its parent, and its callbacks
//  2. RegisterClass allocates the metadata and runs ClassInit exactly once
//  3. The class is sealed; installation methods now fail
//  4. NewObject runs the instance-init chain base-to-derived, then the
//     nearest constructed hook, before returning the instance
//
// # Lifecycle Guarantees
//
// The runtime upholds the callback ordering the bridge depends on:
//   - ClassInit runs once per class, before any instance exists
//   - InstanceInit runs once per object, before any other callback sees it
//   - Finalize runs exactly once, when the last reference drops, never
//     before InstanceInit completed
//   - SignalNoMorePorts fires an element's completion callbacks exactly
//     once; late registrations are invoked immediately
//
// # Elements and Graphs
//
// ElementKind is the factory blueprint for pipeline stages: a backing
// class, fixed port declarations, and optionally a Discover function for
// kinds whose outputs only exist at runtime. Runtime.NewElement instantiates
// a kind, applies properties through the dispatch table, and assigns a
// process-unique "<kind>-<n>" name.
//
// A Graph collects elements and, on Start, spawns one driver goroutine per
// dynamic-output element inside an errgroup. Each driver runs Discover,
// exposes the resulting ports, recovers panics onto the graph bus, and
// always signals no-more-ports. Stop cancels the drivers and waits with a
// timeout. The Bus never blocks a driver: messages beyond its buffer are
// dropped, counted, and reported through rate-limited warnings.
package foreign
