// Package bridge registers managed Go types into the foreign
// reference-counted object system so the foreign runtime can instantiate
// and drive them without knowing anything about Go's memory model.
//
// # Overview
//
// A managed type enters the foreign system through Registry.RegisterType:
// the registry resolves the type's extension chain, allocates foreign class
// metadata sized per the chain's declarations, and installs lifecycle
// callbacks that keep a managed instance pinned behind every foreign
// object. Registration is idempotent per name and serialized through a
// per-name critical section, so the foreign system never sees two competing
// registrations for one name.
//
// # Selective Behavior Installation
//
// There is no language-level subclassing across the boundary. Instead, the
// foreign class's dispatch table is populated member by member based on
// capability checks against the implementation prototype:
//
//	PropertyGetter   - answers property reads
//	PropertySetter   - accepts property writes
//	PostConstructor  - notified after each instance is constructed
//	ClassInitializer - finishes class setup, e.g. declares properties
//
// A behavior the implementation does not provide is simply never installed,
// leaving the slot to resolve through the foreign parent chain. Installed
// trampolines recover the exact managed instance for the called object
// through the handle table, so concurrent calls against different instances
// of one type never share state.
//
// # Instance Lifecycle
//
// On instance-init the registry mints a fresh managed object from the
// type's factory and stores its handle token in the foreign instance's
// reserved slot. On finalize the token is removed from the handle table,
// releasing the managed object for reclamation. Finalize runs exactly once
// per instance; querying an object before its instance-init completed
// answers an explicit not-yet-initialized error rather than crashing.
//
// # Quick Start
//
//	rt := foreign.NewRuntime()
//	reg, err := bridge.NewRegistry(rt, metricsRegistry, logger)
//	if err != nil {
//		return err
//	}
//
//	class, err := reg.RegisterType(bridge.TypeConfig{
//		Name: "managed/widget",
//		Impl: &Widget{},
//		Interfaces: []bridge.InterfaceBinding{
//			{Name: "paintable", Init: bindPaintable},
//		},
//	})
//	if err != nil {
//		return err
//	}
//
//	obj, err := rt.NewObject(class)
//	// the foreign object now drives a fresh *Widget
package bridge
