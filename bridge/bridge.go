package bridge

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
	"github.com/c360/graft/metric"
)

// InterfaceBinding declares one orthogonal capability a registered type
// claims. Init, when set, runs during class initialization with the new
// class and the implementation prototype, after the implementation's own
// class setup.
type InterfaceBinding struct {
	Name string
	Init func(class *foreign.Class, impl Implementation) error
}

// TypeConfig is the registration input for one managed type.
type TypeConfig struct {
	// Name is the process-unique type name.
	Name string

	// Impl is the managed implementation prototype. It must satisfy
	// Implementation; a value without the factory method is rejected at
	// registration time.
	Impl any

	// Extends selects the base-capability chain. Nil means a plain object
	// type rooted at ObjectExtension.
	Extends *Extension

	// Interfaces lists capability bindings, at most one per capability name.
	Interfaces []InterfaceBinding
}

// registration is the per-name record. Its mutex is the single critical
// section the idempotence guarantee requires: concurrent registrations of
// one name serialize here while other names proceed independently. The
// done and class fields are written holding both this mutex and the
// registry mutex, so either lock is enough to read them.
type registration struct {
	mu    sync.Mutex
	done  bool
	class *foreign.Class
	proto Implementation
}

// Registry owns every association the foreign system needs to instantiate
// managed types: name to class handle, foreign class identity to factory,
// and instance token to live managed object. Registries are explicitly
// constructed and test-resettable; there is no package-level state.
type Registry struct {
	runtime *foreign.Runtime
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	entries map[string]*registration
	byClass map[foreign.ClassID]*registration

	handles *handleTable
}

// NewRegistry creates a bridge registry bound to a foreign runtime.
func NewRegistry(rt *foreign.Runtime, metricsRegistry *metric.MetricsRegistry, logger *slog.Logger) (*Registry, error) {
	if rt == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("foreign runtime is required"),
			"Registry", "NewRegistry", "validate dependencies")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		runtime: rt,
		logger:  logger.With("component", "bridge.registry"),
		metrics: newMetrics(metricsRegistry),
		entries: make(map[string]*registration),
		byClass: make(map[foreign.ClassID]*registration),
		handles: newHandleTable(),
	}, nil
}

// Runtime returns the foreign runtime this registry targets.
func (r *Registry) Runtime() *foreign.Runtime { return r.runtime }

// RegisterType makes a managed type instantiable by the foreign system and
// returns its class handle.
//
// Registration is idempotent: a name registered before returns the cached
// handle with no further side effects. Concurrent calls for the same name
// serialize on a per-name critical section; a failed attempt removes the
// name entirely so nothing half-registered stays reachable.
func (r *Registry) RegisterType(cfg TypeConfig) (*foreign.Class, error) {
	if cfg.Name == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("type name is required"),
			"Registry", "RegisterType", "validate config")
	}
	proto, ok := cfg.Impl.(Implementation)
	if !ok || proto == nil {
		r.countFailure()
		return nil, errors.WrapInvalid(
			fmt.Errorf("type %q: %w", cfg.Name, errors.ErrMissingFactory),
			"Registry", "RegisterType", "validate implementation")
	}
	if err := validateBindings(cfg.Name, cfg.Interfaces); err != nil {
		r.countFailure()
		return nil, err
	}

	ent := r.claimEntry(cfg.Name)
	defer ent.mu.Unlock()

	if ent.done {
		if r.metrics != nil {
			r.metrics.registrationHits.Inc()
		}
		return ent.class, nil
	}
	ent.proto = proto

	class, err := r.registerClass(cfg, proto)
	if err != nil {
		r.mu.Lock()
		delete(r.entries, cfg.Name)
		r.mu.Unlock()
		r.countFailure()
		return nil, err
	}

	r.mu.Lock()
	r.byClass[class.ID()] = ent
	ent.class = class
	ent.done = true
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.typesRegistered.Inc()
	}
	r.logger.Info("type registered",
		"type", cfg.Name,
		"base", class.Parent().Name(),
		"interfaces", len(cfg.Interfaces))
	return class, nil
}

// claimEntry returns the per-name record with its mutex held, creating it
// when absent. A record observed after a failed attempt removed it from the
// map is abandoned and claimed again.
func (r *Registry) claimEntry(name string) *registration {
	for {
		r.mu.Lock()
		ent, ok := r.entries[name]
		if !ok {
			ent = &registration{}
			r.entries[name] = ent
		}
		r.mu.Unlock()

		ent.mu.Lock()
		r.mu.Lock()
		current := r.entries[name]
		r.mu.Unlock()
		if current == ent {
			return ent
		}
		ent.mu.Unlock()
	}
}

// registerClass drives the foreign-side registration: resolve the extension
// chain, then hand the runtime a class spec whose callbacks run the chain
// root-first, the implementation's own class setup, the interface bindings,
// and the instance lifecycle against the handle table.
func (r *Registry) registerClass(cfg TypeConfig, proto Implementation) (*foreign.Class, error) {
	ext := cfg.Extends
	if ext == nil {
		ext = ObjectExtension()
	}
	chain, parent, err := resolveChain(r.runtime, ext)
	if err != nil {
		return nil, err
	}

	spec := foreign.ClassSpec{
		Name:         cfg.Name,
		Parent:       parent,
		ClassSize:    ext.ClassSize,
		InstanceSize: ext.InstanceSize,
		ClassInit: func(class *foreign.Class) error {
			for _, link := range chain {
				if link.InitClass == nil {
					continue
				}
				if err := link.InitClass(class, proto, r); err != nil {
					return err
				}
			}
			if ci, ok := proto.(ClassInitializer); ok {
				if err := ci.InitClass(class); err != nil {
					return err
				}
			}
			for _, binding := range cfg.Interfaces {
				if err := class.AddCapability(binding.Name, proto); err != nil {
					return err
				}
				if binding.Init == nil {
					continue
				}
				if err := binding.Init(class, proto); err != nil {
					return err
				}
			}
			return nil
		},
		InstanceInit: r.initInstance,
		Finalize:     r.finalizeInstance,
	}
	return r.runtime.RegisterClass(spec)
}

// initInstance runs once per new foreign object: mint a managed instance
// from the type's factory and pin it behind the object's slot token. When a
// bridged type extends another bridged type the init chain reaches here once
// per level; only the first call pins.
func (r *Registry) initInstance(obj *foreign.Object) error {
	if obj.Slot() != 0 {
		return nil
	}
	r.mu.Lock()
	ent := r.byClass[obj.Class().ID()]
	r.mu.Unlock()
	if ent == nil {
		return errors.WrapFatal(
			fmt.Errorf("class %q has no registered factory: %w",
				obj.Class().Name(), errors.ErrTypeNotFound),
			"Registry", "initInstance", "resolve factory")
	}

	inst := ent.proto.NewInstance()
	if inst == nil {
		return errors.WrapFatal(
			fmt.Errorf("factory for %q returned nil", obj.Class().Name()),
			"Registry", "initInstance", "create instance")
	}
	obj.SetSlot(r.handles.insert(inst))
	if r.metrics != nil {
		r.metrics.instancesLive.Inc()
	}
	return nil
}

// finalizeInstance runs exactly once per foreign object: release the pinned
// managed instance so it can be reclaimed.
func (r *Registry) finalizeInstance(obj *foreign.Object) {
	token := obj.Slot()
	if _, ok := r.handles.remove(token); !ok {
		return
	}
	obj.ClearSlot()
	if r.metrics != nil {
		r.metrics.instancesLive.Dec()
	}
}

// InstanceFor recovers the managed instance handling a foreign object.
// Objects queried before their instance-init completed answer an explicit
// not-yet-initialized error.
func (r *Registry) InstanceFor(obj *foreign.Object) (Implementation, error) {
	if obj == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("object is nil"),
			"Registry", "InstanceFor", "validate object")
	}
	inst, ok := r.handles.lookup(obj.Slot())
	if !ok {
		return nil, errors.WrapNotFound(
			fmt.Errorf("object of class %q: %w", obj.Class().Name(), errors.ErrNotInitialized),
			"Registry", "InstanceFor", "resolve instance")
	}
	return inst, nil
}

// LookupType finds a registered type's class handle by name. Registrations
// still in flight are reported as not found.
func (r *Registry) LookupType(name string) (*foreign.Class, error) {
	r.mu.Lock()
	ent := r.entries[name]
	found := ent != nil && ent.done
	var class *foreign.Class
	if found {
		class = ent.class
	}
	r.mu.Unlock()

	if !found {
		return nil, errors.WrapNotFound(
			fmt.Errorf("type %q: %w", name, errors.ErrTypeNotFound),
			"Registry", "LookupType", "find type")
	}
	return class, nil
}

// Types returns the names of completed registrations, sorted.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for name, ent := range r.entries {
		if ent.done {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// HandleCount reports how many managed instances are currently pinned.
func (r *Registry) HandleCount() int {
	return r.handles.size()
}

func (r *Registry) countFailure() {
	if r.metrics != nil {
		r.metrics.registrationFailures.Inc()
	}
}

func validateBindings(name string, bindings []InterfaceBinding) error {
	seen := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		if b.Name == "" {
			return errors.WrapInvalid(
				fmt.Errorf("type %q declares an unnamed capability", name),
				"Registry", "RegisterType", "validate interfaces")
		}
		if seen[b.Name] {
			return errors.WrapInvalid(
				fmt.Errorf("type %q capability %q: %w", name, b.Name, errors.ErrDuplicateCapability),
				"Registry", "RegisterType", "validate interfaces")
		}
		seen[b.Name] = true
	}
	return nil
}
