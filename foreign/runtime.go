package foreign

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/metric"
)

// BaseClassName is the name of the universal base class every runtime owns.
const BaseClassName = "object"

// Runtime owns the class registry, the element kind registry, and the
// universal base class. Each runtime is independent; classes and kinds from
// one runtime cannot be used with another.
type Runtime struct {
	logger  *slog.Logger
	metrics *metric.Metrics

	mu          sync.RWMutex
	classByName map[string]*Class
	classByID   map[ClassID]*Class
	kinds       map[string]*ElementKind
	base        *Class
	nextClassID ClassID
	elementSeq  map[string]int
}

// Option is a functional option for configuring a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithMetrics attaches core metrics so graphs report status and bus
// activity. Without it nothing is recorded.
func WithMetrics(m *metric.Metrics) Option {
	return func(rt *Runtime) {
		rt.metrics = m
	}
}

// NewRuntime creates a runtime with its universal base class registered.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		logger:      slog.Default(),
		classByName: make(map[string]*Class),
		classByID:   make(map[ClassID]*Class),
		kinds:       make(map[string]*ElementKind),
		nextClassID: 1,
		elementSeq:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.logger = rt.logger.With("component", "foreign.runtime")
	rt.base = rt.newBaseClass()
	rt.classByName[rt.base.name] = rt.base
	rt.classByID[rt.base.id] = rt.base
	return rt
}

// newBaseClass builds the root of every class chain. Its dispatch slots
// answer property reads and writes from the object's own store, honoring
// declared specs and defaults.
func (rt *Runtime) newBaseClass() *Class {
	c := newClass(rt.nextClassID, ClassSpec{Name: BaseClassName})
	rt.nextClassID++

	c.getProperty = func(obj *Object, name string) (any, error) {
		spec, declared := obj.class.LookupProperty(name)
		if !declared {
			return nil, errors.WrapNotFound(
				fmt.Errorf("property %q not declared on class %q", name, obj.class.Name()),
				"Object", "Property", "look up property spec")
		}
		if v, ok := obj.storedProperty(name); ok {
			return v, nil
		}
		return spec.Default, nil
	}
	c.setProperty = func(obj *Object, name string, value any) error {
		spec, declared := obj.class.LookupProperty(name)
		if !declared {
			return errors.WrapNotFound(
				fmt.Errorf("property %q not declared on class %q", name, obj.class.Name()),
				"Object", "SetProperty", "look up property spec")
		}
		if !spec.Writable {
			return errors.WrapInvalid(
				fmt.Errorf("property %q on class %q is read-only", name, obj.class.Name()),
				"Object", "SetProperty", "check writability")
		}
		obj.storeProperty(name, value)
		return nil
	}
	c.constructed = func(obj *Object) {}

	c.seal()
	return c
}

// BaseClass returns the universal base class.
func (rt *Runtime) BaseClass() *Class {
	return rt.base
}

// RegisterClass allocates class metadata, runs the ClassInit callback once,
// and seals the class. A nil parent defaults to the universal base. The
// parent must already be registered with this runtime. Registering a name
// twice is an error.
func (rt *Runtime) RegisterClass(spec ClassSpec) (*Class, error) {
	if spec.Name == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("class name is required"),
			"Runtime", "RegisterClass", "validate spec")
	}
	if spec.Parent == nil {
		spec.Parent = rt.base
	}

	rt.mu.Lock()
	if _, ok := rt.classByName[spec.Name]; ok {
		rt.mu.Unlock()
		return nil, errors.WrapInvalid(
			fmt.Errorf("class %q already registered", spec.Name),
			"Runtime", "RegisterClass", "check class name")
	}
	if got, ok := rt.classByID[spec.Parent.id]; !ok || got != spec.Parent {
		rt.mu.Unlock()
		return nil, errors.WrapInvalid(
			fmt.Errorf("parent class %q is not registered here", spec.Parent.name),
			"Runtime", "RegisterClass", "check parent")
	}
	if spec.ClassSize == 0 {
		spec.ClassSize = spec.Parent.classSize
	}
	if spec.InstanceSize == 0 {
		spec.InstanceSize = spec.Parent.instanceSize
	}
	c := newClass(rt.nextClassID, spec)
	rt.nextClassID++
	rt.classByName[c.name] = c
	rt.classByID[c.id] = c
	rt.mu.Unlock()

	if spec.ClassInit != nil {
		if err := spec.ClassInit(c); err != nil {
			rt.mu.Lock()
			delete(rt.classByName, c.name)
			delete(rt.classByID, c.id)
			rt.mu.Unlock()
			return nil, errors.WrapInvalid(err, "Runtime", "RegisterClass", "run class init")
		}
	}
	c.seal()

	rt.logger.Debug("class registered",
		"class", c.name,
		"id", uint64(c.id),
		"parent", c.parent.name)
	return c, nil
}

// LookupClass finds a registered class by name.
func (rt *Runtime) LookupClass(name string) (*Class, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.classByName[name]
	if !ok {
		return nil, errors.WrapNotFound(
			fmt.Errorf("class %q: %w", name, errors.ErrClassNotFound),
			"Runtime", "LookupClass", "find class")
	}
	return c, nil
}

// ClassByID finds a registered class by its runtime-local ID.
func (rt *Runtime) ClassByID(id ClassID) (*Class, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.classByID[id]
	if !ok {
		return nil, errors.WrapNotFound(
			fmt.Errorf("class id %d: %w", uint64(id), errors.ErrClassNotFound),
			"Runtime", "ClassByID", "find class")
	}
	return c, nil
}

// NewObject constructs an instance of the class: the instance-init chain
// runs base-to-derived, then the nearest constructed hook fires. The caller
// holds the initial reference.
func (rt *Runtime) NewObject(c *Class) (*Object, error) {
	if c == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("class is nil"),
			"Runtime", "NewObject", "validate class")
	}
	rt.mu.RLock()
	got, known := rt.classByID[c.id]
	rt.mu.RUnlock()
	if !known || got != c {
		return nil, errors.WrapNotFound(
			fmt.Errorf("class %q: %w", c.name, errors.ErrClassNotFound),
			"Runtime", "NewObject", "check class")
	}

	var chain []*Class
	for k := c; k != nil; k = k.parent {
		chain = append(chain, k)
	}

	obj := newObject(c)
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].instanceInit == nil {
			continue
		}
		if err := chain[i].instanceInit(obj); err != nil {
			// Unwind the classes that already initialized, derived to
			// base, so hooks holding external state release it.
			obj.finalized.Store(true)
			for j := i + 1; j < len(chain); j++ {
				if chain[j].finalize != nil {
					chain[j].finalize(obj)
				}
			}
			return nil, errors.WrapFatal(
				fmt.Errorf("class %q instance init: %w", chain[i].name, err),
				"Runtime", "NewObject", "initialize instance")
		}
	}
	if fn := c.resolveConstructed(); fn != nil {
		fn(obj)
	}
	return obj, nil
}

// RegisterKind adds an element kind to the registry. Kinds without a class
// get a private one derived from the universal base, with the kind's
// properties installed on it.
func (rt *Runtime) RegisterKind(kind *ElementKind) error {
	if kind == nil {
		return errors.WrapInvalid(
			fmt.Errorf("kind is nil"),
			"Runtime", "RegisterKind", "validate kind")
	}
	if err := kind.Validate(); err != nil {
		return errors.WrapInvalid(err, "Runtime", "RegisterKind", "validate kind")
	}

	rt.mu.RLock()
	_, exists := rt.kinds[kind.Name]
	rt.mu.RUnlock()
	if exists {
		return errors.WrapInvalid(
			fmt.Errorf("kind %q already registered", kind.Name),
			"Runtime", "RegisterKind", "check kind name")
	}

	if kind.Class == nil {
		props := kind.Properties
		c, err := rt.RegisterClass(ClassSpec{
			Name: "element/" + kind.Name,
			ClassInit: func(c *Class) error {
				for _, spec := range props {
					if err := c.InstallProperty(spec); err != nil {
						return err
					}
				}
				return nil
			},
		})
		if err != nil {
			return errors.Wrap(err, "Runtime", "RegisterKind", "create kind class")
		}
		kind.Class = c
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.kinds[kind.Name]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("kind %q already registered", kind.Name),
			"Runtime", "RegisterKind", "check kind name")
	}
	rt.kinds[kind.Name] = kind
	rt.logger.Debug("kind registered", "kind", kind.Name, "class", kind.Class.name)
	return nil
}

// LookupKind finds a registered element kind by name.
func (rt *Runtime) LookupKind(name string) (*ElementKind, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	kind, ok := rt.kinds[name]
	if !ok {
		return nil, errors.WrapNotFound(
			fmt.Errorf("kind %q: %w", name, errors.ErrKindNotFound),
			"Runtime", "LookupKind", "find kind")
	}
	return kind, nil
}

// Kinds returns the registered kind names, sorted.
func (rt *Runtime) Kinds() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]string, 0, len(rt.kinds))
	for name := range rt.kinds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewElement instantiates a kind: constructs the backing object, applies the
// property map through the dispatch table, and creates the static ports.
// Element names are "<kind>-<n>" with a per-kind counter.
func (rt *Runtime) NewElement(kindName string, props map[string]any) (*Element, error) {
	kind, err := rt.LookupKind(kindName)
	if err != nil {
		return nil, err
	}
	obj, err := rt.NewObject(kind.Class)
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "NewElement", "construct object")
	}

	rt.mu.Lock()
	n := rt.elementSeq[kindName]
	rt.elementSeq[kindName] = n + 1
	rt.mu.Unlock()

	el := &Element{
		object: obj,
		kind:   kind,
		name:   fmt.Sprintf("%s-%d", kindName, n),
	}
	for _, spec := range kind.StaticPorts {
		el.ports = append(el.ports, newPort(el, spec))
	}

	for name, value := range props {
		if err := obj.SetProperty(name, value); err != nil {
			_ = obj.Unref()
			return nil, errors.WrapInvalid(
				fmt.Errorf("property %q on %q: %w", name, el.name, err),
				"Runtime", "NewElement", "apply properties")
		}
	}

	rt.logger.Debug("element created", "element", el.name, "kind", kindName)
	return el, nil
}
