package foreign

import (
	"fmt"

	"github.com/c360/graft/errors"
)

// ClassID identifies a registered class within one Runtime. IDs are assigned
// sequentially starting at 1; the universal base class always holds ID 1.
type ClassID uint64

// PropertyGetFunc is the dispatch-table slot for property reads.
type PropertyGetFunc func(obj *Object, name string) (any, error)

// PropertySetFunc is the dispatch-table slot for property writes.
type PropertySetFunc func(obj *Object, name string, value any) error

// ConstructedFunc is the dispatch-table slot for the post-construction hook,
// invoked after instance initialization completes.
type ConstructedFunc func(obj *Object)

// InstanceInitFunc runs once per new object of the class, before any other
// callback targets the object.
type InstanceInitFunc func(obj *Object) error

// FinalizeFunc runs exactly once per object when its last reference drops.
type FinalizeFunc func(obj *Object)

// PropertySpec declares a configurable property on a class.
type PropertySpec struct {
	Name        string
	Description string
	Default     any
	Writable    bool
}

// ClassSpec is the registration input for a new class.
//
// ClassInit is invoked exactly once, synchronously, during RegisterClass,
// after the class metadata has been allocated and before the class is
// visible as sealed. InstanceInit functions run base-to-derived on every new
// object; Finalize functions run derived-to-base when the last reference
// drops.
type ClassSpec struct {
	Name         string
	Parent       *Class
	ClassSize    uintptr
	InstanceSize uintptr
	ClassInit    func(*Class) error
	InstanceInit InstanceInitFunc
	Finalize     FinalizeFunc
}

// Class holds the foreign-system metadata for a registered type: identity,
// parent chain, allocator size hints, the dispatch table, declared
// properties, and capability implementations.
//
// A class is mutable only during its ClassInit callback. RegisterClass seals
// it afterwards; installation methods fail on a sealed class.
type Class struct {
	id           ClassID
	name         string
	parent       *Class
	classSize    uintptr
	instanceSize uintptr

	instanceInit InstanceInitFunc
	finalize     FinalizeFunc

	// Dispatch table. Nil slots resolve through the parent chain.
	getProperty PropertyGetFunc
	setProperty PropertySetFunc
	constructed ConstructedFunc

	properties   map[string]PropertySpec
	capabilities map[string]any

	sealed bool
}

func newClass(id ClassID, spec ClassSpec) *Class {
	return &Class{
		id:           id,
		name:         spec.Name,
		parent:       spec.Parent,
		classSize:    spec.ClassSize,
		instanceSize: spec.InstanceSize,
		instanceInit: spec.InstanceInit,
		finalize:     spec.Finalize,
		properties:   make(map[string]PropertySpec),
		capabilities: make(map[string]any),
	}
}

// ID returns the class identity within its runtime.
func (c *Class) ID() ClassID { return c.id }

// Name returns the registered class name.
func (c *Class) Name() string { return c.name }

// Parent returns the parent class, or nil for the universal base.
func (c *Class) Parent() *Class { return c.parent }

// ClassSize returns the declared class allocation hint.
func (c *Class) ClassSize() uintptr { return c.classSize }

// InstanceSize returns the declared instance allocation hint.
func (c *Class) InstanceSize() uintptr { return c.instanceSize }

// IsA reports whether the class is base or derives from it.
func (c *Class) IsA(base *Class) bool {
	if base == nil {
		return false
	}
	for k := c; k != nil; k = k.parent {
		if k.id == base.id {
			return true
		}
	}
	return false
}

// seal freezes the dispatch table after registration completes.
func (c *Class) seal() { c.sealed = true }

func (c *Class) checkMutable(op string) error {
	if c.sealed {
		return errors.WrapInvalid(
			fmt.Errorf("class %q is sealed", c.name),
			"Class", op, "mutate sealed class")
	}
	return nil
}

// OverridePropertyGetter installs the property-read slot for this class.
func (c *Class) OverridePropertyGetter(fn PropertyGetFunc) error {
	if err := c.checkMutable("OverridePropertyGetter"); err != nil {
		return err
	}
	c.getProperty = fn
	return nil
}

// OverridePropertySetter installs the property-write slot for this class.
func (c *Class) OverridePropertySetter(fn PropertySetFunc) error {
	if err := c.checkMutable("OverridePropertySetter"); err != nil {
		return err
	}
	c.setProperty = fn
	return nil
}

// OverrideConstructed installs the post-construction hook for this class.
func (c *Class) OverrideConstructed(fn ConstructedFunc) error {
	if err := c.checkMutable("OverrideConstructed"); err != nil {
		return err
	}
	c.constructed = fn
	return nil
}

// InstallProperty declares a configurable property on the class. Properties
// are inherited; redeclaring an inherited or own property is an error.
func (c *Class) InstallProperty(spec PropertySpec) error {
	if err := c.checkMutable("InstallProperty"); err != nil {
		return err
	}
	if spec.Name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("property name is empty"),
			"Class", "InstallProperty", "validate property")
	}
	if _, ok := c.LookupProperty(spec.Name); ok {
		return errors.WrapInvalid(
			fmt.Errorf("property %q already declared on %q", spec.Name, c.name),
			"Class", "InstallProperty", "duplicate property")
	}
	c.properties[spec.Name] = spec
	return nil
}

// LookupProperty resolves a property spec through the parent chain.
func (c *Class) LookupProperty(name string) (PropertySpec, bool) {
	for k := c; k != nil; k = k.parent {
		if spec, ok := k.properties[name]; ok {
			return spec, true
		}
	}
	return PropertySpec{}, false
}

// Properties returns the specs declared directly on this class.
func (c *Class) Properties() []PropertySpec {
	out := make([]PropertySpec, 0, len(c.properties))
	for _, spec := range c.properties {
		out = append(out, spec)
	}
	return out
}

// AddCapability binds a capability implementation to the class. At most one
// implementation per capability name per class.
func (c *Class) AddCapability(name string, impl any) error {
	if err := c.checkMutable("AddCapability"); err != nil {
		return err
	}
	if name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("capability name is empty"),
			"Class", "AddCapability", "validate capability")
	}
	if _, ok := c.capabilities[name]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("capability %q on class %q: %w", name, c.name, errors.ErrDuplicateCapability),
			"Class", "AddCapability", "duplicate capability")
	}
	c.capabilities[name] = impl
	return nil
}

// HasCapability reports whether the class or an ancestor provides the
// capability.
func (c *Class) HasCapability(name string) bool {
	_, ok := c.Capability(name)
	return ok
}

// Capability resolves a capability implementation through the parent chain.
func (c *Class) Capability(name string) (any, bool) {
	for k := c; k != nil; k = k.parent {
		if impl, ok := k.capabilities[name]; ok {
			return impl, true
		}
	}
	return nil, false
}

// resolveGetter walks the chain to the nearest installed property-read slot.
func (c *Class) resolveGetter() PropertyGetFunc {
	for k := c; k != nil; k = k.parent {
		if k.getProperty != nil {
			return k.getProperty
		}
	}
	return nil
}

func (c *Class) resolveSetter() PropertySetFunc {
	for k := c; k != nil; k = k.parent {
		if k.setProperty != nil {
			return k.setProperty
		}
	}
	return nil
}

func (c *Class) resolveConstructed() ConstructedFunc {
	for k := c; k != nil; k = k.parent {
		if k.constructed != nil {
			return k.constructed
		}
	}
	return nil
}
