package foreign

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/c360/graft/errors"
)

// Object is a reference-counted instance of a registered class.
//
// The count starts at 1 for the caller that constructed the object. When the
// last reference drops, the finalize chain runs derived-to-base exactly once;
// further use of the object is a caller bug and Unref reports it.
type Object struct {
	class *Class

	refs      atomic.Int64
	finalized atomic.Bool

	// slot is the instance-layout word reserved for an embedder's
	// back-reference. Zero means unset.
	slot atomic.Uint64

	mu    sync.RWMutex
	props map[string]any
}

func newObject(c *Class) *Object {
	o := &Object{
		class: c,
		props: make(map[string]any),
	}
	o.refs.Store(1)
	return o
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// RefCount returns the current reference count.
func (o *Object) RefCount() int64 { return o.refs.Load() }

// Ref takes an additional reference and returns the object for chaining.
// Must not be called after the last reference dropped.
func (o *Object) Ref() *Object {
	o.refs.Add(1)
	return o
}

// Unref drops one reference. When the count reaches zero the finalize chain
// runs derived-to-base, once. Dropping below zero returns ErrFinalized.
func (o *Object) Unref() error {
	n := o.refs.Add(-1)
	switch {
	case n > 0:
		return nil
	case n < 0:
		return errors.WrapInvalid(
			fmt.Errorf("object of class %q: %w", o.class.Name(), errors.ErrFinalized),
			"Object", "Unref", "drop reference")
	}
	if !o.finalized.CompareAndSwap(false, true) {
		return nil
	}
	for k := o.class; k != nil; k = k.parent {
		if k.finalize != nil {
			k.finalize(o)
		}
	}
	return nil
}

// Finalized reports whether the finalize chain has run.
func (o *Object) Finalized() bool { return o.finalized.Load() }

// SetSlot stores the embedder's back-reference token in the instance layout.
func (o *Object) SetSlot(token uint64) { o.slot.Store(token) }

// Slot returns the stored back-reference token, zero if unset.
func (o *Object) Slot() uint64 { return o.slot.Load() }

// ClearSlot zeroes the back-reference token.
func (o *Object) ClearSlot() { o.slot.Store(0) }

// Property reads a property through the class dispatch table. With no
// override in the chain the universal base answers from the object's own
// store, falling back to the declared default.
func (o *Object) Property(name string) (any, error) {
	getter := o.class.resolveGetter()
	if getter == nil {
		return nil, errors.WrapNotFound(
			fmt.Errorf("class %q has no property getter", o.class.Name()),
			"Object", "Property", "resolve getter")
	}
	return getter(o, name)
}

// SetProperty writes a property through the class dispatch table.
func (o *Object) SetProperty(name string, value any) error {
	setter := o.class.resolveSetter()
	if setter == nil {
		return errors.WrapInvalid(
			fmt.Errorf("class %q has no property setter", o.class.Name()),
			"Object", "SetProperty", "resolve setter")
	}
	return setter(o, name, value)
}

// storedProperty reads the object's own property store.
func (o *Object) storedProperty(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.props[name]
	return v, ok
}

// storeProperty writes the object's own property store.
func (o *Object) storeProperty(name string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.props[name] = value
}
