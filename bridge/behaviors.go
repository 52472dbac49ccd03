package bridge

import (
	"fmt"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
)

// Implementation is the minimum contract a managed type must satisfy to be
// registered: a factory producing one fresh instance per foreign object.
// Everything else is optional and discovered by capability checks.
type Implementation interface {
	NewInstance() Implementation
}

// PropertyGetter answers property reads for instances of the type.
type PropertyGetter interface {
	GetProperty(obj *foreign.Object, name string) (any, error)
}

// PropertySetter accepts property writes for instances of the type.
type PropertySetter interface {
	SetProperty(obj *foreign.Object, name string, value any) error
}

// PostConstructor is notified once per instance after construction
// completes.
type PostConstructor interface {
	Constructed(obj *foreign.Object)
}

// ClassInitializer lets an implementation finish its own class setup, such
// as declaring configurable properties, after the extension chain ran.
type ClassInitializer interface {
	InitClass(class *foreign.Class) error
}

// installObjectBehaviors populates the class dispatch table member by
// member: a trampoline is installed only for behaviors the implementation
// prototype actually provides, so unimplemented slots keep resolving to the
// parent class. Each trampoline recovers the per-instance implementation
// through the handle table at call time.
func (r *Registry) installObjectBehaviors(class *foreign.Class, proto Implementation) error {
	if _, ok := proto.(PropertyGetter); ok {
		err := class.OverridePropertyGetter(func(obj *foreign.Object, name string) (any, error) {
			inst, err := r.InstanceFor(obj)
			if err != nil {
				return nil, err
			}
			getter, ok := inst.(PropertyGetter)
			if !ok {
				return nil, factoryDriftError(class, "PropertyGetter")
			}
			return getter.GetProperty(obj, name)
		})
		if err != nil {
			return err
		}
	}

	if _, ok := proto.(PropertySetter); ok {
		err := class.OverridePropertySetter(func(obj *foreign.Object, name string, value any) error {
			inst, err := r.InstanceFor(obj)
			if err != nil {
				return err
			}
			setter, ok := inst.(PropertySetter)
			if !ok {
				return factoryDriftError(class, "PropertySetter")
			}
			return setter.SetProperty(obj, name, value)
		})
		if err != nil {
			return err
		}
	}

	if _, ok := proto.(PostConstructor); ok {
		err := class.OverrideConstructed(func(obj *foreign.Object) {
			inst, err := r.InstanceFor(obj)
			if err != nil {
				return
			}
			if pc, ok := inst.(PostConstructor); ok {
				pc.Constructed(obj)
			}
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// factoryDriftError reports a factory returning instances that lack a
// capability its prototype advertised.
func factoryDriftError(class *foreign.Class, capability string) error {
	return errors.WrapFatal(
		fmt.Errorf("instance of %q does not provide %s declared by its prototype",
			class.Name(), capability),
		"Registry", "dispatch", "resolve instance capability")
}
