package bridge

import (
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
)

// widgetCounters is shared between a prototype and every instance its
// factory mints, so tests can observe which side answered a dispatch.
type widgetCounters struct {
	factory     atomic.Int64
	classInit   atomic.Int64
	constructed atomic.Int64
	gets        atomic.Int64
	sets        atomic.Int64
}

// fullWidget provides every optional behavior.
type fullWidget struct {
	counters *widgetCounters
	volume   any
}

func newFullWidget() *fullWidget {
	return &fullWidget{counters: &widgetCounters{}}
}

func (w *fullWidget) NewInstance() Implementation {
	w.counters.factory.Add(1)
	return &fullWidget{counters: w.counters}
}

func (w *fullWidget) InitClass(class *foreign.Class) error {
	w.counters.classInit.Add(1)
	return class.InstallProperty(foreign.PropertySpec{Name: "volume", Default: 11, Writable: true})
}

func (w *fullWidget) GetProperty(_ *foreign.Object, name string) (any, error) {
	w.counters.gets.Add(1)
	if name != "volume" {
		return nil, errors.WrapNotFound(
			fmt.Errorf("property %q not handled", name),
			"fullWidget", "GetProperty", "resolve property")
	}
	if w.volume == nil {
		return 11, nil
	}
	return w.volume, nil
}

func (w *fullWidget) SetProperty(_ *foreign.Object, name string, value any) error {
	w.counters.sets.Add(1)
	if name != "volume" {
		return errors.WrapNotFound(
			fmt.Errorf("property %q not handled", name),
			"fullWidget", "SetProperty", "resolve property")
	}
	w.volume = value
	return nil
}

func (w *fullWidget) Constructed(_ *foreign.Object) {
	w.counters.constructed.Add(1)
}

// readOnlyWidget provides only the read side; writes must fall through to
// the base class.
type readOnlyWidget struct {
	counters *widgetCounters
}

func newReadOnlyWidget() *readOnlyWidget {
	return &readOnlyWidget{counters: &widgetCounters{}}
}

func (w *readOnlyWidget) NewInstance() Implementation {
	w.counters.factory.Add(1)
	return &readOnlyWidget{counters: w.counters}
}

func (w *readOnlyWidget) InitClass(class *foreign.Class) error {
	w.counters.classInit.Add(1)
	return class.InstallProperty(foreign.PropertySpec{Name: "volume", Default: 11, Writable: true})
}

func (w *readOnlyWidget) GetProperty(_ *foreign.Object, name string) (any, error) {
	w.counters.gets.Add(1)
	return "impl:" + name, nil
}

// bareWidget provides nothing beyond the factory.
type bareWidget struct {
	counters *widgetCounters
}

func newBareWidget() *bareWidget {
	return &bareWidget{counters: &widgetCounters{}}
}

func (w *bareWidget) NewInstance() Implementation {
	w.counters.factory.Add(1)
	return &bareWidget{counters: w.counters}
}

func testRegistry(t *testing.T) (*foreign.Runtime, *Registry) {
	t.Helper()
	rt := foreign.NewRuntime()
	reg, err := NewRegistry(rt, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return rt, reg
}

func TestNewRegistry_RequiresRuntime(t *testing.T) {
	if _, err := NewRegistry(nil, nil, nil); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for nil runtime, got %v", err)
	}
}

func TestRegisterType(t *testing.T) {
	rt, reg := testRegistry(t)

	w := newFullWidget()
	class, err := reg.RegisterType(TypeConfig{Name: "managed/widget", Impl: w})
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	if class.Name() != "managed/widget" {
		t.Errorf("class name = %q", class.Name())
	}
	if class.Parent() != rt.BaseClass() {
		t.Error("default extension should root at the universal base")
	}
	if class.InstanceSize() != baseInstanceSize+slotSize {
		t.Errorf("instance size = %d, want %d with back-reference slot",
			class.InstanceSize(), baseInstanceSize+slotSize)
	}

	got, err := reg.LookupType("managed/widget")
	if err != nil || got != class {
		t.Errorf("LookupType = %v, %v; want the registered handle", got, err)
	}
	if types := reg.Types(); len(types) != 1 || types[0] != "managed/widget" {
		t.Errorf("Types() = %v", types)
	}
	if w.counters.classInit.Load() != 1 {
		t.Errorf("class init ran %d times, want 1", w.counters.classInit.Load())
	}
	// Registration alone must not mint instances.
	if w.counters.factory.Load() != 0 {
		t.Errorf("factory ran %d times during registration, want 0", w.counters.factory.Load())
	}
}

func TestRegisterType_Idempotent(t *testing.T) {
	_, reg := testRegistry(t)

	w := newFullWidget()
	cfg := TypeConfig{Name: "managed/widget", Impl: w}

	first, err := reg.RegisterType(cfg)
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	second, err := reg.RegisterType(cfg)
	if err != nil {
		t.Fatalf("second RegisterType failed: %v", err)
	}
	if first != second {
		t.Error("re-registration returned a different handle")
	}
	if w.counters.classInit.Load() != 1 {
		t.Errorf("class init ran %d times across re-registration, want 1",
			w.counters.classInit.Load())
	}
}

func TestRegisterType_ConcurrentSameName(t *testing.T) {
	_, reg := testRegistry(t)

	w := newFullWidget()
	cfg := TypeConfig{Name: "managed/widget", Impl: w}

	const callers = 16
	handles := make([]*foreign.Class, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			class, err := reg.RegisterType(cfg)
			if err != nil {
				t.Errorf("RegisterType failed: %v", err)
				return
			}
			handles[i] = class
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if handles[i] != handles[0] {
			t.Fatal("concurrent registrations returned different handles")
		}
	}
	if w.counters.classInit.Load() != 1 {
		t.Errorf("class init ran %d times under contention, want 1",
			w.counters.classInit.Load())
	}
}

func TestRegisterType_MissingFactory(t *testing.T) {
	_, reg := testRegistry(t)

	_, err := reg.RegisterType(TypeConfig{Name: "managed/broken", Impl: struct{}{}})
	if err == nil {
		t.Fatal("expected missing factory error")
	}
	if !errors.IsInvalid(err) {
		t.Errorf("expected invalid classification, got %v", err)
	}
	if !stderrors.Is(err, errors.ErrMissingFactory) {
		t.Errorf("expected ErrMissingFactory in chain, got %v", err)
	}

	// Nothing half-registered stays reachable.
	if _, err := reg.LookupType("managed/broken"); !errors.IsNotFound(err) {
		t.Errorf("expected not-found after failed registration, got %v", err)
	}
	// The name is free for a corrected registration.
	if _, err := reg.RegisterType(TypeConfig{Name: "managed/broken", Impl: newBareWidget()}); err != nil {
		t.Errorf("registration after failure should succeed: %v", err)
	}
}

func TestRegisterType_NilImpl(t *testing.T) {
	_, reg := testRegistry(t)

	_, err := reg.RegisterType(TypeConfig{Name: "managed/none"})
	if !errors.IsInvalid(err) || !stderrors.Is(err, errors.ErrMissingFactory) {
		t.Errorf("expected missing factory for nil impl, got %v", err)
	}
	if _, err := reg.RegisterType(TypeConfig{Impl: newBareWidget()}); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for empty name, got %v", err)
	}
}

func TestRegisterType_DuplicateInterface(t *testing.T) {
	_, reg := testRegistry(t)

	_, err := reg.RegisterType(TypeConfig{
		Name: "managed/widget",
		Impl: newFullWidget(),
		Interfaces: []InterfaceBinding{
			{Name: "paintable"},
			{Name: "paintable"},
		},
	})
	if err == nil {
		t.Fatal("expected duplicate capability error")
	}
	if !errors.IsInvalid(err) || !stderrors.Is(err, errors.ErrDuplicateCapability) {
		t.Errorf("expected invalid ErrDuplicateCapability, got %v", err)
	}
	if _, err := reg.LookupType("managed/widget"); !errors.IsNotFound(err) {
		t.Errorf("failed registration left the name reachable: %v", err)
	}
}

func TestRegisterType_InterfaceBinding(t *testing.T) {
	_, reg := testRegistry(t)

	inits := 0
	class, err := reg.RegisterType(TypeConfig{
		Name: "managed/widget",
		Impl: newFullWidget(),
		Interfaces: []InterfaceBinding{
			{
				Name: "paintable",
				Init: func(class *foreign.Class, impl Implementation) error {
					inits++
					if impl == nil {
						return fmt.Errorf("no implementation bound")
					}
					return nil
				},
			},
			{Name: "scrollable"},
		},
	})
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	if inits != 1 {
		t.Errorf("capability init ran %d times, want 1", inits)
	}
	if !class.HasCapability("paintable") || !class.HasCapability("scrollable") {
		t.Error("capabilities not recorded on the class")
	}
}

func TestInstanceLifecycle(t *testing.T) {
	rt, reg := testRegistry(t)

	w := newFullWidget()
	class, err := reg.RegisterType(TypeConfig{Name: "managed/widget", Impl: w})
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}

	first, err := rt.NewObject(class)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}
	second, err := rt.NewObject(class)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	if got := w.counters.factory.Load(); got != 2 {
		t.Errorf("factory ran %d times, want 2", got)
	}
	if got := w.counters.constructed.Load(); got != 2 {
		t.Errorf("constructed hook ran %d times, want 2", got)
	}
	if reg.HandleCount() != 2 {
		t.Errorf("HandleCount() = %d, want 2", reg.HandleCount())
	}

	instA, err := reg.InstanceFor(first)
	if err != nil {
		t.Fatalf("InstanceFor failed: %v", err)
	}
	instB, err := reg.InstanceFor(second)
	if err != nil {
		t.Fatalf("InstanceFor failed: %v", err)
	}
	if instA == instB {
		t.Error("two objects share one managed instance")
	}

	// Finalize releases the pinned instance exactly once.
	if err := first.Unref(); err != nil {
		t.Fatalf("Unref failed: %v", err)
	}
	if reg.HandleCount() != 1 {
		t.Errorf("HandleCount() = %d after finalize, want 1", reg.HandleCount())
	}
	if _, err := reg.InstanceFor(first); !errors.IsNotFound(err) {
		t.Errorf("expected not-found for finalized object, got %v", err)
	}

	if err := second.Unref(); err != nil {
		t.Fatalf("Unref failed: %v", err)
	}
	if reg.HandleCount() != 0 {
		t.Errorf("HandleCount() = %d after teardown, want 0", reg.HandleCount())
	}
}

func TestInstanceFor_NotInitialized(t *testing.T) {
	rt, reg := testRegistry(t)

	// An object of a class the bridge never touched has no back-reference.
	plain, err := rt.RegisterClass(foreign.ClassSpec{Name: "plain"})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	obj, err := rt.NewObject(plain)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	_, err = reg.InstanceFor(obj)
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
	if !stderrors.Is(err, errors.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized in chain, got %v", err)
	}
	if _, err := reg.InstanceFor(nil); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for nil object, got %v", err)
	}
}

func TestSelectiveDispatch_Subset(t *testing.T) {
	rt, reg := testRegistry(t)

	w := newReadOnlyWidget()
	class, err := reg.RegisterType(TypeConfig{Name: "managed/readonly", Impl: w})
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	obj, err := rt.NewObject(class)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	// Reads hit the implementation's installed getter.
	v, err := obj.Property("volume")
	if err != nil {
		t.Fatalf("Property failed: %v", err)
	}
	if v != "impl:volume" {
		t.Errorf("Property() = %v, want the implementation's answer", v)
	}
	if w.counters.gets.Load() != 1 {
		t.Errorf("implementation getter ran %d times, want 1", w.counters.gets.Load())
	}

	// Writes were never installed, so the base class answers them.
	if err := obj.SetProperty("volume", 42); err != nil {
		t.Fatalf("SetProperty through base failed: %v", err)
	}
	if w.counters.sets.Load() != 0 {
		t.Error("write dispatched to the implementation despite no setter")
	}

	// The read path still belongs to the implementation afterwards.
	v, _ = obj.Property("volume")
	if v != "impl:volume" {
		t.Errorf("Property() = %v after base write, want the implementation's answer", v)
	}
}

func TestSelectiveDispatch_FullSet(t *testing.T) {
	rt, reg := testRegistry(t)

	w := newFullWidget()
	class, err := reg.RegisterType(TypeConfig{Name: "managed/widget", Impl: w})
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	obj, err := rt.NewObject(class)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	if err := obj.SetProperty("volume", 42); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	if w.counters.sets.Load() != 1 {
		t.Errorf("implementation setter ran %d times, want 1", w.counters.sets.Load())
	}
	v, err := obj.Property("volume")
	if err != nil {
		t.Fatalf("Property failed: %v", err)
	}
	if v != 42 {
		t.Errorf("Property() = %v, want 42 from the instance's own state", v)
	}
	if w.counters.gets.Load() != 1 {
		t.Errorf("implementation getter ran %d times, want 1", w.counters.gets.Load())
	}
}

func TestSelectiveDispatch_NothingProvided(t *testing.T) {
	rt, reg := testRegistry(t)

	w := newBareWidget()
	class, err := reg.RegisterType(TypeConfig{Name: "managed/bare", Impl: w})
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	obj, err := rt.NewObject(class)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	// With no behaviors installed every slot resolves to the base class,
	// which rejects undeclared properties.
	if _, err := obj.Property("volume"); !errors.IsNotFound(err) {
		t.Errorf("expected base-class not-found, got %v", err)
	}
	if err := obj.SetProperty("volume", 1); !errors.IsNotFound(err) {
		t.Errorf("expected base-class not-found, got %v", err)
	}
	// The instance is still pinned and recoverable.
	if _, err := reg.InstanceFor(obj); err != nil {
		t.Errorf("InstanceFor failed: %v", err)
	}
}

func TestBridgedInstances_ConcurrentAccess(t *testing.T) {
	rt, reg := testRegistry(t)

	w := newFullWidget()
	class, err := reg.RegisterType(TypeConfig{Name: "managed/widget", Impl: w})
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj, err := rt.NewObject(class)
			if err != nil {
				t.Errorf("NewObject failed: %v", err)
				return
			}
			if _, err := reg.InstanceFor(obj); err != nil {
				t.Errorf("InstanceFor failed: %v", err)
			}
			if err := obj.Unref(); err != nil {
				t.Errorf("Unref failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if reg.HandleCount() != 0 {
		t.Errorf("HandleCount() = %d after concurrent lifecycle, want 0", reg.HandleCount())
	}
	if got := w.counters.factory.Load(); got != workers {
		t.Errorf("factory ran %d times, want %d", got, workers)
	}
}
