package foreign

import (
	"sync"
	"testing"

	"github.com/c360/graft/errors"
)

func TestNewObject_RefCountStartsAtOne(t *testing.T) {
	rt := NewRuntime()
	c, _ := rt.RegisterClass(ClassSpec{Name: "device"})

	obj, err := rt.NewObject(c)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}
	if obj.RefCount() != 1 {
		t.Errorf("RefCount() = %d, want 1", obj.RefCount())
	}
	if obj.Class() != c {
		t.Error("object bound to wrong class")
	}
	if obj.Finalized() {
		t.Error("fresh object reports finalized")
	}
}

func TestNewObject_UnknownClass(t *testing.T) {
	rtA := NewRuntime()
	rtB := NewRuntime()
	c, _ := rtA.RegisterClass(ClassSpec{Name: "device"})

	if _, err := rtB.NewObject(c); !errors.IsNotFound(err) {
		t.Errorf("expected not-found for class from another runtime, got %v", err)
	}
	if _, err := rtA.NewObject(nil); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for nil class, got %v", err)
	}
}

func TestNewObject_InitChainOrder(t *testing.T) {
	rt := NewRuntime()

	var trace []string
	record := func(step string) InstanceInitFunc {
		return func(obj *Object) error {
			trace = append(trace, step)
			return nil
		}
	}

	device, _ := rt.RegisterClass(ClassSpec{Name: "device", InstanceInit: record("device")})
	sensor, _ := rt.RegisterClass(ClassSpec{Name: "sensor", Parent: device, InstanceInit: record("sensor")})
	thermo, err := rt.RegisterClass(ClassSpec{Name: "thermo", Parent: sensor, InstanceInit: record("thermo")})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}

	if _, err := rt.NewObject(thermo); err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	want := []string{"device", "sensor", "thermo"}
	if len(trace) != len(want) {
		t.Fatalf("init trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("init trace = %v, want base-to-derived %v", trace, want)
		}
	}
}

func TestNewObject_InitFailureUnwinds(t *testing.T) {
	rt := NewRuntime()

	var finalized []string
	device, err := rt.RegisterClass(ClassSpec{
		Name:         "device",
		InstanceInit: func(obj *Object) error { return nil },
		Finalize:     func(obj *Object) { finalized = append(finalized, "device") },
	})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	sensor, err := rt.RegisterClass(ClassSpec{
		Name:   "sensor",
		Parent: device,
		InstanceInit: func(obj *Object) error {
			return errors.ErrNotInitialized
		},
		Finalize: func(obj *Object) { finalized = append(finalized, "sensor") },
	})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}

	if _, err := rt.NewObject(sensor); !errors.IsFatal(err) {
		t.Fatalf("expected fatal init error, got %v", err)
	}
	// Only the class that initialized gets unwound.
	if len(finalized) != 1 || finalized[0] != "device" {
		t.Errorf("finalized = %v, want [device]", finalized)
	}
}

func TestNewObject_ConstructedAfterInit(t *testing.T) {
	rt := NewRuntime()

	var trace []string
	c, err := rt.RegisterClass(ClassSpec{
		Name: "device",
		InstanceInit: func(obj *Object) error {
			trace = append(trace, "init")
			return nil
		},
		ClassInit: func(c *Class) error {
			return c.OverrideConstructed(func(obj *Object) {
				trace = append(trace, "constructed")
			})
		},
	})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}

	if _, err := rt.NewObject(c); err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}
	if len(trace) != 2 || trace[0] != "init" || trace[1] != "constructed" {
		t.Errorf("trace = %v, want [init constructed]", trace)
	}
}

func TestObject_FinalizeExactlyOnce(t *testing.T) {
	rt := NewRuntime()

	var finalized []string
	device, _ := rt.RegisterClass(ClassSpec{
		Name:     "device",
		Finalize: func(obj *Object) { finalized = append(finalized, "device") },
	})
	sensor, _ := rt.RegisterClass(ClassSpec{
		Name:     "sensor",
		Parent:   device,
		Finalize: func(obj *Object) { finalized = append(finalized, "sensor") },
	})

	obj, err := rt.NewObject(sensor)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	obj.Ref()
	if obj.RefCount() != 2 {
		t.Fatalf("RefCount() = %d after Ref, want 2", obj.RefCount())
	}
	if err := obj.Unref(); err != nil {
		t.Fatalf("Unref failed: %v", err)
	}
	if len(finalized) != 0 {
		t.Fatal("finalize ran while references remain")
	}

	if err := obj.Unref(); err != nil {
		t.Fatalf("final Unref failed: %v", err)
	}
	if !obj.Finalized() {
		t.Error("object should report finalized")
	}
	// Finalizers run derived first, then base.
	if len(finalized) != 2 || finalized[0] != "sensor" || finalized[1] != "device" {
		t.Errorf("finalize order = %v, want [sensor device]", finalized)
	}

	// One drop too many is reported, and the chain does not run again.
	if err := obj.Unref(); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for unref past zero, got %v", err)
	}
	if len(finalized) != 2 {
		t.Error("finalize chain ran more than once")
	}
}

func TestObject_ConcurrentUnref(t *testing.T) {
	rt := NewRuntime()

	var mu sync.Mutex
	finalizations := 0
	c, _ := rt.RegisterClass(ClassSpec{
		Name: "device",
		Finalize: func(obj *Object) {
			mu.Lock()
			finalizations++
			mu.Unlock()
		},
	})

	obj, err := rt.NewObject(c)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	const extra = 99
	for range extra {
		obj.Ref()
	}

	var wg sync.WaitGroup
	for range extra + 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := obj.Unref(); err != nil {
				t.Errorf("Unref failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if finalizations != 1 {
		t.Errorf("finalize ran %d times, want 1", finalizations)
	}
	if obj.RefCount() != 0 {
		t.Errorf("RefCount() = %d, want 0", obj.RefCount())
	}
}

func TestObject_Slot(t *testing.T) {
	rt := NewRuntime()
	c, _ := rt.RegisterClass(ClassSpec{Name: "device"})
	obj, _ := rt.NewObject(c)

	if obj.Slot() != 0 {
		t.Errorf("fresh slot = %d, want 0", obj.Slot())
	}
	obj.SetSlot(42)
	if obj.Slot() != 42 {
		t.Errorf("Slot() = %d, want 42", obj.Slot())
	}
	obj.ClearSlot()
	if obj.Slot() != 0 {
		t.Errorf("cleared slot = %d, want 0", obj.Slot())
	}
}

func TestObject_PropertyDefaults(t *testing.T) {
	rt := NewRuntime()
	c, err := rt.RegisterClass(ClassSpec{
		Name: "device",
		ClassInit: func(c *Class) error {
			return c.InstallProperty(PropertySpec{Name: "rate", Default: 25, Writable: true})
		},
	})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	obj, _ := rt.NewObject(c)

	// Unset property answers its declared default.
	v, err := obj.Property("rate")
	if err != nil {
		t.Fatalf("Property failed: %v", err)
	}
	if v != 25 {
		t.Errorf("Property(rate) = %v, want default 25", v)
	}

	if err := obj.SetProperty("rate", 50); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	v, _ = obj.Property("rate")
	if v != 50 {
		t.Errorf("Property(rate) = %v after set, want 50", v)
	}
}

func TestObject_PropertyErrors(t *testing.T) {
	rt := NewRuntime()
	c, err := rt.RegisterClass(ClassSpec{
		Name: "device",
		ClassInit: func(c *Class) error {
			return c.InstallProperty(PropertySpec{Name: "serial", Default: "none"})
		},
	})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	obj, _ := rt.NewObject(c)

	if _, err := obj.Property("missing"); !errors.IsNotFound(err) {
		t.Errorf("expected not-found for undeclared property, got %v", err)
	}
	if err := obj.SetProperty("missing", 1); !errors.IsNotFound(err) {
		t.Errorf("expected not-found for undeclared property, got %v", err)
	}
	// serial was declared without Writable.
	if err := obj.SetProperty("serial", "abc"); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for read-only property, got %v", err)
	}
}

func TestObject_PropertyOverride(t *testing.T) {
	rt := NewRuntime()

	c, err := rt.RegisterClass(ClassSpec{
		Name: "device",
		ClassInit: func(c *Class) error {
			return c.OverridePropertyGetter(func(obj *Object, name string) (any, error) {
				return "override:" + name, nil
			})
		},
	})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	obj, _ := rt.NewObject(c)

	// The class getter wins over the base store for every name.
	v, err := obj.Property("anything")
	if err != nil {
		t.Fatalf("Property failed: %v", err)
	}
	if v != "override:anything" {
		t.Errorf("Property() = %v, want override:anything", v)
	}

	// Children inherit the override through slot resolution.
	child, err := rt.RegisterClass(ClassSpec{Name: "sensor", Parent: c})
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	childObj, _ := rt.NewObject(child)
	v, _ = childObj.Property("x")
	if v != "override:x" {
		t.Errorf("child Property() = %v, want inherited override", v)
	}
}
