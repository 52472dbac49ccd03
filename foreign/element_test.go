package foreign

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/c360/graft/errors"
)

func TestElementKindValidate(t *testing.T) {
	okContract := Contract{Type: "stream/raw"}

	tests := []struct {
		name    string
		kind    ElementKind
		wantErr bool
	}{
		{
			name: "minimal valid kind",
			kind: ElementKind{Name: "source"},
		},
		{
			name: "static ports",
			kind: ElementKind{
				Name: "filter",
				StaticPorts: []PortSpec{
					{Name: "in", Direction: DirectionInput, Contract: okContract},
					{Name: "out", Direction: DirectionOutput, Contract: okContract},
				},
			},
		},
		{
			name:    "missing name",
			kind:    ElementKind{},
			wantErr: true,
		},
		{
			name: "discover without dynamic outputs",
			kind: ElementKind{
				Name:     "demux",
				Discover: func(ctx context.Context, el *Element) ([]PortSpec, error) { return nil, nil },
			},
			wantErr: true,
		},
		{
			name: "duplicate port names",
			kind: ElementKind{
				Name: "filter",
				StaticPorts: []PortSpec{
					{Name: "in", Direction: DirectionInput, Contract: okContract},
					{Name: "in", Direction: DirectionInput, Contract: okContract},
				},
			},
			wantErr: true,
		},
		{
			name: "unnamed port",
			kind: ElementKind{
				Name:        "filter",
				StaticPorts: []PortSpec{{Direction: DirectionInput, Contract: okContract}},
			},
			wantErr: true,
		},
		{
			name: "request template must be input",
			kind: ElementKind{
				Name:         "mux",
				RequestInput: &PortSpec{Name: "sink", Direction: DirectionOutput, Contract: okContract},
			},
			wantErr: true,
		},
		{
			name: "request template needs a name",
			kind: ElementKind{
				Name:         "mux",
				RequestInput: &PortSpec{Direction: DirectionInput, Contract: okContract},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.kind.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestNewElement_StaticPortsAndNaming(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{
		Name: "filter",
		StaticPorts: []PortSpec{
			{Name: "in", Direction: DirectionInput, Contract: Contract{Type: "stream/raw"}},
			{Name: "out", Direction: DirectionOutput, Contract: Contract{Type: "stream/raw"}},
		},
	}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	first, err := rt.NewElement("filter", nil)
	if err != nil {
		t.Fatalf("NewElement failed: %v", err)
	}
	second, err := rt.NewElement("filter", nil)
	if err != nil {
		t.Fatalf("NewElement failed: %v", err)
	}

	if first.Name() != "filter-0" || second.Name() != "filter-1" {
		t.Errorf("names = %q, %q; want filter-0, filter-1", first.Name(), second.Name())
	}
	if len(first.Ports()) != 2 {
		t.Fatalf("Ports() = %d, want 2", len(first.Ports()))
	}
	if len(first.InputPorts()) != 1 || len(first.OutputPorts()) != 1 {
		t.Error("port direction filters wrong")
	}
	if _, ok := first.Port("in"); !ok {
		t.Error("port lookup by name failed")
	}
	if _, ok := first.Port("nope"); ok {
		t.Error("lookup of unknown port succeeded")
	}
	if first.Kind() != kind {
		t.Error("element kind mismatch")
	}
}

func TestNewElement_Properties(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{
		Name: "source",
		Properties: []PropertySpec{
			{Name: "streams", Default: 1, Writable: true},
			{Name: "label", Default: "", Writable: true},
		},
	}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	el, err := rt.NewElement("source", map[string]any{"streams": 3})
	if err != nil {
		t.Fatalf("NewElement failed: %v", err)
	}

	v, err := el.Object().Property("streams")
	if err != nil {
		t.Fatalf("Property failed: %v", err)
	}
	if v != 3 {
		t.Errorf("streams = %v, want 3", v)
	}
	// Unset properties answer their defaults.
	v, _ = el.Object().Property("label")
	if v != "" {
		t.Errorf("label = %v, want empty default", v)
	}

	// Undeclared properties reject the whole instantiation.
	if _, err := rt.NewElement("source", map[string]any{"bogus": 1}); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for undeclared property, got %v", err)
	}
}

func TestNewElement_UnknownKind(t *testing.T) {
	rt := NewRuntime()
	if _, err := rt.NewElement("ghost", nil); !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestRegisterKind_Duplicate(t *testing.T) {
	rt := NewRuntime()
	if err := rt.RegisterKind(&ElementKind{Name: "source"}); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if err := rt.RegisterKind(&ElementKind{Name: "source"}); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for duplicate kind, got %v", err)
	}
	if got := rt.Kinds(); len(got) != 1 || got[0] != "source" {
		t.Errorf("Kinds() = %v, want [source]", got)
	}
}

func TestElement_FreeInput_Static(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{
		Name: "sink",
		StaticPorts: []PortSpec{
			{Name: "in", Direction: DirectionInput, Contract: Contract{Type: ContractAny}},
		},
	}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	el, _ := rt.NewElement("sink", nil)

	p, err := el.FreeInput()
	if err != nil {
		t.Fatalf("FreeInput failed: %v", err)
	}
	if p.Name() != "in" {
		t.Errorf("FreeInput() = %q, want in", p.Name())
	}
}

func TestElement_FreeInput_Request(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{
		Name:         "mux",
		StaticPorts:  []PortSpec{{Name: "out", Direction: DirectionOutput, Contract: Contract{Type: ContractAny}}},
		RequestInput: &PortSpec{Name: "sink", Direction: DirectionInput, Contract: Contract{Type: ContractAny}},
	}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	el, _ := rt.NewElement("mux", nil)

	first, err := el.FreeInput()
	if err != nil {
		t.Fatalf("FreeInput failed: %v", err)
	}
	if first.Name() != "sink_0" {
		t.Errorf("first minted port = %q, want sink_0", first.Name())
	}

	// An unlinked minted port is reused before minting another.
	again, _ := el.FreeInput()
	if again != first {
		t.Error("unlinked minted port should be reused")
	}

	// Once linked, the next request mints a new port.
	srcKind := &ElementKind{
		Name:        "feed",
		StaticPorts: []PortSpec{{Name: "out", Direction: DirectionOutput, Contract: Contract{Type: ContractAny}}},
	}
	if err := rt.RegisterKind(srcKind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	feed, _ := rt.NewElement("feed", nil)
	out, _ := feed.Port("out")
	if err := out.Link(first); err != nil {
		t.Fatalf("link failed: %v", err)
	}

	second, err := el.FreeInput()
	if err != nil {
		t.Fatalf("FreeInput failed: %v", err)
	}
	if second.Name() != "sink_1" {
		t.Errorf("second minted port = %q, want sink_1", second.Name())
	}
}

func TestElement_FreeInput_None(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{
		Name:        "source",
		StaticPorts: []PortSpec{{Name: "out", Direction: DirectionOutput, Contract: Contract{Type: ContractAny}}},
	}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	el, _ := rt.NewElement("source", nil)

	if _, err := el.FreeInput(); !errors.IsFatal(err) {
		t.Errorf("expected fatal no-free-port, got %v", err)
	}
}

func TestElement_AddOutputPort(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{Name: "demux", DynamicOutputs: true}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	el, _ := rt.NewElement("demux", nil)

	spec := PortSpec{Name: "audio_0", Direction: DirectionOutput, Contract: Contract{Type: "stream/audio"}}
	p, err := el.AddOutputPort(spec)
	if err != nil {
		t.Fatalf("AddOutputPort failed: %v", err)
	}
	if p.Owner() != el {
		t.Error("added port has wrong owner")
	}

	if _, err := el.AddOutputPort(spec); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for duplicate port name, got %v", err)
	}
	bad := PortSpec{Name: "in", Direction: DirectionInput, Contract: Contract{Type: ContractAny}}
	if _, err := el.AddOutputPort(bad); !errors.IsInvalid(err) {
		t.Errorf("expected invalid for input spec, got %v", err)
	}
}

func TestElement_NoMorePorts_OneShot(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{Name: "demux", DynamicOutputs: true}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	el, _ := rt.NewElement("demux", nil)

	var order []int
	el.OnNoMorePorts(func(*Element) { order = append(order, 1) })
	el.OnNoMorePorts(func(*Element) { order = append(order, 2) })

	if el.NoMorePortsFired() {
		t.Fatal("signal reported fired before SignalNoMorePorts")
	}
	el.SignalNoMorePorts()
	el.SignalNoMorePorts()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("callback order = %v, want [1 2] exactly once", order)
	}
	if !el.NoMorePortsFired() {
		t.Error("signal should report fired")
	}
}

func TestElement_NoMorePorts_LateRegistration(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{Name: "demux", DynamicOutputs: true}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	el, _ := rt.NewElement("demux", nil)

	el.SignalNoMorePorts()

	called := false
	el.OnNoMorePorts(func(*Element) { called = true })
	if !called {
		t.Error("late registration must be invoked immediately")
	}
}

func TestElement_NoMorePorts_ConcurrentSignal(t *testing.T) {
	rt := NewRuntime()
	kind := &ElementKind{Name: "demux", DynamicOutputs: true}
	if err := rt.RegisterKind(kind); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	el, _ := rt.NewElement("demux", nil)

	var fired atomic.Int32
	el.OnNoMorePorts(func(*Element) { fired.Add(1) })

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			el.SignalNoMorePorts()
		}()
	}
	wg.Wait()

	if fired.Load() != 1 {
		t.Errorf("callback fired %d times, want 1", fired.Load())
	}
}
