package foreign

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/graft/errors"
)

// DiscoverFunc probes an element's input at runtime and reports the output
// ports it should expose. It runs on a graph driver goroutine after the
// graph starts.
type DiscoverFunc func(ctx context.Context, el *Element) ([]PortSpec, error)

// ElementKind is the factory blueprint for elements: identity, backing
// class, declared properties, the fixed port set, and the dynamic-output
// contract.
//
// Kinds with a nil Class get a private class derived from the universal base
// at registration, with Properties installed on it. Kinds that bring their
// own class must declare properties on that class instead.
type ElementKind struct {
	Name        string
	Description string

	Class      *Class
	Properties []PropertySpec

	StaticPorts []PortSpec

	// DynamicOutputs marks kinds whose outputs appear at runtime. Discover,
	// when set, is run by the graph driver to produce them.
	DynamicOutputs bool
	Discover       DiscoverFunc

	// RequestInput, when set, is the template for inputs minted on demand.
	// Minted ports are named "<template>_<n>".
	RequestInput *PortSpec
}

// Validate checks the kind declaration for internal consistency.
func (k *ElementKind) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("kind name is required")
	}
	if k.Discover != nil && !k.DynamicOutputs {
		return fmt.Errorf("kind %q declares Discover without DynamicOutputs", k.Name)
	}
	if k.Class != nil && len(k.Properties) > 0 {
		return fmt.Errorf("kind %q supplies both a class and kind-level properties", k.Name)
	}
	if k.RequestInput != nil {
		if k.RequestInput.Direction != DirectionInput {
			return fmt.Errorf("kind %q request template %q is not an input", k.Name, k.RequestInput.Name)
		}
		if k.RequestInput.Name == "" {
			return fmt.Errorf("kind %q request template has no name", k.Name)
		}
	}
	seen := make(map[string]bool, len(k.StaticPorts))
	for _, spec := range k.StaticPorts {
		if spec.Name == "" {
			return fmt.Errorf("kind %q declares a port with no name", k.Name)
		}
		if seen[spec.Name] {
			return fmt.Errorf("kind %q declares port %q twice", k.Name, spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

// Element is a live node: an object of the kind's class plus the port set.
// Elements are created through Runtime.NewElement and owned by the graph
// they are added to.
type Element struct {
	object *Object
	kind   *ElementKind
	name   string

	mu       sync.RWMutex
	ports    []*Port
	requests int

	noMoreMu    sync.Mutex
	noMoreFired bool
	noMoreFns   []func(*Element)
}

// Name returns the element's unique instance name.
func (e *Element) Name() string { return e.name }

// Kind returns the blueprint the element was built from.
func (e *Element) Kind() *ElementKind { return e.kind }

// Object returns the backing instance.
func (e *Element) Object() *Object { return e.object }

// Ports returns a snapshot of all ports in creation order.
func (e *Element) Ports() []*Port {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Port, len(e.ports))
	copy(out, e.ports)
	return out
}

// Port finds a port by name.
func (e *Element) Port(name string) (*Port, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.ports {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// OutputPorts returns the output ports in creation order.
func (e *Element) OutputPorts() []*Port {
	return e.portsByDirection(DirectionOutput)
}

// InputPorts returns the input ports in creation order.
func (e *Element) InputPorts() []*Port {
	return e.portsByDirection(DirectionInput)
}

func (e *Element) portsByDirection(d Direction) []*Port {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Port
	for _, p := range e.ports {
		if p.Direction() == d {
			out = append(out, p)
		}
	}
	return out
}

// UnlinkedOutput returns the first unconnected output in creation order,
// nil when every output is taken.
func (e *Element) UnlinkedOutput() *Port {
	for _, p := range e.OutputPorts() {
		if !p.Linked() {
			return p
		}
	}
	return nil
}

// InputContract reports the contract FreeInput would hand out next, without
// minting anything. False means the element has no input to offer.
func (e *Element) InputContract() (Contract, bool) {
	for _, p := range e.InputPorts() {
		if !p.Linked() {
			return p.Contract(), true
		}
	}
	if e.kind.RequestInput != nil {
		return e.kind.RequestInput.Contract, true
	}
	return Contract{}, false
}

// FreeInput returns an input port ready to link: the first unconnected
// input, or a freshly minted one for kinds with a request template. Returns
// ErrNoFreePort when neither exists.
func (e *Element) FreeInput() (*Port, error) {
	for _, p := range e.InputPorts() {
		if !p.Linked() {
			return p, nil
		}
	}
	if e.kind.RequestInput != nil {
		return e.requestInput()
	}
	return nil, errors.WrapFatal(
		fmt.Errorf("element %q has no free input: %w", e.name, errors.ErrNoFreePort),
		"Element", "FreeInput", "find input port")
}

func (e *Element) requestInput() (*Port, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	spec := *e.kind.RequestInput
	spec.Name = fmt.Sprintf("%s_%d", e.kind.RequestInput.Name, e.requests)
	e.requests++
	p := newPort(e, spec)
	e.ports = append(e.ports, p)
	return p, nil
}

// AddOutputPort exposes a new output at runtime. Discover drivers call this
// for each stream they find.
func (e *Element) AddOutputPort(spec PortSpec) (*Port, error) {
	if spec.Direction != DirectionOutput {
		return nil, errors.WrapInvalid(
			fmt.Errorf("port %q on %q: %w", spec.Name, e.name, errors.ErrDirectionMismatch),
			"Element", "AddOutputPort", "check direction")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.ports {
		if p.Name() == spec.Name {
			return nil, errors.WrapInvalid(
				fmt.Errorf("element %q already has port %q", e.name, spec.Name),
				"Element", "AddOutputPort", "check port name")
		}
	}
	p := newPort(e, spec)
	e.ports = append(e.ports, p)
	return p, nil
}

// OnNoMorePorts registers a callback for the one-shot completion signal.
// If the signal already fired the callback runs immediately on the calling
// goroutine; otherwise it runs on the goroutine that signals.
func (e *Element) OnNoMorePorts(fn func(*Element)) {
	e.noMoreMu.Lock()
	if e.noMoreFired {
		e.noMoreMu.Unlock()
		fn(e)
		return
	}
	e.noMoreFns = append(e.noMoreFns, fn)
	e.noMoreMu.Unlock()
}

// SignalNoMorePorts fires the completion signal. The first call invokes
// every registered callback in registration order; later calls are no-ops.
func (e *Element) SignalNoMorePorts() {
	e.noMoreMu.Lock()
	if e.noMoreFired {
		e.noMoreMu.Unlock()
		return
	}
	e.noMoreFired = true
	fns := e.noMoreFns
	e.noMoreFns = nil
	e.noMoreMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// NoMorePortsFired reports whether the completion signal has fired.
func (e *Element) NoMorePortsFired() bool {
	e.noMoreMu.Lock()
	defer e.noMoreMu.Unlock()
	return e.noMoreFired
}
