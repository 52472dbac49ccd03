package foreign

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360/graft/errors"
)

// State is the graph lifecycle state.
type State int

const (
	// StateCreated indicates the graph holds elements but has not started.
	StateCreated State = iota
	// StateStarting indicates Start is spawning drivers.
	StateStarting
	// StateRunning indicates drivers are live.
	StateRunning
	// StateStopping indicates Stop is waiting for drivers.
	StateStopping
	// StateStopped indicates the graph finished or was torn down.
	StateStopped
)

// String returns a string representation of the graph state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Graph owns a set of elements and drives the dynamic ones. Elements are
// added while the graph is in the created state; Start spawns one driver
// goroutine per element with a Discover function and returns without
// waiting for them.
type Graph struct {
	id      string
	name    string
	runtime *Runtime
	logger  *slog.Logger
	bus     *Bus

	mu       sync.RWMutex
	state    State
	elements []*Element
	byName   map[string]*Element

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewGraph creates an empty graph owned by this runtime.
func (rt *Runtime) NewGraph(name string) *Graph {
	id := uuid.NewString()
	logger := rt.logger.With("graph", name, "graph_id", id)
	g := &Graph{
		id:      id,
		name:    name,
		runtime: rt,
		logger:  logger,
		bus:     newBus(defaultBusCapacity, logger, rt.metrics, name),
		byName:  make(map[string]*Element),
	}
	g.recordState(StateCreated)
	return g
}

// recordState reports a lifecycle transition to the core status gauge.
func (g *Graph) recordState(s State) {
	if m := g.runtime.metrics; m != nil {
		m.RecordGraphStatus(g.name, int(s))
	}
}

// ID returns the graph's unique identity.
func (g *Graph) ID() string { return g.id }

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Runtime returns the owning runtime.
func (g *Graph) Runtime() *Runtime { return g.runtime }

// Bus returns the graph's message bus.
func (g *Graph) Bus() *Bus { return g.bus }

// State returns the current lifecycle state.
func (g *Graph) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Elements returns a snapshot of the elements in insertion order.
func (g *Graph) Elements() []*Element {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Element, len(g.elements))
	copy(out, g.elements)
	return out
}

// ElementCount returns how many elements the graph holds.
func (g *Graph) ElementCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.elements)
}

// ByName finds an element by its instance name.
func (g *Graph) ByName(name string) (*Element, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	el, ok := g.byName[name]
	if !ok {
		return nil, errors.WrapNotFound(
			fmt.Errorf("element %q in graph %q: %w", name, g.name, errors.ErrElementNotFound),
			"Graph", "ByName", "find element")
	}
	return el, nil
}

// Add places an element in the graph. Only graphs in the created state
// accept elements; names must be unique.
func (g *Graph) Add(el *Element) error {
	if el == nil {
		return errors.WrapInvalid(
			fmt.Errorf("element is nil"),
			"Graph", "Add", "validate element")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateCreated {
		return errors.WrapInvalid(
			fmt.Errorf("graph %q is %s: %w", g.name, g.state, errors.ErrAlreadyStarted),
			"Graph", "Add", "check state")
	}
	if _, ok := g.byName[el.Name()]; ok {
		return errors.WrapInvalid(
			fmt.Errorf("element %q already in graph %q", el.Name(), g.name),
			"Graph", "Add", "check element name")
	}
	g.elements = append(g.elements, el)
	g.byName[el.Name()] = el
	return nil
}

// Start moves the graph to running and spawns a driver goroutine for every
// element whose kind declares a Discover function. It returns immediately;
// discovery results arrive through dynamic ports and the bus.
func (g *Graph) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateCreated {
		g.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("graph %q is %s: %w", g.name, g.state, errors.ErrAlreadyStarted),
			"Graph", "Start", "check state")
	}
	g.state = StateStarting

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.group = &errgroup.Group{}

	var drivers int
	for _, el := range g.elements {
		if el.Kind().Discover == nil {
			continue
		}
		drivers++
		el := el
		g.group.Go(func() error {
			g.drive(runCtx, el)
			return nil
		})
	}
	g.state = StateRunning
	g.mu.Unlock()

	g.recordState(StateRunning)
	g.logger.Info("graph started", "elements", g.ElementCount(), "drivers", drivers)
	return nil
}

// drive runs one element's discovery on its own goroutine. Whatever happens,
// the element's no-more-ports signal fires exactly once, and panics from
// Discover or from completion callbacks land on the bus instead of killing
// the goroutine.
func (g *Graph) drive(ctx context.Context, el *Element) {
	defer func() {
		if r := recover(); r != nil {
			g.postError(el.Name(), fmt.Errorf("driver panic: %v", r))
		}
	}()
	defer el.SignalNoMorePorts()

	specs, err := el.Kind().Discover(ctx, el)
	if err != nil {
		g.postError(el.Name(), errors.Wrap(err, "Graph", "drive", "discover outputs"))
		return
	}
	for _, spec := range specs {
		if _, err := el.AddOutputPort(spec); err != nil {
			g.postError(el.Name(), err)
			continue
		}
		g.logger.Debug("dynamic port added", "element", el.Name(), "port", spec.Name)
	}
}

func (g *Graph) postError(source string, err error) {
	g.bus.Error(source, err)
	if m := g.runtime.metrics; m != nil {
		m.RecordError(source, errors.Classify(err).String())
	}
}

// Stop cancels the run context, waits up to timeout for drivers to exit,
// then closes the bus. Stopping a graph that never started is an error.
func (g *Graph) Stop(timeout time.Duration) error {
	g.mu.Lock()
	switch g.state {
	case StateRunning, StateStarting:
	case StateCreated:
		g.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("graph %q: %w", g.name, errors.ErrNotStarted),
			"Graph", "Stop", "check state")
	default:
		g.mu.Unlock()
		return nil
	}
	g.state = StateStopping
	cancel := g.cancel
	group := g.group
	g.mu.Unlock()

	g.recordState(StateStopping)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		if group != nil {
			_ = group.Wait()
		}
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-time.After(timeout):
		waitErr = errors.WrapFatal(
			fmt.Errorf("graph %q drivers still running after %s", g.name, timeout),
			"Graph", "Stop", "wait for drivers")
	}

	g.mu.Lock()
	g.state = StateStopped
	g.mu.Unlock()

	if waitErr == nil {
		g.bus.Close()
	}
	g.recordState(StateStopped)
	g.logger.Info("graph stopped", "dropped_messages", g.bus.Dropped())
	return waitErr
}

// Release drops the graph's reference on every element's object and empties
// the graph. Used for teardown after build failures and in tests; the graph
// must not be running.
func (g *Graph) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateRunning || g.state == StateStarting {
		return
	}
	for _, el := range g.elements {
		if err := el.Object().Unref(); err != nil {
			g.logger.Warn("release failed", "element", el.Name(), "error", err)
		}
	}
	g.elements = nil
	g.byName = make(map[string]*Element)
	g.state = StateStopped
	g.recordState(StateStopped)
}
