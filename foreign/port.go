package foreign

import (
	"fmt"
	"sync"

	"github.com/c360/graft/errors"
)

// ContractAny is the wildcard contract type compatible with everything.
const ContractAny = "*"

// Direction tells whether a port consumes or produces.
type Direction int

const (
	// DirectionInput marks a port that consumes from an upstream peer.
	DirectionInput Direction = iota
	// DirectionOutput marks a port that produces for a downstream peer.
	DirectionOutput
)

// String returns a human-readable direction name.
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Contract describes what a port produces or accepts. Two contracts are
// compatible when their types match exactly, when either side is the
// wildcard, or when either side lists the other's type as compatible.
type Contract struct {
	Type       string   `json:"type"`
	Compatible []string `json:"compatible,omitempty"`
}

// Accepts reports whether the two contracts can be connected.
func (c Contract) Accepts(other Contract) bool {
	if c.Type == ContractAny || other.Type == ContractAny {
		return true
	}
	if c.Type == other.Type {
		return true
	}
	for _, t := range c.Compatible {
		if t == other.Type || t == ContractAny {
			return true
		}
	}
	for _, t := range other.Compatible {
		if t == c.Type || t == ContractAny {
			return true
		}
	}
	return false
}

// String returns the contract type for diagnostics.
func (c Contract) String() string { return c.Type }

// PortSpec declares a port an element exposes.
type PortSpec struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Contract  Contract  `json:"contract"`
}

// Port is a connection point on an element. Each port holds at most one
// peer; linking is output-to-input only and checks contract compatibility.
type Port struct {
	name      string
	direction Direction
	contract  Contract
	owner     *Element

	mu   sync.Mutex
	peer *Port
}

func newPort(owner *Element, spec PortSpec) *Port {
	return &Port{
		name:      spec.Name,
		direction: spec.Direction,
		contract:  spec.Contract,
		owner:     owner,
	}
}

// Name returns the port name, unique within its element.
func (p *Port) Name() string { return p.name }

// Direction returns the port direction.
func (p *Port) Direction() Direction { return p.direction }

// Contract returns the port's declared contract.
func (p *Port) Contract() Contract { return p.contract }

// Owner returns the element the port belongs to.
func (p *Port) Owner() *Element { return p.owner }

// Peer returns the connected peer port, nil when unlinked.
func (p *Port) Peer() *Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer
}

// Linked reports whether the port has a peer.
func (p *Port) Linked() bool { return p.Peer() != nil }

// FullName returns "element.port" for diagnostics.
func (p *Port) FullName() string {
	if p.owner == nil {
		return p.name
	}
	return p.owner.Name() + "." + p.name
}

// Link connects this output port to an input port. Both sides must be
// unlinked and the contracts must be compatible.
func (p *Port) Link(in *Port) error {
	if p.direction != DirectionOutput || in.direction != DirectionInput {
		return errors.WrapFatal(
			fmt.Errorf("%s (%s) -> %s (%s): %w",
				p.FullName(), p.direction, in.FullName(), in.direction,
				errors.ErrDirectionMismatch),
			"Port", "Link", "check directions")
	}
	if !p.contract.Accepts(in.contract) {
		return errors.WrapFatal(
			fmt.Errorf("%s (%s) -> %s (%s): %w",
				p.FullName(), p.contract, in.FullName(), in.contract,
				errors.ErrIncompatiblePorts),
			"Port", "Link", "check contracts")
	}

	// Output side locks first so concurrent links order deterministically.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer != nil {
		return errors.WrapFatal(
			fmt.Errorf("%s already linked to %s: %w",
				p.FullName(), p.peer.FullName(), errors.ErrPortLinked),
			"Port", "Link", "check output occupancy")
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.peer != nil {
		return errors.WrapFatal(
			fmt.Errorf("%s already linked to %s: %w",
				in.FullName(), in.peer.FullName(), errors.ErrPortLinked),
			"Port", "Link", "check input occupancy")
	}

	p.peer = in
	in.peer = p
	return nil
}
