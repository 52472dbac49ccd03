package kinds

import (
	"github.com/c360/graft/foreign"
)

func registerPlumbing(rt *foreign.Runtime) error {
	raw := foreign.Contract{Type: ContractRaw}
	wildcard := foreign.Contract{Type: foreign.ContractAny}

	return registerAll(rt, []*foreign.ElementKind{
		{
			Name:        "queue",
			Description: "Buffers any stream between two stages.",
			Properties: []foreign.PropertySpec{
				{Name: "capacity", Description: "Buffered item count", Default: 64, Writable: true},
			},
			StaticPorts: []foreign.PortSpec{
				{Name: "in", Direction: foreign.DirectionInput, Contract: wildcard},
				{Name: "out", Direction: foreign.DirectionOutput, Contract: wildcard},
			},
		},
		{
			Name:        "mux",
			Description: "Interleaves any number of inputs into one raw stream.",
			StaticPorts: []foreign.PortSpec{
				{Name: "src", Direction: foreign.DirectionOutput, Contract: raw},
			},
			RequestInput: &foreign.PortSpec{Name: "sink", Direction: foreign.DirectionInput, Contract: wildcard},
		},
		{
			Name:        "sink",
			Description: "Terminates a stream.",
			StaticPorts: []foreign.PortSpec{
				{Name: "in", Direction: foreign.DirectionInput, Contract: wildcard},
			},
		},
	})
}
