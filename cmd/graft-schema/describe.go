package main

import (
	"sort"

	"github.com/c360/graft/foreign"
)

// KindDescriptor is the exported description of one element kind: enough
// for an editor to offer completion and validate stage property bags.
type KindDescriptor struct {
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Class          string               `json:"class"`
	Properties     []PropertyDescriptor `json:"properties,omitempty"`
	StaticPorts    []PortDescriptor     `json:"static_ports,omitempty"`
	DynamicOutputs bool                 `json:"dynamic_outputs,omitempty"`
	RequestInput   *PortDescriptor      `json:"request_input,omitempty"`
}

// PropertyDescriptor describes one configurable property.
type PropertyDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Writable    bool   `json:"writable"`
}

// PortDescriptor describes one port template.
type PortDescriptor struct {
	Name       string   `json:"name"`
	Direction  string   `json:"direction"`
	Contract   string   `json:"contract"`
	Compatible []string `json:"compatible,omitempty"`
}

// describeKind flattens a registered kind into its exported form.
// Properties are read from the backing class, so managed kinds whose
// properties were installed by their implementation come out the same way
// native ones do.
func describeKind(kind *foreign.ElementKind) KindDescriptor {
	desc := KindDescriptor{
		Name:           kind.Name,
		Description:    kind.Description,
		Class:          kind.Class.Name(),
		DynamicOutputs: kind.DynamicOutputs,
	}

	for _, prop := range kind.Class.Properties() {
		desc.Properties = append(desc.Properties, PropertyDescriptor{
			Name:        prop.Name,
			Description: prop.Description,
			Default:     prop.Default,
			Writable:    prop.Writable,
		})
	}
	// Class property order is not stable; the export must be.
	sort.Slice(desc.Properties, func(i, j int) bool {
		return desc.Properties[i].Name < desc.Properties[j].Name
	})

	for _, spec := range kind.StaticPorts {
		desc.StaticPorts = append(desc.StaticPorts, describePort(spec))
	}
	if kind.RequestInput != nil {
		port := describePort(*kind.RequestInput)
		desc.RequestInput = &port
	}
	return desc
}

func describePort(spec foreign.PortSpec) PortDescriptor {
	return PortDescriptor{
		Name:       spec.Name,
		Direction:  spec.Direction.String(),
		Contract:   spec.Contract.Type,
		Compatible: spec.Contract.Compatible,
	}
}
