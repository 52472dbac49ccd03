package kinds

import (
	"context"

	"github.com/c360/graft/foreign"
)

func registerCapture(rt *foreign.Runtime) error {
	raw := foreign.Contract{Type: ContractRaw}

	return registerAll(rt, []*foreign.ElementKind{
		{
			Name:        "source",
			Description: "Reads a raw stream from a capture device.",
			Properties: []foreign.PropertySpec{
				{Name: "device", Description: "Capture device name", Default: "default", Writable: true},
				{Name: "rate", Description: "Sample rate in Hz", Default: 48000, Writable: true},
			},
			StaticPorts: []foreign.PortSpec{
				{Name: "src", Direction: foreign.DirectionOutput, Contract: raw},
			},
		},
		{
			Name:        "decode",
			Description: "Sniffs a container and exposes one output per elementary stream.",
			Properties: []foreign.PropertySpec{
				{Name: "format", Description: "Container format to expect", Default: "wav", Writable: true},
				{Name: "channels", Description: "Channel count hint", Default: 2, Writable: true},
			},
			StaticPorts: []foreign.PortSpec{
				{Name: "sink", Direction: foreign.DirectionInput, Contract: raw},
			},
			DynamicOutputs: true,
			Discover:       sniffStreams,
		},
	})
}

// sniffStreams maps a decoder's format property to the output ports its
// container would carry. Unknown formats produce no outputs, which leaves
// any pending downstream peers on the diagnostics report.
func sniffStreams(_ context.Context, el *foreign.Element) ([]foreign.PortSpec, error) {
	format, err := el.Object().Property("format")
	if err != nil {
		return nil, err
	}

	audio := foreign.Contract{Type: ContractAudio}
	video := foreign.Contract{Type: ContractVideo}
	switch format {
	case "wav", "flac":
		return []foreign.PortSpec{
			{Name: "src_audio", Direction: foreign.DirectionOutput, Contract: audio},
		}, nil
	case "mpegts":
		return []foreign.PortSpec{
			{Name: "src_audio", Direction: foreign.DirectionOutput, Contract: audio},
			{Name: "src_video", Direction: foreign.DirectionOutput, Contract: video},
		}, nil
	default:
		return nil, nil
	}
}
