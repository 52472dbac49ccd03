// Package kinds provides the built-in element catalog for graft pipelines.
// It registers both native kinds and managed implementations that reach the
// runtime through the bridge:
//
// Capture:
//   - source (raw stream from a capture device)
//   - decode (container sniffer with dynamic per-stream outputs)
//
// Plumbing:
//   - queue (buffers any stream)
//   - mux (interleaves request inputs into one raw stream)
//   - sink (stream terminator)
//
// Managed:
//   - meter (level reporting, bridged Go implementation)
//
// Domain-specific catalogs register their kinds on the same runtime before
// pipelines are built; nothing here is special beyond being shipped in-tree.
package kinds

import (
	stderrors "errors"

	"github.com/c360/graft/bridge"
	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
)

// Contract types spoken by the built-in catalog.
const (
	ContractRaw   = "stream/raw"
	ContractAudio = "stream/audio"
	ContractVideo = "stream/video"
)

// Register installs the full built-in catalog on a runtime. Managed types
// register through the bridge registry, so both must come from the same
// runtime.
func Register(rt *foreign.Runtime, breg *bridge.Registry) error {
	if rt == nil || breg == nil {
		return errors.WrapFatal(
			stderrors.New("runtime and bridge registry are required"),
			"Kinds", "Register", "check arguments")
	}

	if err := registerCapture(rt); err != nil {
		return errors.WrapInvalid(err, "Kinds", "Register", "capture kind registration")
	}
	if err := registerPlumbing(rt); err != nil {
		return errors.WrapInvalid(err, "Kinds", "Register", "plumbing kind registration")
	}
	if err := registerMeter(rt, breg); err != nil {
		return errors.WrapInvalid(err, "Kinds", "Register", "meter kind registration")
	}
	return nil
}

func registerAll(rt *foreign.Runtime, kinds []*foreign.ElementKind) error {
	for _, k := range kinds {
		if err := rt.RegisterKind(k); err != nil {
			return err
		}
	}
	return nil
}
