package kinds

import (
	"fmt"
	"sync"
	"time"

	"github.com/c360/graft/bridge"
	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
)

func registerMeter(rt *foreign.Runtime, breg *bridge.Registry) error {
	meterClass, err := breg.RegisterType(bridge.TypeConfig{
		Name: "graft/meter",
		Impl: &meterImpl{},
	})
	if err != nil {
		return fmt.Errorf("register meter type: %w", err)
	}

	audio := foreign.Contract{Type: ContractAudio}
	return registerAll(rt, []*foreign.ElementKind{
		{
			Name:        "meter",
			Description: "Reports stream levels. Backed by the managed meter implementation.",
			Class:       meterClass,
			StaticPorts: []foreign.PortSpec{
				{Name: "in", Direction: foreign.DirectionInput, Contract: audio},
				{Name: "out", Direction: foreign.DirectionOutput, Contract: audio},
			},
		},
	})
}

// meterImpl is the managed implementation behind the meter kind. Each
// element gets its own instance through NewInstance; the prototype only
// seeds defaults.
type meterImpl struct {
	mu       sync.Mutex
	interval time.Duration
}

func (m *meterImpl) NewInstance() bridge.Implementation {
	return &meterImpl{interval: time.Second}
}

// InitClass declares the meter's configurable properties on its class.
func (m *meterImpl) InitClass(class *foreign.Class) error {
	return class.InstallProperty(foreign.PropertySpec{
		Name:        "interval",
		Description: "Reporting interval, as a duration string",
		Default:     "1s",
		Writable:    true,
	})
}

func (m *meterImpl) GetProperty(_ *foreign.Object, name string) (any, error) {
	if name != "interval" {
		return nil, errors.WrapNotFound(
			fmt.Errorf("meter has no property %q", name),
			"meter", "GetProperty", "look up property")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval.String(), nil
}

func (m *meterImpl) SetProperty(_ *foreign.Object, name string, value any) error {
	if name != "interval" {
		return errors.WrapNotFound(
			fmt.Errorf("meter has no property %q", name),
			"meter", "SetProperty", "look up property")
	}

	var d time.Duration
	switch v := value.(type) {
	case time.Duration:
		d = v
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("meter interval %q: %w", v, err),
				"meter", "SetProperty", "parse interval")
		}
		d = parsed
	default:
		return errors.WrapInvalid(
			fmt.Errorf("meter interval must be a duration, got %T", value),
			"meter", "SetProperty", "parse interval")
	}
	if d <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("meter interval must be positive, got %s", d),
			"meter", "SetProperty", "check interval")
	}

	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()
	return nil
}
