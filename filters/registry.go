package filters

import (
	"errors"
	"fmt"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/routedef"
)

// Spec is a filter factory.
type Spec interface {
	binding.Configurable

	// Apply creates a handler from a config value returned by NewConfig
	// and populated by the binding.
	Apply(config any) (Handler, error)
}

// ErrUnknownFilter is returned for definitions naming a filter that is not
// registered.
var ErrUnknownFilter = errors.New("unknown filter")

// Registry maps filter names to their factories.
type Registry map[string]Spec

// Register adds a factory under its name, replacing an earlier one.
func (r Registry) Register(s Spec) { r[s.Name()] = s }

// Create binds the arguments of def and applies the named factory.
func (r Registry) Create(def *routedef.Spec) (Handler, error) {
	s, ok := r[def.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, def.Name)
	}

	config, err := binding.Bind(s, def.Args)
	if err != nil {
		return nil, err
	}

	return s.Apply(config)
}

// CreateAll creates the filters of defs with position based orders.
// Explicit orders in the reserved range are rejected.
func (r Registry) CreateAll(defs []*routedef.Spec) ([]*Filter, error) {
	f := make([]*Filter, 0, len(defs))
	for i, def := range defs {
		h, err := r.Create(def)
		if err != nil {
			return nil, err
		}

		fi := Positioned(def.Name, i, h)
		if fi.Order >= ReservedOrders {
			return nil, fmt.Errorf("%w: %s declares the reserved order %d", binding.ErrInvalidArgs, def.Name, fi.Order)
		}

		f = append(f, fi)
	}

	return f, nil
}
