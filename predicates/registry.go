package predicates

import (
	"errors"
	"fmt"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/routedef"
)

// Spec is a predicate factory.
type Spec interface {
	binding.Configurable

	// Apply creates a predicate from a config value returned by
	// NewConfig and populated by the binding. Configuration problems
	// are returned as errors.
	Apply(config any) (*Predicate, error)
}

// ErrUnknownPredicate is returned for definitions naming a predicate that
// is not registered.
var ErrUnknownPredicate = errors.New("unknown predicate")

// Registry maps predicate names to their factories.
type Registry map[string]Spec

// Register adds a factory under its name, replacing an earlier one.
func (r Registry) Register(s Spec) { r[s.Name()] = s }

// Create binds the arguments of def and applies the named factory.
func (r Registry) Create(def *routedef.Spec) (*Predicate, error) {
	s, ok := r[def.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPredicate, def.Name)
	}

	config, err := binding.Bind(s, def.Args)
	if err != nil {
		return nil, err
	}

	return s.Apply(config)
}

// CreateAll creates the predicates of defs and combines them with AND, left
// to right. An empty list yields Always.
func (r Registry) CreateAll(defs []*routedef.Spec) (*Predicate, error) {
	var p *Predicate
	for _, def := range defs {
		pi, err := r.Create(def)
		if err != nil {
			return nil, err
		}

		if p == nil {
			p = pi
		} else {
			p = p.And(pi)
		}
	}

	if p == nil {
		return Always(), nil
	}

	return p, nil
}
