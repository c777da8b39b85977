/*
Package predicates implements the composable request tests used to match
routes.

A predicate is a tree. Leaves are either simple, evaluated synchronously
from the exchange, or async, which may block on I/O like reading the
request body and may fail. Inner nodes combine their children with AND, OR
or negation, evaluated left to right with short-circuit: the right operand
of an AND is never evaluated when the left one is false, so a body reading
predicate placed after a cheap one costs nothing for requests that the cheap
one rejects.

Every leaf keeps the name of the factory that created it and its config
value, exposed through Walk.

Predicate factories implement Spec and are looked up by name in a Registry
when the routes are built.
*/
package predicates

import (
	"context"
	"fmt"
	"strings"

	"github.com/zalando/gateway/exchange"
)

// Kind tells the variant of a predicate node.
type Kind int

const (
	Simple Kind = iota
	Async
	And
	Or
	Not
)

func (k Kind) String() string {
	switch k {
	case Simple:
		return "simple"
	case Async:
		return "async"
	case And:
		return "and"
	case Or:
		return "or"
	case Not:
		return "not"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TestFunc is the test of a simple predicate.
type TestFunc func(*exchange.Exchange) bool

// AsyncFunc is the test of an async predicate. It may block and should
// return when ctx is done.
type AsyncFunc func(context.Context, *exchange.Exchange) (bool, error)

// Visitor receives the factory name and the config of a leaf predicate.
type Visitor func(name string, config any)

// Predicate is an immutable node of a predicate tree.
type Predicate struct {
	kind        Kind
	name        string
	config      any
	test        TestFunc
	async       AsyncFunc
	left, right *Predicate
	isAsync     bool
}

// New creates a simple predicate.
func New(name string, config any, test TestFunc) *Predicate {
	return &Predicate{kind: Simple, name: name, config: config, test: test}
}

// NewAsync creates an async predicate.
func NewAsync(name string, config any, test AsyncFunc) *Predicate {
	return &Predicate{kind: Async, name: name, config: config, async: test, isAsync: true}
}

// Always returns a predicate matching every request. Routes without
// predicates use it.
func Always() *Predicate {
	return New("Always", nil, func(*exchange.Exchange) bool { return true })
}

// Kind returns the variant of the node.
func (p *Predicate) Kind() Kind { return p.kind }

// Name returns the factory name of a leaf.
func (p *Predicate) Name() string { return p.name }

// Config returns the config value of a leaf.
func (p *Predicate) Config() any { return p.config }

// IsAsync tells whether evaluating the predicate may block.
func (p *Predicate) IsAsync() bool { return p.isAsync }

// And returns a predicate that is true when both p and other are true.
func (p *Predicate) And(other *Predicate) *Predicate {
	return &Predicate{kind: And, left: p, right: other, isAsync: p.isAsync || other.isAsync}
}

// Or returns a predicate that is true when either p or other is true.
func (p *Predicate) Or(other *Predicate) *Predicate {
	return &Predicate{kind: Or, left: p, right: other, isAsync: p.isAsync || other.isAsync}
}

// Negate returns a predicate that is true when p is false.
func (p *Predicate) Negate() *Predicate {
	return &Predicate{kind: Not, left: p, isAsync: p.isAsync}
}

// Test evaluates a predicate that is not async. Async predicates need the
// request context and must be evaluated with Apply; Test reports false for
// them without evaluating.
func (p *Predicate) Test(ex *exchange.Exchange) bool {
	if p.isAsync {
		return false
	}

	ok, _ := p.Apply(ex.Context(), ex)
	return ok
}

// Apply evaluates the predicate. Evaluation stops at the first error.
func (p *Predicate) Apply(ctx context.Context, ex *exchange.Exchange) (bool, error) {
	switch p.kind {
	case Simple:
		return p.test(ex), nil
	case Async:
		if err := ctx.Err(); err != nil {
			return false, err
		}

		return p.async(ctx, ex)
	case And:
		ok, err := p.left.Apply(ctx, ex)
		if err != nil || !ok {
			return false, err
		}

		return p.right.Apply(ctx, ex)
	case Or:
		ok, err := p.left.Apply(ctx, ex)
		if err != nil || ok {
			return ok, err
		}

		return p.right.Apply(ctx, ex)
	case Not:
		ok, err := p.left.Apply(ctx, ex)
		return !ok && err == nil, err
	default:
		return false, fmt.Errorf("invalid predicate kind: %v", p.kind)
	}
}

// Walk calls v for every leaf, left to right. Inner nodes are not
// visited.
func (p *Predicate) Walk(v Visitor) {
	switch p.kind {
	case Simple, Async:
		v(p.name, p.config)
	case Not:
		p.left.Walk(v)
	default:
		p.left.Walk(v)
		p.right.Walk(v)
	}
}

func (p *Predicate) String() string {
	switch p.kind {
	case Simple, Async:
		if p.config == nil {
			return p.name
		}

		return fmt.Sprintf("%s: %+v", p.name, p.config)
	case And:
		return "(" + p.left.String() + " && " + p.right.String() + ")"
	case Or:
		return "(" + p.left.String() + " || " + p.right.String() + ")"
	case Not:
		return "!" + p.left.String()
	default:
		return p.kind.String()
	}
}

// Names returns the factory names of the leaves, e.g. for log messages.
func (p *Predicate) Names() string {
	var names []string
	p.Walk(func(name string, _ any) { names = append(names, name) })
	return strings.Join(names, ", ")
}
