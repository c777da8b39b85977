package predicates

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/routedef"
)

func testExchange() *exchange.Exchange {
	return exchange.New(httptest.NewRecorder(), httptest.NewRequest("GET", "http://www.example.org/get", nil))
}

func constant(name string, v bool) *Predicate {
	return New(name, v, func(*exchange.Exchange) bool { return v })
}

func failingAsync(t *testing.T, called *bool) *Predicate {
	return NewAsync("Failing", nil, func(context.Context, *exchange.Exchange) (bool, error) {
		*called = true
		return false, errors.New("must not be evaluated")
	})
}

func TestAndShortCircuitsAsync(t *testing.T) {
	var called bool
	p := constant("False", false).And(failingAsync(t, &called))
	assert.True(t, p.IsAsync())

	ok, err := p.Apply(context.Background(), testExchange())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestOrShortCircuits(t *testing.T) {
	var called bool
	p := constant("True", true).Or(failingAsync(t, &called))
	ok, err := p.Apply(context.Background(), testExchange())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, called)
}

func TestAsyncEvaluatedWhenLeftIsTrue(t *testing.T) {
	var called bool
	async := NewAsync("Async", nil, func(context.Context, *exchange.Exchange) (bool, error) {
		called = true
		return true, nil
	})

	p := constant("True", true).And(async)
	ok, err := p.Apply(context.Background(), testExchange())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, called)
}

func TestAsyncErrorPropagates(t *testing.T) {
	var called bool
	p := constant("True", true).And(failingAsync(t, &called))
	ok, err := p.Apply(context.Background(), testExchange())
	assert.Error(t, err)
	assert.False(t, ok)

	ok, err = p.Negate().Apply(context.Background(), testExchange())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAsyncHonoursCanceledContext(t *testing.T) {
	var called bool
	p := NewAsync("Async", nil, func(context.Context, *exchange.Exchange) (bool, error) {
		called = true
		return true, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Apply(ctx, testExchange())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestSimpleTest(t *testing.T) {
	ex := testExchange()
	assert.True(t, constant("True", true).Test(ex))
	assert.False(t, constant("True", true).Negate().Test(ex))
	assert.False(t, constant("True", true).And(constant("False", false)).Test(ex))
	assert.False(t, constant("True", true).IsAsync())

	var called bool
	assert.False(t, failingAsync(t, &called).Test(ex))
	assert.False(t, called)
}

func TestWalkVisitsLeavesInOrder(t *testing.T) {
	p := constant("A", true).And(constant("B", false).Or(constant("C", true))).And(constant("D", true).Negate())

	var names []string
	var configs []any
	p.Walk(func(name string, config any) {
		names = append(names, name)
		configs = append(configs, config)
	})

	assert.Equal(t, []string{"A", "B", "C", "D"}, names)
	assert.Equal(t, []any{true, false, true, true}, configs)
	assert.Equal(t, "A, B, C, D", p.Names())
	assert.Equal(t, And, p.Kind())
}

type constSpec struct{}

type constConfig struct {
	Value bool `mapstructure:"value"`
}

func (constSpec) Name() string                       { return "Const" }
func (constSpec) NewConfig() any                     { return &constConfig{} }
func (constSpec) ShortcutFieldOrder() []string       { return []string{"value"} }
func (constSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }
func (s constSpec) Apply(config any) (*Predicate, error) {
	c := config.(*constConfig)
	return New(s.Name(), c, func(*exchange.Exchange) bool { return c.Value }), nil
}

func TestRegistry(t *testing.T) {
	r := make(Registry)
	r.Register(constSpec{})

	p, err := r.CreateAll([]*routedef.Spec{
		{Name: "Const", Args: routedef.Positional("true")},
		{Name: "Const", Args: routedef.Args{{Name: "value", Value: "false"}}},
	})
	require.NoError(t, err)
	assert.False(t, p.Test(testExchange()))

	var configs []*constConfig
	p.Walk(func(_ string, c any) { configs = append(configs, c.(*constConfig)) })
	require.Len(t, configs, 2)
	assert.True(t, configs[0].Value)
	assert.False(t, configs[1].Value)

	_, err = r.Create(&routedef.Spec{Name: "Missing"})
	assert.ErrorIs(t, err, ErrUnknownPredicate)

	always, err := r.CreateAll(nil)
	require.NoError(t, err)
	assert.True(t, always.Test(testExchange()))
}
