package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/routedef"
)

type headerConfig struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
	Order *int   `mapstructure:"order"`
}

type headerHandler struct {
	config *headerConfig
}

func (h headerHandler) Filter(ex *exchange.Exchange, next Chain) error {
	ex.Request.Header.Add(h.config.Name, h.config.Value)
	return next.Next(ex)
}

type orderedHeaderHandler struct {
	headerHandler
}

func (h orderedHeaderHandler) Order() int { return *h.config.Order }

type headerSpec struct{}

func (headerSpec) Name() string                       { return "AddHeader" }
func (headerSpec) NewConfig() any                     { return &headerConfig{} }
func (headerSpec) ShortcutFieldOrder() []string       { return []string{"name", "value", "order"} }
func (headerSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (headerSpec) Apply(config any) (Handler, error) {
	c := config.(*headerConfig)
	if c.Order != nil {
		return orderedHeaderHandler{headerHandler{c}}, nil
	}

	return headerHandler{c}, nil
}

func TestRegistryCreateAll(t *testing.T) {
	r := make(Registry)
	r.Register(headerSpec{})

	f, err := r.CreateAll([]*routedef.Spec{
		{Name: "AddHeader", Args: routedef.Positional("X-A", "a")},
		{Name: "AddHeader", Args: routedef.Positional("X-B", "b", "-5")},
	})
	require.NoError(t, err)
	require.Len(t, f, 2)
	assert.Equal(t, 1, f[0].Order)
	assert.Equal(t, -5, f[1].Order)

	ex := testExchange()
	Sort(f)
	require.NoError(t, Run(ex, f))
	assert.Equal(t, "a", ex.Request.Header.Get("X-A"))
	assert.Equal(t, "b", ex.Request.Header.Get("X-B"))
}

func TestRegistryErrors(t *testing.T) {
	r := make(Registry)
	r.Register(headerSpec{})

	_, err := r.Create(&routedef.Spec{Name: "Missing"})
	assert.ErrorIs(t, err, ErrUnknownFilter)

	_, err = r.CreateAll([]*routedef.Spec{{Name: "AddHeader", Args: routedef.Positional("X-A", "a", "2147483646")}})
	assert.ErrorIs(t, err, binding.ErrInvalidArgs)

	_, err = r.CreateAll([]*routedef.Spec{{Name: "AddHeader", Args: routedef.Positional("X-A", "a", "1", "extra")}})
	assert.ErrorIs(t, err, binding.ErrInvalidArgs)
}
