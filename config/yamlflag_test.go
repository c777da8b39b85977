package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/loadbalancer"
)

func TestYamlFlag(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		var services *ServiceInstances
		f := newYamlFlag(&services)
		v := `{users: [{instanceId: u1, host: 10.0.0.1, port: 8080, metadata: {zone: a}}], orders: [{host: orders.local, secure: true}]}`
		require.NoError(t, f.Set(v))

		require.NotNil(t, services)
		assert.Equal(t, []*loadbalancer.ServiceInstance{{
			InstanceID: "u1",
			Host:       "10.0.0.1",
			Port:       8080,
			Metadata:   map[string]string{"zone": "a"},
		}}, (*services)["users"])
		assert.Equal(t, "https", (*services)["orders"][0].Scheme())
		assert.Equal(t, v, f.String())
	})

	t.Run("set empty", func(t *testing.T) {
		var services *ServiceInstances
		f := newYamlFlag(&services)
		require.NoError(t, f.Set(""))
		require.NotNil(t, services)
		assert.Empty(t, *services)
		assert.Equal(t, "", f.String())
	})

	t.Run("unknown field", func(t *testing.T) {
		var services *ServiceInstances
		f := newYamlFlag(&services)
		assert.Error(t, f.Set(`{users: [{hostname: 10.0.0.1}]}`))
		assert.Nil(t, services)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		var services *ServiceInstances
		f := newYamlFlag(&services)
		assert.Error(t, f.Set(`This is not a valid YAML`))
	})

	t.Run("nil flag", func(t *testing.T) {
		var f *yamlFlag[ServiceInstances]
		assert.Equal(t, "", f.String())
	})
}
