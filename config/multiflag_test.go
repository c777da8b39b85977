package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestMultiFlagSet(t *testing.T) {
	f := &multiFlag{}
	require.NoError(t, f.Set("http://a.example.org/routes.yaml"))
	require.NoError(t, f.Set(" http://b.example.org/routes.yaml "))
	assert.Equal(t, multiFlag{"http://a.example.org/routes.yaml", "http://b.example.org/routes.yaml"}, *f)
	assert.Equal(t, "http://a.example.org/routes.yaml http://b.example.org/routes.yaml", f.String())

	assert.Error(t, f.Set("  "))
	assert.Len(t, *f, 2)
}

func TestMultiFlagYaml(t *testing.T) {
	f := &multiFlag{"http://flag.example.org"}
	require.NoError(t, yaml.Unmarshal([]byte("- http://a.example.org\n- http://b.example.org"), f))
	assert.Equal(t, multiFlag{"http://a.example.org", "http://b.example.org"}, *f)
}

func TestMultiFlagYamlErr(t *testing.T) {
	m := &multiFlag{}
	err := yaml.Unmarshal([]byte(`-foo=bar`), m)
	require.Error(t, err, "Failed to get error on wrong yaml input")
}
