package routefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoutes = `
routes:
- id: foo
  uri: https://foo.example.org
  predicates: [Path=/foo]
  filters: [SetPath=/]
- id: bar
  uri: https://bar.example.org
  predicates: [Path=/bar]
  filters: [SetPath=/]
- id: baz
  uri: https://baz.example.org
  predicates: [Path=/baz]
  filters: [SetPath=/]
`

const testRoutesUpdated = `
routes:
- id: foo
  uri: https://foo.example.org
  predicates: [Path=/foo]
  filters: [SetPath=/]
- id: baz
  uri: https://baz-new.example.org
  predicates: [Path=/baz]
  filters: [SetPath=/]
`

const testRoutesInvalid = `
routes: invalid
`

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0600))
}

func TestOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "routes.yaml")
	writeFile(t, name, testRoutes)

	dc, err := Open(name)
	require.NoError(t, err)

	routes, err := dc.LoadAll()
	require.NoError(t, err)
	require.Len(t, routes, 3)
	assert.Equal(t, "foo", routes[0].Id)
	assert.Equal(t, "https://bar.example.org", routes[1].URI)

	upserted, deleted, err := dc.LoadUpdate()
	assert.NoError(t, err)
	assert.Empty(t, upserted)
	assert.Empty(t, deleted)
}

func TestOpenFails(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	name := filepath.Join(dir, "invalid.yaml")
	writeFile(t, name, testRoutesInvalid)
	_, err = Open(name)
	assert.ErrorContains(t, err, name)
}
