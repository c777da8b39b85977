package builtin

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/filters/filtertest"
)

func TestPathFilters(t *testing.T) {
	for _, tc := range []struct {
		def      string
		path     string
		vars     map[string]string
		expected string
	}{
		{def: "RewritePath=/red/?(?<segment>.*),/$\\{segment}", path: "/red/blue", expected: "/blue"},
		{def: "RewritePath=/red/?(?<segment>.*),/${segment}", path: "/red", expected: "/"},
		{def: "StripPrefix=2", path: "/name/blue/red", expected: "/red"},
		{def: "StripPrefix", path: "/name/blue/red/", expected: "/blue/red/"},
		{def: "StripPrefix=3", path: "/name/blue", expected: "/"},
		{def: "PrefixPath=/mypath", path: "/hello", expected: "/mypath/hello"},
		{def: "PrefixPath=mypath/", path: "/hello", expected: "/mypath/hello"},
		{def: "SetPath=/{segment}", path: "/red/blue", vars: map[string]string{"segment": "blue"}, expected: "/blue"},
	} {
		t.Run(tc.def, func(t *testing.T) {
			b := &filtertest.Backend{}
			ex, _, err := filtertest.Run(
				httptest.NewRequest("GET", "http://www.example.org"+tc.path+"?q=1", nil),
				withVars(tc.vars),
				createFilter(t, tc.def),
				b,
			)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, b.Request.URL.Path)
			assert.Equal(t, "q=1", b.Request.URL.RawQuery)
			assert.Equal(t, tc.path, ex.OriginalRequest().URL.Path)

			urls := ex.OriginalRequestURLs()
			require.Len(t, urls, 1)
			assert.Equal(t, tc.path, urls[0].Path)
		})
	}
}

func TestAddRequestParameter(t *testing.T) {
	b := &filtertest.Backend{}
	_, _, err := filtertest.Run(
		httptest.NewRequest("GET", "/get?foo=bar", nil),
		withVars(map[string]string{"segment": "blue"}),
		createFilter(t, "AddRequestParameter=red,{segment}"),
		b,
	)

	require.NoError(t, err)
	assert.Equal(t, "blue", b.Request.URL.Query().Get("red"))
	assert.Equal(t, "bar", b.Request.URL.Query().Get("foo"))
}
