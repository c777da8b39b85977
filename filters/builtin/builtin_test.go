package builtin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/filters/filtertest"
	"github.com/zalando/gateway/routedef"
)

func createFilter(t *testing.T, def string) filters.Handler {
	t.Helper()
	spec, err := routedef.ParseSpec(def)
	require.NoError(t, err)

	h, err := MakeRegistry().Create(spec)
	require.NoError(t, err)
	return h
}

func runFilter(t *testing.T, def string, r *http.Request, b *filtertest.Backend) (*exchange.Exchange, *httptest.ResponseRecorder) {
	t.Helper()
	ex, w, err := filtertest.Run(r, createFilter(t, def), b)
	require.NoError(t, err)
	return ex, w
}

func withVars(vars map[string]string) filters.Handler {
	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
		ex.PutURITemplateVariables(vars)
		return next.Next(ex)
	})
}

func TestRegistryContainsAllFilters(t *testing.T) {
	r := MakeRegistry()
	for _, name := range []string{
		AddRequestHeaderName, AddResponseHeaderName, SetRequestHeaderName, SetResponseHeaderName,
		RemoveRequestHeaderName, RemoveResponseHeaderName, AddRequestParameterName, RewritePathName,
		StripPrefixName, PrefixPathName, SetPathName, SetStatusName, PreserveHostHeaderName,
		RequestRateLimiterName, CircuitBreakerName,
	} {
		assert.Contains(t, r, name)
	}
}

func TestInvalidArguments(t *testing.T) {
	for _, def := range []string{
		"AddRequestHeader",
		"SetStatus=NOT_A_STATUS",
		"SetStatus=42",
		"StripPrefix=-1",
		"RewritePath=/(,/x",
		"RequestRateLimiter=0,1",
		"RequestRateLimiter=1,1,unknown",
		"PreserveHostHeader=true",
	} {
		t.Run(def, func(t *testing.T) {
			spec, err := routedef.ParseSpec(def)
			require.NoError(t, err)
			_, err = MakeRegistry().Create(spec)
			assert.Error(t, err)
		})
	}
}
