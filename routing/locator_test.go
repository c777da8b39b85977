package routing

import (
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/filters/filtertest"
	"github.com/zalando/gateway/logging/loggingtest"
	"github.com/zalando/gateway/metrics/metricstest"
	"github.com/zalando/gateway/predicates/builtin"
	"github.com/zalando/gateway/routedef"
)

func specs(t *testing.T, text ...string) []*routedef.Spec {
	t.Helper()
	var s []*routedef.Spec
	for _, ti := range text {
		si, err := routedef.ParseSpec(ti)
		require.NoError(t, err)
		s = append(s, si)
	}

	return s
}

func testFilters() filters.Registry {
	r := make(filters.Registry)
	for _, name := range []string{"A", "B", "C", "Default1", "Default2"} {
		r.Register(&filtertest.Filter{FilterName: name})
	}

	r.Register(&filtertest.Filter{FilterName: "Early", FilterOrder: -5})
	r.Register(&filtertest.Filter{FilterName: "Reserved", FilterOrder: math.MaxInt32 - 1})
	return r
}

func testOptions() Options {
	return Options{
		Predicates: builtin.MakeRegistry(),
		Filters:    testFilters(),
	}
}

func filterNames(r *Route) []string {
	var names []string
	for _, f := range r.Filters {
		names = append(names, f.Name)
	}

	return names
}

func nopHandler() filters.Handler {
	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error { return next.Next(ex) })
}

func TestBuildRequiresID(t *testing.T) {
	_, err := NewLocator(testOptions()).Build(&routedef.Route{URI: "http://www.example.org"})
	assert.Equal(t, ReasonMissingID, Reason(err))
}

func TestBuildURI(t *testing.T) {
	l := NewLocator(testOptions())
	for _, tt := range []struct {
		uri   string
		valid bool
	}{
		{"http://www.example.org", true},
		{"lb://service", true},
		{"lb:ws://service", true},
		{"fn://uppercase", true},
		{"no://op", true},
		{"", false},
		{"www.example.org/foo", false},
		{"lb:ws:service", false},
		{"http://www.example.org/%zz", false},
	} {
		t.Run(tt.uri, func(t *testing.T) {
			r, err := l.Build(&routedef.Route{Id: "r", URI: tt.uri})
			if !tt.valid {
				assert.Equal(t, ReasonInvalidURI, Reason(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.uri, r.URI.String())
		})
	}
}

func TestBuildUnknownNames(t *testing.T) {
	l := NewLocator(testOptions())

	_, err := l.Build(&routedef.Route{Id: "r", URI: "http://www.example.org", Predicates: specs(t, "Missing=foo")})
	assert.Equal(t, ReasonUnknownPredicate, Reason(err))

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "r", ce.RouteID)

	_, err = l.Build(&routedef.Route{Id: "r", URI: "http://www.example.org", Filters: specs(t, "Missing=foo")})
	assert.Equal(t, ReasonUnknownFilter, Reason(err))

	_, err = l.Build(&routedef.Route{Id: "r", URI: "http://www.example.org", Predicates: specs(t, "Path")})
	assert.Equal(t, ReasonInvalidPredicateParams, Reason(err))
}

func TestBuildRejectsReservedOrders(t *testing.T) {
	_, err := NewLocator(testOptions()).Build(&routedef.Route{
		Id:      "r",
		URI:     "http://www.example.org",
		Filters: specs(t, "Reserved"),
	})

	assert.Equal(t, ReasonInvalidFilterParams, Reason(err))
}

func TestBuildAndsPredicates(t *testing.T) {
	r, err := NewLocator(testOptions()).Build(&routedef.Route{
		Id:         "r",
		URI:        "http://www.example.org",
		Predicates: specs(t, "Path=/foo", "Method=POST"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Path, Method", r.Predicate.Names())

	ex := exchange.New(httptest.NewRecorder(), httptest.NewRequest("POST", "/foo", nil))
	assert.True(t, r.Predicate.Test(ex))

	ex = exchange.New(httptest.NewRecorder(), httptest.NewRequest("GET", "/foo", nil))
	assert.False(t, r.Predicate.Test(ex))
}

func TestBuildWithoutPredicatesMatchesAll(t *testing.T) {
	r, err := NewLocator(testOptions()).Build(&routedef.Route{Id: "r", URI: "http://www.example.org"})
	require.NoError(t, err)

	ex := exchange.New(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/anything", nil))
	assert.True(t, r.Predicate.Test(ex))
}

func TestBuildFilterOrder(t *testing.T) {
	o := testOptions()
	o.GlobalFilters = []*filters.Filter{
		{Name: "GlobalLast", Order: 10000, Handler: nopHandler()},
		{Name: "GlobalFirst", Order: -1, Handler: nopHandler()},
	}

	o.DefaultFilters = specs(t, "Default1", "Default2")
	def := &routedef.Route{Id: "r", URI: "http://www.example.org", Filters: specs(t, "A", "Early", "C")}

	t.Run("defaults before route filters", func(t *testing.T) {
		r, err := NewLocator(o).Build(def)
		require.NoError(t, err)
		assert.Equal(t, []string{"Early", "GlobalFirst", "Default1", "A", "Default2", "C", "GlobalLast"}, filterNames(r))
	})

	t.Run("defaults after route filters", func(t *testing.T) {
		o := o
		o.DefaultFilterPlacement = AfterRouteFilters
		r, err := NewLocator(o).Build(def)
		require.NoError(t, err)
		assert.Equal(t, []string{"Early", "GlobalFirst", "A", "Default1", "Default2", "C", "GlobalLast"}, filterNames(r))
	})

	t.Run("defaults disabled", func(t *testing.T) {
		def := *def
		def.DisableDefaultFilters = true
		r, err := NewLocator(o).Build(&def)
		require.NoError(t, err)
		assert.Equal(t, []string{"Early", "GlobalFirst", "A", "C", "GlobalLast"}, filterNames(r))
	})
}

func TestBuildTimeouts(t *testing.T) {
	for _, tt := range []struct {
		title    string
		metadata map[string]any
		connect  time.Duration
		response time.Duration
		invalid  bool
	}{{
		title: "no metadata",
	}, {
		title:    "milliseconds",
		metadata: map[string]any{ConnectTimeoutKey: 100, ResponseTimeoutKey: float64(50)},
		connect:  100 * time.Millisecond,
		response: 50 * time.Millisecond,
	}, {
		title:    "strings",
		metadata: map[string]any{ConnectTimeoutKey: "200", ResponseTimeoutKey: "1.5s"},
		connect:  200 * time.Millisecond,
		response: 1500 * time.Millisecond,
	}, {
		title:    "disabled response timeout",
		metadata: map[string]any{ResponseTimeoutKey: -1},
		response: -1,
	}, {
		title:    "negative connect timeout",
		metadata: map[string]any{ConnectTimeoutKey: -1},
		invalid:  true,
	}, {
		title:    "invalid value",
		metadata: map[string]any{ResponseTimeoutKey: "soon"},
		invalid:  true,
	}, {
		title:    "fraction of a millisecond",
		metadata: map[string]any{ResponseTimeoutKey: 1.5},
		invalid:  true,
	}} {
		t.Run(tt.title, func(t *testing.T) {
			r, err := NewLocator(testOptions()).Build(&routedef.Route{Id: "r", URI: "http://www.example.org", Metadata: tt.metadata})
			if tt.invalid {
				assert.Equal(t, ReasonInvalidMetadata, Reason(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.connect, r.ConnectTimeout)
			assert.Equal(t, tt.response, r.ResponseTimeout)
		})
	}
}

func TestBuildAll(t *testing.T) {
	defs := []*routedef.Route{
		{Id: "b", URI: "http://b.example.org", Order: 1},
		{Id: "invalid", URI: "http://www.example.org", Filters: specs(t, "Missing")},
		{Id: "a", URI: "http://a.example.org", Order: -1},
		{Id: "c", URI: "http://c.example.org", Order: 1},
	}

	t.Run("drops invalid definitions", func(t *testing.T) {
		log := loggingtest.New()
		defer log.Close()

		m := &metricstest.MockMetrics{}
		o := testOptions()
		o.Log = log
		o.Metrics = m

		routes, err := NewLocator(o).BuildAll(defs)
		require.NoError(t, err)

		var ids []string
		for _, r := range routes {
			ids = append(ids, r.Id)
		}

		assert.Equal(t, []string{"a", "b", "c"}, ids)
		assert.NoError(t, log.WaitFor(`invalid route "invalid"`, time.Second))
		assert.Equal(t, int64(1), m.Counter("invalidroute."+ReasonUnknownFilter))
	})

	t.Run("fails on invalid definitions", func(t *testing.T) {
		o := testOptions()
		o.FailOnRouteDefinitionError = true
		_, err := NewLocator(o).BuildAll(defs)
		assert.Equal(t, ReasonUnknownFilter, Reason(err))
	})
}
