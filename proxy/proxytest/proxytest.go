/*
Package proxytest starts a gateway with in-memory routes for tests: the
builtin predicates and filters, the dispatch filters, a routing fed by a
test data client and the proxy handler behind an httptest server.
*/
package proxytest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"time"

	"github.com/zalando/gateway/dispatch"
	filterbuiltin "github.com/zalando/gateway/filters/builtin"
	"github.com/zalando/gateway/logging/loggingtest"
	predicatebuiltin "github.com/zalando/gateway/predicates/builtin"
	"github.com/zalando/gateway/proxy"
	"github.com/zalando/gateway/routedef"
	"github.com/zalando/gateway/routing"
	"github.com/zalando/gateway/routing/testdataclient"
)

type TestProxy struct {
	URL string
	Log *loggingtest.Logger

	// DataClient provides the routes. Updates are applied with the
	// poll interval of the routing options.
	DataClient *testdataclient.Client

	routing *routing.Routing
	proxy   *proxy.Proxy
	server  *httptest.Server
}

type Config struct {
	RoutingOptions  routing.Options
	DispatchOptions dispatch.Options
	ProxyParams     proxy.Params
	Routes          []*routedef.Route

	// WaitTime is the timeout of the initial route load, 3s when zero.
	WaitTime time.Duration
}

// New starts a proxy with routes and the default options.
func New(routes ...*routedef.Route) *TestProxy {
	return Config{Routes: routes}.Create()
}

// Create starts the proxy. It panics when the routes are not loaded within
// the wait time.
func (c Config) Create() *TestProxy {
	waitTime := 3 * time.Second
	if c.WaitTime > 0 {
		waitTime = c.WaitTime
	}

	tl := loggingtest.New()
	dc := testdataclient.New(c.Routes)

	if c.RoutingOptions.Predicates == nil {
		c.RoutingOptions.Predicates = predicatebuiltin.MakeRegistry()
	}

	if c.RoutingOptions.Filters == nil {
		c.RoutingOptions.Filters = filterbuiltin.MakeRegistry()
	}

	if c.RoutingOptions.PollInterval == 0 {
		c.RoutingOptions.PollInterval = 20 * time.Millisecond
	}

	if c.DispatchOptions.Log == nil {
		c.DispatchOptions.Log = tl
	}

	d := dispatch.New(c.DispatchOptions)
	c.RoutingOptions.GlobalFilters = slices.Concat(d.GlobalFilters(), c.RoutingOptions.GlobalFilters)
	c.RoutingOptions.DataClients = append(c.RoutingOptions.DataClients, dc)
	c.RoutingOptions.Log = tl

	rt := routing.New(c.RoutingOptions)
	select {
	case <-rt.FirstLoad():
	case <-time.After(waitTime):
		panic("routes not loaded")
	}

	c.ProxyParams.Routing = rt
	c.ProxyParams.Closer = d
	if c.ProxyParams.Log == nil {
		c.ProxyParams.Log = tl
	}

	pr := proxy.WithParams(c.ProxyParams)
	server := httptest.NewServer(pr)
	return &TestProxy{
		URL:        server.URL,
		Log:        tl,
		DataClient: dc,
		routing:    rt,
		proxy:      pr,
		server:     server,
	}
}

// Routing returns the routing of the proxy.
func (p *TestProxy) Routing() *routing.Routing { return p.routing }

// Client returns a client not following redirects.
func (p *TestProxy) Client() *http.Client {
	client := p.server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return client
}

func (p *TestProxy) Close() error {
	p.server.Close()
	p.routing.Close()
	p.Log.Close()
	return p.proxy.Close()
}

// GetBody issues a request with the given host and path, reads and closes
// the response body.
func (p *TestProxy) GetBody(host, path string) (*http.Response, []byte, error) {
	req, err := http.NewRequest("GET", p.URL+path, nil)
	if err != nil {
		return nil, nil, err
	}

	req.Host = host
	rsp, err := p.Client().Do(req)
	if err != nil {
		return nil, nil, err
	}

	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	return rsp, body, err
}
