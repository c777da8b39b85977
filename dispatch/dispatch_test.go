package dispatch

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/loadbalancer"
	"github.com/zalando/gateway/predicates"
	"github.com/zalando/gateway/routing"
)

func testRoute(t *testing.T, uri string) *routing.Route {
	t.Helper()
	u, err := url.Parse(uri)
	require.NoError(t, err)
	return &routing.Route{Id: "test", URI: u, Predicate: predicates.Always()}
}

// serve runs the global filters of d and extra on a new exchange for r,
// routed to rt, and commits the response when the chain succeeds, like the
// proxy does.
func serve(d *Dispatch, rt *routing.Route, w http.ResponseWriter, r *http.Request, extra ...*filters.Filter) (*exchange.Exchange, error) {
	ex := exchange.New(w, r)
	ex.Set(exchange.RouteKey, rt)

	f := append(slices.Clone(d.GlobalFilters()), extra...)
	filters.Sort(f)
	err := filters.Run(ex, f)
	if err == nil {
		ex.Response.Commit()
	}

	return ex, err
}

func serveRecorded(t *testing.T, d *Dispatch, uri string, r *http.Request, extra ...*filters.Filter) (*exchange.Exchange, *httptest.ResponseRecorder, error) {
	t.Helper()
	w := httptest.NewRecorder()
	ex, err := serve(d, testRoute(t, uri), w, r, extra...)
	return ex, w, err
}

// probe records the target URL seen at its order and continues.
type probe struct {
	mu  sync.Mutex
	url *url.URL
}

func (p *probe) filter(order int) *filters.Filter {
	return &filters.Filter{
		Name:  "probe",
		Order: order,
		Handler: filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
			p.mu.Lock()
			if u := ex.RequestURL(); u != nil {
				c := *u
				p.url = &c
			}

			p.mu.Unlock()
			return next.Next(ex)
		}),
	}
}

func (p *probe) URL() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// markRouted prevents the dispatch filters from calling upstreams.
func markRouted() *filters.Filter {
	return &filters.Filter{
		Name:  "markRouted",
		Order: LoadBalancerClientOrder - 1,
		Handler: filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
			ex.MarkRouted()
			return next.Next(ex)
		}),
	}
}

type lifecycleCall struct {
	name   string
	status loadbalancer.CompletionStatus
	code   int
}

type recordingLifecycle struct {
	mu    sync.Mutex
	calls []lifecycleCall
}

func (l *recordingLifecycle) record(c lifecycleCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *recordingLifecycle) OnStart(*loadbalancer.Request) {
	l.record(lifecycleCall{name: "start"})
}

func (l *recordingLifecycle) OnStartRequest(*loadbalancer.Request, loadbalancer.Response) {
	l.record(lifecycleCall{name: "startRequest"})
}

func (l *recordingLifecycle) OnComplete(c loadbalancer.CompletionContext) {
	l.record(lifecycleCall{name: "complete", status: c.Status, code: c.StatusCode})
}

func (l *recordingLifecycle) Calls() []lifecycleCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}
