/*
Package dispatch implements the global filters that resolve the target of a
matched route, perform the upstream call and write the upstream response to
the client.

The filters are ordered around the route filters:

	WriteResponse       -1           writes the upstream body once the chain returned
	RouteToRequestURL   10000        resolves the target URL from the route URI
	WebsocketScheme     10001        http/https to ws/wss for upgrade requests
	Function            10010        fn://name, in-process functions
	LoadBalancerClient  10150        lb://service, chooses a service instance
	WebSocket           MaxInt32-1   ws/wss, duplex relay
	HTTP                MaxInt32     http/https

Every dispatching filter checks the already-routed flag of the exchange and
the scheme of the target URL. When the flag is set or the scheme is handled
by another filter, it continues the chain unchanged. Setting the flag is a
compare-and-set, so at most one filter performs the upstream call of a
request.
*/
package dispatch

import (
	"math"
	"net/url"
	"time"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/function"
	"github.com/zalando/gateway/headers"
	"github.com/zalando/gateway/loadbalancer"
	"github.com/zalando/gateway/logging"
	"github.com/zalando/gateway/metrics"
)

// Orders of the global filters.
const (
	WriteResponseOrder      = -1
	RouteToRequestURLOrder  = 10000
	WebsocketSchemeOrder    = 10001
	FunctionOrder           = 10010
	LoadBalancerClientOrder = 10150
	WebSocketOrder          = math.MaxInt32 - 1
	HTTPOrder               = math.MaxInt32
)

// Names of the global filters.
const (
	WriteResponseName      = "WriteResponse"
	RouteToRequestURLName  = "RouteToRequestURL"
	WebsocketSchemeName    = "WebsocketScheme"
	FunctionName           = "Function"
	LoadBalancerClientName = "LoadBalancerClient"
	WebSocketName          = "WebSocket"
	HTTPName               = "HTTP"
)

// DefaultLoadBalancerHintHeader carries the hint of hashing load balancer
// algorithms.
const DefaultLoadBalancerHintHeader = "X-LB-Hint"

// DefaultStreamingMediaTypes are flushed chunk by chunk.
var DefaultStreamingMediaTypes = []string{
	"text/event-stream",
	"application/x-ndjson",
	"application/stream+json",
}

// Options of the dispatch filters.
type Options struct {

	// Clients provides the load balancers. Without it, lb:// routes
	// are answered as not found.
	Clients loadbalancer.ClientFactory

	// Functions is the catalog of the fn:// routes.
	Functions *function.Catalog

	// Use404 answers requests without a route, a function or a service
	// instance with 404 instead of 503.
	Use404 bool

	// LoadBalancerHintHeader names the request header passed to the
	// load balancer as hint.
	LoadBalancerHintHeader string

	// StreamingMediaTypes are the response content types written with a
	// flush after every chunk.
	StreamingMediaTypes []string

	// ConnectTimeout and ResponseTimeout apply to routes without
	// timeout metadata. Zero means no timeout.
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration

	// MaxIdleConnsPerHost and IdleConnTimeout configure the pooling of
	// upstream connections.
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// XForwarded adds the X-Forwarded-* headers when set.
	XForwarded *headers.XForwarded

	// Forwarded adds the RFC 7239 Forwarded header.
	Forwarded bool

	// RequestHeaderFilters and ResponseHeaderFilters are applied after
	// the builtin header filters.
	RequestHeaderFilters  []headers.Filter
	ResponseHeaderFilters []headers.Filter

	Log     logging.Logger
	Metrics metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.LoadBalancerHintHeader == "" {
		o.LoadBalancerHintHeader = DefaultLoadBalancerHintHeader
	}

	if o.StreamingMediaTypes == nil {
		o.StreamingMediaTypes = DefaultStreamingMediaTypes
	}

	if o.MaxIdleConnsPerHost <= 0 {
		o.MaxIdleConnsPerHost = 64
	}

	if o.IdleConnTimeout <= 0 {
		o.IdleConnTimeout = 30 * time.Second
	}

	if o.Log == nil {
		o.Log = logging.New()
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	return o
}

func (o Options) requestHeaderFilters() []headers.Filter {
	f := []headers.Filter{headers.RemoveHopByHop{}}
	if o.XForwarded != nil {
		f = append(f, *o.XForwarded)
	}

	if o.Forwarded {
		f = append(f, headers.Forwarded{})
	}

	return append(f, o.RequestHeaderFilters...)
}

func (o Options) responseHeaderFilters() []headers.Filter {
	f := []headers.Filter{headers.RemoveHopByHop{}, headers.TransferEncodingNormalization{}}
	return append(f, o.ResponseHeaderFilters...)
}

// Dispatch holds the global filters and the upstream clients they share.
type Dispatch struct {
	filters []*filters.Filter
	client  *client
}

// New creates the global filters.
func New(o Options) *Dispatch {
	o = o.withDefaults()
	c := newClient(o)
	return &Dispatch{
		client: c,
		filters: []*filters.Filter{
			NewWriteResponse(o),
			NewRouteToRequestURL(),
			NewWebsocketScheme(),
			NewFunction(o),
			NewLoadBalancerClient(o),
			newWebSocket(o, c),
			newHTTP(o, c),
		},
	}
}

// GlobalFilters returns the filters added to every route.
func (d *Dispatch) GlobalFilters() []*filters.Filter {
	return d.filters
}

// Close releases the idle upstream connections.
func (d *Dispatch) Close() {
	d.client.closeIdleConnections()
}

// shouldSkip tells whether a dispatching filter continues the chain without
// acting: the request was routed already, or the target scheme is not one
// of schemes.
func shouldSkip(ex *exchange.Exchange, schemes ...string) bool {
	if ex.IsRouted() {
		return true
	}

	return !hasScheme(ex.RequestURL(), schemes...)
}

func hasScheme(u *url.URL, schemes ...string) bool {
	if u == nil {
		return false
	}

	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}

	return false
}
