package dispatch

import (
	"fmt"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/loadbalancer"
)

type loadBalancerClient struct {
	options Options
}

// NewLoadBalancerClient creates the filter resolving lb:// targets, and
// lb: prefixed ones, to a service instance. The chain continues with the
// target of the chosen instance, so that the HTTP or the WebSocket filter
// performs the call. The lifecycles of the service complete exactly once
// per request.
func NewLoadBalancerClient(o Options) *filters.Filter {
	return &filters.Filter{
		Name:    LoadBalancerClientName,
		Order:   LoadBalancerClientOrder,
		Handler: &loadBalancerClient{options: o.withDefaults()},
	}
}

func (f *loadBalancerClient) complete(lifecycles []loadbalancer.Lifecycle, c loadbalancer.CompletionContext) {
	for _, l := range lifecycles {
		l.OnComplete(c)
	}

	f.options.Metrics.IncLoadBalancerCompletion(c.Request.ServiceID, c.Status.String())
}

func statusCode(ex *exchange.Exchange) int {
	if cr := ex.ClientResponse(); cr != nil {
		return cr.StatusCode
	}

	return ex.Response.StatusCode()
}

func (f *loadBalancerClient) Filter(ex *exchange.Exchange, next filters.Chain) error {
	u := ex.RequestURL()
	prefix, _ := exchange.Value[string](ex, exchange.SchemePrefixKey)
	if u == nil || (u.Scheme != "lb" && prefix != "lb") {
		return next.Next(ex)
	}

	ex.AddOriginalRequestURL(u)
	serviceID := u.Hostname()
	req := &loadbalancer.Request{
		ServiceID:   serviceID,
		Hint:        ex.Request.Header.Get(f.options.LoadBalancerHintHeader),
		HTTPRequest: ex.Request,
	}

	var (
		lifecycles []loadbalancer.Lifecycle
		lb         loadbalancer.LoadBalancer
	)

	if f.options.Clients != nil {
		lifecycles = f.options.Clients.Lifecycles(serviceID)
		lb = f.options.Clients.LoadBalancer(serviceID)
	}

	for _, l := range lifecycles {
		l.OnStart(req)
	}

	var rsp loadbalancer.Response
	if lb != nil {
		var err error
		rsp, err = lb.Choose(ex.Context(), req)
		if err != nil {
			f.complete(lifecycles, loadbalancer.CompletionContext{Status: loadbalancer.Failed, Err: err, Request: req})
			return fmt.Errorf("failed to choose an instance of %s: %w", serviceID, err)
		}
	}

	if !rsp.HasServer() {
		f.complete(lifecycles, loadbalancer.CompletionContext{Status: loadbalancer.Discard, Request: req, Response: rsp})
		return &filters.NotFoundError{Message: "unable to find instance for " + serviceID, Use404: f.options.Use404}
	}

	scheme := rsp.Instance.Scheme()
	if prefix != "" {
		scheme = u.Scheme
	}

	target := *u
	target.Scheme = scheme
	target.Host = rsp.Instance.HostPort()
	ex.SetRequestURL(&target)
	ex.Set(exchange.LoadBalancerResponseKey, rsp)
	f.options.Log.Debugf("%sload balancer chose %s for %s", ex.LogPrefix(), &target, serviceID)

	for _, l := range lifecycles {
		l.OnStartRequest(req, rsp)
	}

	err := next.Next(ex)
	c := loadbalancer.CompletionContext{Status: loadbalancer.Success, Request: req, Response: rsp, StatusCode: statusCode(ex)}
	if err != nil {
		c.Status = loadbalancer.Failed
		c.Err = err
	}

	f.complete(lifecycles, c)
	return err
}
