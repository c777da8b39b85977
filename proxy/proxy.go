package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/zalando/gateway/dispatch"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/logging"
	"github.com/zalando/gateway/metrics"
	"github.com/zalando/gateway/routing"
)

// Matcher returns the route of a request, or nil when no route matches.
// It is implemented by *routing.Routing.
type Matcher interface {
	Match(ex *exchange.Exchange) (*routing.Route, error)
}

// Proxy initialization options.
type Params struct {

	// Routing matches the requests. Required.
	Routing Matcher

	// Use404 makes requests without a matching route answered with 404
	// instead of 503.
	Use404 bool

	// AccessLogDisabled turns off the access log of the proxy.
	AccessLogDisabled bool

	// Closer, when set, is closed with the proxy, e.g. the dispatch
	// filters holding the upstream connections.
	Closer interface{ Close() }

	Log     logging.Logger
	Metrics metrics.Metrics
}

// Proxy implements the gateway as an http.Handler.
type Proxy struct {
	params  Params
	log     logging.Logger
	metrics metrics.Metrics
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string { return fmt.Sprintf("filter panic: %v", e.value) }

// WithParams returns an initialized Proxy.
func WithParams(p Params) *Proxy {
	if p.Log == nil {
		p.Log = logging.New()
	}

	if p.Metrics == nil {
		p.Metrics = metrics.Default
	}

	return &Proxy{params: p, log: p.Log, metrics: p.Metrics}
}

// tryCatch executes p, and returns the recovered panic of p as an
// error
func tryCatch(p func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			buf := make([]byte, 1024)
			l := runtime.Stack(buf, false)
			err = &panicError{value: v, stack: string(buf[:l])}
		}
	}()

	return p()
}

func (p *Proxy) do(ex *exchange.Exchange) (*routing.Route, error) {
	rt, err := p.params.Routing.Match(ex)
	if err != nil {
		return nil, err
	}

	if rt == nil {
		p.metrics.IncRoutingFailures()
		p.log.Debugf("%sno route for %s %s%s", ex.LogPrefix(), ex.Request.Method, ex.Request.Host, ex.Request.URL.Path)
		return nil, &filters.NotFoundError{Message: "no route found", Use404: p.params.Use404}
	}

	ex.Set(exchange.RouteKey, rt)
	return rt, tryCatch(func() error { return filters.Run(ex, rt.Filters) })
}

func errorCode(ex *exchange.Exchange, err error) int {
	if ex.Context().Err() != nil && errors.Is(err, context.Canceled) {
		return dispatch.StatusClientClosedRequest
	}

	return filters.ErrorStatus(err)
}

// send a premature error response
func (p *Proxy) errorResponse(ex *exchange.Exchange, rt *routing.Route, err error) int {
	id := "-"
	if rt != nil {
		id = rt.Id
	}

	if ex.Response.IsCommitted() {
		p.log.Errorf("%serror after the response of route %s was sent: %v", ex.LogPrefix(), id, err)
		return ex.Response.StatusCode()
	}

	code := errorCode(ex, err)
	var (
		nf *filters.NotFoundError
		pe *panicError
	)

	switch {
	case errors.As(err, &nf):
	case errors.As(err, &pe):
		p.log.Errorf("%serror while proxying, route %s, status code %d: %v\n%s", ex.LogPrefix(), id, code, err, pe.stack)
	default:
		p.log.Errorf("%serror while proxying, route %s, status code %d: %v", ex.LogPrefix(), id, code, err)
	}

	ex.DiscardClientResponse()
	w := ex.Response.Writer()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	fmt.Fprintln(w, http.StatusText(code))
	return code
}

// ServeHTTP matches the request, runs the filters of the route and sends
// the response.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lw := logging.NewLoggingWriter(w)
	ex := exchange.New(lw, r)

	var rt *routing.Route
	defer func() {
		if p.params.AccessLogDisabled {
			return
		}

		entry := &logging.AccessEntry{
			Request:      r,
			StatusCode:   lw.StatusCode(),
			ResponseSize: lw.Bytes(),
			RequestTime:  start,
			Duration:     time.Since(start),
			RequestID:    ex.ID(),
		}

		if rt != nil {
			entry.RouteID = rt.Id
		}

		logging.LogAccess(entry)
	}()

	rt, err := p.do(ex)
	code := ex.Response.StatusCode()
	if err != nil {
		code = p.errorResponse(ex, rt, err)
	} else {
		ex.Response.Commit()
		if lw.StatusCode() != 0 {
			code = lw.StatusCode()
		}
	}

	if rt != nil {
		p.metrics.MeasureServe(rt.Id, r.Method, code, start)
	}
}

// Close releases the resources of the proxy.
func (p *Proxy) Close() error {
	if p.params.Closer != nil {
		p.params.Closer.Close()
	}

	return nil
}
