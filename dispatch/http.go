package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/headers"
	"github.com/zalando/gateway/routing"
)

// StatusClientClosedRequest is reported when the client went away before
// the upstream responded.
const StatusClientClosedRequest = 499

var errResponseTimeout = errors.New("response timeout")

type httpFilter struct {
	options         Options
	client          *client
	requestHeaders  []headers.Filter
	responseHeaders []headers.Filter
}

// NewHTTP creates the filter calling http and https upstreams. The status
// and the filtered headers of the upstream response are set on the
// exchange, the body is left to the WriteResponse filter.
func NewHTTP(o Options) *filters.Filter {
	o = o.withDefaults()
	return newHTTP(o, newClient(o))
}

func newHTTP(o Options, c *client) *filters.Filter {
	return &filters.Filter{
		Name:  HTTPName,
		Order: HTTPOrder,
		Handler: &httpFilter{
			options:         o,
			client:          c,
			requestHeaders:  o.requestHeaderFilters(),
			responseHeaders: o.responseHeaderFilters(),
		},
	}
}

func timeouts(o Options, rt *routing.Route) (connect, response time.Duration) {
	connect, response = o.ConnectTimeout, o.ResponseTimeout
	if rt == nil {
		return
	}

	if rt.ConnectTimeout > 0 {
		connect = rt.ConnectTimeout
	}

	if rt.ResponseTimeout != 0 {
		response = rt.ResponseTimeout
	}

	return
}

func (f *httpFilter) newRequest(ctx context.Context, ex *exchange.Exchange) (*http.Request, error) {
	u := ex.RequestURL()
	body := ex.Request.Body
	if ex.Request.ContentLength == 0 {
		body = nil
	}

	req, err := http.NewRequestWithContext(ctx, ex.Request.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	req.ContentLength = ex.Request.ContentLength
	req.Header = headers.Apply(f.requestHeaders, ex.Request.Header, ex, headers.Request)
	if ex.PreserveHost() {
		req.Host = ex.OriginalRequest().Host
	}

	if u.User != nil {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(u.User.String())))
	}

	return req, nil
}

// mapError selects the status of a failed upstream call.
func mapError(ex *exchange.Exchange, ctx context.Context, err error) error {
	if ex.Context().Err() != nil {
		return filters.NewStatusError(StatusClientClosedRequest, err)
	}

	if errors.Is(context.Cause(ctx), errResponseTimeout) {
		return filters.NewStatusError(http.StatusGatewayTimeout, err)
	}

	var de *dialError
	if errors.As(err, &de) {
		if de.Timeout() {
			return filters.NewStatusError(http.StatusGatewayTimeout, err)
		}

		return filters.NewStatusError(http.StatusBadGateway, err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return filters.NewStatusError(http.StatusGatewayTimeout, err)
		}

		return filters.NewStatusError(http.StatusServiceUnavailable, err)
	}

	return filters.NewStatusError(http.StatusBadGateway, err)
}

func (f *httpFilter) Filter(ex *exchange.Exchange, next filters.Chain) error {
	if shouldSkip(ex, "http", "https") || !ex.MarkRouted() {
		return next.Next(ex)
	}

	rt := routing.FromExchange(ex)
	routeID := ""
	if rt != nil {
		routeID = rt.Id
	}

	connectTimeout, responseTimeout := timeouts(f.options, rt)
	ctx, cancel := context.WithCancelCause(ex.Context())
	req, err := f.newRequest(ctx, ex)
	if err != nil {
		cancel(nil)
		return fmt.Errorf("failed to map the upstream request: %w", err)
	}

	var timer *time.Timer
	if responseTimeout > 0 {
		timer = time.AfterFunc(responseTimeout, func() { cancel(errResponseTimeout) })
	}

	f.options.Log.Debugf("%sforwarding to %s", ex.LogPrefix(), req.URL)
	start := time.Now()
	rsp, err := f.client.transport(connectTimeout).RoundTrip(req)
	if timer != nil {
		timer.Stop()
	}

	f.options.Metrics.MeasureBackend(routeID, req.URL.Host, start)
	if err != nil {
		err = mapError(ex, ctx, err)
		cancel(nil)
		f.options.Metrics.IncErrorsBackend(routeID)
		f.options.Log.Errorf("%supstream call of route %s to %s failed: %v", ex.LogPrefix(), routeID, req.URL.Host, err)
		return err
	}

	names := make([]string, 0, len(rsp.Header))
	for name := range rsp.Header {
		names = append(names, name)
	}

	ex.Set(exchange.ClientResponseHeaderNamesKey, names)
	ex.Set(exchange.OriginalResponseContentTypeKey, rsp.Header.Get("Content-Type"))

	h := headers.Apply(f.responseHeaders, rsp.Header, ex, headers.Response)
	if h.Get("Content-Length") != "" {
		ex.Response.Header().Del("Transfer-Encoding")
	}

	for name, values := range h {
		for _, v := range values {
			ex.Response.Header().Add(name, v)
		}
	}

	ex.Response.SetStatusCode(rsp.StatusCode)
	ex.Set(exchange.ClientResponseKey, exchange.NewClientResponse(rsp.StatusCode, h, rsp.Body, func() { cancel(nil) }))
	return next.Next(ex)
}
