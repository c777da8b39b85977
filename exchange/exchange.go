/*
Package exchange implements the request scoped state shared by the links of
a filter chain.

An Exchange is created by the proxy for every incoming request and is owned
exclusively by the goroutine serving that request. Attributes are stored
under a closed set of keys, each documented with the component that sets it
and the components that read it.
*/
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
)

// Key identifies an exchange attribute.
type Key int

const (
	// RouteKey holds the matched *routing.Route. Set by the proxy after
	// matching, read by the dispatch filters.
	RouteKey Key = iota

	// PredicateRouteKey holds the id of the route whose predicate is
	// being evaluated. Set by the route matcher, read by predicates that
	// log or cache per route.
	PredicateRouteKey

	// RequestURLKey holds the resolved target *url.URL. Set by the
	// RouteToRequestURL and load balancer filters, read by every
	// dispatch filter.
	RequestURLKey

	// OriginalRequestURLKey holds the ordered set of URLs the request
	// was known under before a rewrite. Appended to by filters that
	// rewrite the target.
	OriginalRequestURLKey

	// SchemePrefixKey holds the scheme prefix of composed route URIs,
	// e.g. "lb" for lb:ws://service. Set by RouteToRequestURL, read by
	// the load balancer filter.
	SchemePrefixKey

	// AlreadyRoutedKey reports whether a dispatch filter performed the
	// upstream call. Backed by MarkRouted.
	AlreadyRoutedKey

	// ClientResponseKey holds the upstream response handle. Set by the
	// HTTP dispatch filter, consumed by the response writing filter.
	ClientResponseKey

	// ClientResponseHeaderNamesKey holds the header names received from
	// the upstream before header filtering.
	ClientResponseHeaderNamesKey

	// PreserveHostHeaderKey reports whether the original Host header is
	// forwarded. Set by the PreserveHostHeader filter, read by the HTTP
	// and websocket dispatch filters.
	PreserveHostHeaderKey

	// URITemplateVariablesKey holds the map[string]string of variables
	// captured by the Path and Host predicates.
	URITemplateVariablesKey

	// CachedRequestBodyKey holds the []byte of a request body read by a
	// predicate.
	CachedRequestBodyKey

	// LoadBalancerResponseKey holds the loadbalancer.Response of the
	// chosen service instance.
	LoadBalancerResponseKey

	// OriginalResponseContentTypeKey holds the content type reported by
	// the upstream.
	OriginalResponseContentTypeKey

	keyCount
)

var keyNames = [keyCount]string{
	"route",
	"predicateRoute",
	"requestURL",
	"originalRequestURL",
	"schemePrefix",
	"alreadyRouted",
	"clientResponse",
	"clientResponseHeaderNames",
	"preserveHostHeader",
	"uriTemplateVariables",
	"cachedRequestBody",
	"loadBalancerResponse",
	"originalResponseContentType",
}

func (k Key) String() string {
	if k < 0 || k >= keyCount {
		return fmt.Sprintf("Key(%d)", int(k))
	}

	return keyNames[k]
}

// Exchange is the mutable per request context.
type Exchange struct {
	id       string
	original *http.Request
	attrs    [keyCount]any
	routed   atomic.Bool
	cloned   bool

	// Request is the current, possibly rewritten, request. Filters may
	// replace it.
	Request *http.Request

	// Response is the response under construction.
	Response *Response
}

// New creates an exchange for an incoming request. When the request carries
// an X-Request-Id header, it is used as the exchange id.
func New(w http.ResponseWriter, r *http.Request) *Exchange {
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}

	return &Exchange{
		id:       id,
		original: r,
		Request:  r,
		Response: newResponse(w),
	}
}

// ID returns the identifier used to correlate log entries of the request.
func (ex *Exchange) ID() string { return ex.id }

// LogPrefix returns the prefix used in log lines of this exchange.
func (ex *Exchange) LogPrefix() string { return "[" + ex.id + "] " }

// OriginalRequest returns the request as received by the gateway.
func (ex *Exchange) OriginalRequest() *http.Request { return ex.original }

// Context returns the context of the current request.
func (ex *Exchange) Context() context.Context { return ex.Request.Context() }

// Get returns the attribute stored under k.
func (ex *Exchange) Get(k Key) (any, bool) {
	if k == AlreadyRoutedKey {
		return ex.routed.Load(), true
	}

	v := ex.attrs[k]
	return v, v != nil
}

// Set stores an attribute. Setting AlreadyRoutedKey to true is equivalent
// to MarkRouted.
func (ex *Exchange) Set(k Key, v any) {
	if k == AlreadyRoutedKey {
		b, _ := v.(bool)
		ex.routed.Store(b)
		return
	}

	ex.attrs[k] = v
}

// Remove deletes an attribute.
func (ex *Exchange) Remove(k Key) {
	if k == AlreadyRoutedKey {
		ex.routed.Store(false)
		return
	}

	ex.attrs[k] = nil
}

// Value returns a typed attribute.
func Value[T any](ex *Exchange, k Key) (T, bool) {
	v, ok := ex.Get(k)
	if !ok {
		var zero T
		return zero, false
	}

	t, ok := v.(T)
	return t, ok
}

// MarkRouted sets the already-routed flag. It returns false when the flag
// was already set, in which case the caller must not call the upstream.
func (ex *Exchange) MarkRouted() bool {
	return ex.routed.CompareAndSwap(false, true)
}

// IsRouted tells whether a dispatch filter already took over the request.
func (ex *Exchange) IsRouted() bool { return ex.routed.Load() }

// RequestURL returns the resolved target URL, or nil.
func (ex *Exchange) RequestURL() *url.URL {
	u, _ := Value[*url.URL](ex, RequestURLKey)
	return u
}

// SetRequestURL sets the resolved target URL.
func (ex *Exchange) SetRequestURL(u *url.URL) { ex.Set(RequestURLKey, u) }

// AddOriginalRequestURL appends u to the original URL history unless an
// equal URL is already recorded.
func (ex *Exchange) AddOriginalRequestURL(u *url.URL) {
	if u == nil {
		return
	}

	urls, _ := Value[[]*url.URL](ex, OriginalRequestURLKey)
	s := u.String()
	for _, ui := range urls {
		if ui.String() == s {
			return
		}
	}

	ex.Set(OriginalRequestURLKey, append(urls, u))
}

// OriginalRequestURLs returns the original URL history in insertion order.
func (ex *Exchange) OriginalRequestURLs() []*url.URL {
	urls, _ := Value[[]*url.URL](ex, OriginalRequestURLKey)
	return urls
}

// PreserveHost tells whether the original Host header is forwarded.
func (ex *Exchange) PreserveHost() bool {
	b, _ := Value[bool](ex, PreserveHostHeaderKey)
	return b
}

// URITemplateVariables returns the variables captured during matching.
func (ex *Exchange) URITemplateVariables() map[string]string {
	m, _ := Value[map[string]string](ex, URITemplateVariablesKey)
	return m
}

// PutURITemplateVariables merges vars into the captured variables.
func (ex *Exchange) PutURITemplateVariables(vars map[string]string) {
	if len(vars) == 0 {
		return
	}

	m := ex.URITemplateVariables()
	merged := make(map[string]string, len(m)+len(vars))
	for k, v := range m {
		merged[k] = v
	}

	for k, v := range vars {
		merged[k] = v
	}

	ex.Set(URITemplateVariablesKey, merged)
}
