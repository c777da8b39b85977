package dispatch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/routing"
)

// NewRouteToRequestURL creates the filter resolving the target URL from the
// URI of the matched route and the path and query of the current request.
// For composed URIs, like lb:ws://service, the outer scheme is stored as
// the scheme prefix and the inner URI is the target.
func NewRouteToRequestURL() *filters.Filter {
	return &filters.Filter{
		Name:    RouteToRequestURLName,
		Order:   RouteToRequestURLOrder,
		Handler: filters.HandlerFunc(routeToRequestURL),
	}
}

func incomingURL(r *http.Request) *url.URL {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}

	return &u
}

func routeToRequestURL(ex *exchange.Exchange, next filters.Chain) error {
	rt := routing.FromExchange(ex)
	if rt == nil || rt.URI == nil {
		return next.Next(ex)
	}

	target := rt.URI
	if target.Opaque != "" {
		inner, err := url.Parse(target.Opaque)
		if err != nil {
			return fmt.Errorf("invalid route uri %s: %w", rt.URI, err)
		}

		ex.Set(exchange.SchemePrefixKey, target.Scheme)
		target = inner
	}

	if target.Scheme == "lb" && target.Host == "" {
		return fmt.Errorf("invalid host in route uri %s", rt.URI)
	}

	ex.AddOriginalRequestURL(incomingURL(ex.OriginalRequest()))

	u := *ex.Request.URL
	u.Scheme = strings.ToLower(target.Scheme)
	u.Host = target.Host
	u.User = target.User
	u.Opaque = ""
	ex.SetRequestURL(&u)
	return next.Next(ex)
}

// NewWebsocketScheme creates the filter changing the target scheme of
// websocket upgrade requests from http and https to ws and wss.
func NewWebsocketScheme() *filters.Filter {
	return &filters.Filter{
		Name:  WebsocketSchemeName,
		Order: WebsocketSchemeOrder,
		Handler: filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
			changeSchemeIfWebsocketUpgrade(ex)
			return next.Next(ex)
		}),
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	for _, v := range r.Header.Values("Upgrade") {
		if strings.EqualFold(strings.TrimSpace(v), "websocket") {
			return true
		}
	}

	return false
}

func changeSchemeIfWebsocketUpgrade(ex *exchange.Exchange) {
	u := ex.RequestURL()
	if u == nil || !isWebsocketUpgrade(ex.Request) {
		return
	}

	var scheme string
	switch u.Scheme {
	case "http":
		scheme = "ws"
	case "https":
		scheme = "wss"
	default:
		return
	}

	wu := *u
	wu.Scheme = scheme
	ex.SetRequestURL(&wu)
}
