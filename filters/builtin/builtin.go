/*
Package builtin provides the generic route filters: header and path
modifications, status setting, host preservation, request rate limiting
and circuit breaking.

Filters are referenced in route definitions by name, with the shortcut
or the named argument form:

	filters:
	- AddRequestHeader=X-Request-Red,Blue-{segment}
	- name: RequestRateLimiter
	  args:
	    replenishRate: 10
	    burstCapacity: 20
*/
package builtin

import "github.com/zalando/gateway/filters"

const (
	AddRequestHeaderName     = "AddRequestHeader"
	AddResponseHeaderName    = "AddResponseHeader"
	SetRequestHeaderName     = "SetRequestHeader"
	SetResponseHeaderName    = "SetResponseHeader"
	RemoveRequestHeaderName  = "RemoveRequestHeader"
	RemoveResponseHeaderName = "RemoveResponseHeader"
	AddRequestParameterName  = "AddRequestParameter"
	RewritePathName          = "RewritePath"
	StripPrefixName          = "StripPrefix"
	PrefixPathName           = "PrefixPath"
	SetPathName              = "SetPath"
	SetStatusName            = "SetStatus"
	PreserveHostHeaderName   = "PreserveHostHeader"
	RequestRateLimiterName   = "RequestRateLimiter"
	CircuitBreakerName       = "CircuitBreaker"
)

// MakeRegistry returns a registry with the filters of this package.
func MakeRegistry() filters.Registry {
	r := make(filters.Registry)
	for _, s := range []filters.Spec{
		NewAddRequestHeader(),
		NewAddResponseHeader(),
		NewSetRequestHeader(),
		NewSetResponseHeader(),
		NewRemoveRequestHeader(),
		NewRemoveResponseHeader(),
		NewAddRequestParameter(),
		NewRewritePath(),
		NewStripPrefix(),
		NewPrefixPath(),
		NewSetPath(),
		NewSetStatus(),
		NewPreserveHostHeader(),
		NewRequestRateLimiter(),
		NewCircuitBreaker(),
	} {
		r.Register(s)
	}

	return r
}
