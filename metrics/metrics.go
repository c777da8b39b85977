/*
Package metrics implements collection of the gateway's performance
metrics with prometheus.

The collected metrics include the duration of the route lookup, the
duration of serving a request by route, method and status code, the
duration of the upstream calls, the errors of the upstream calls and of
streaming the responses, the number of active routes, the invalid route
definitions by reason, and the completions of load balanced requests.

To enable metrics, a listener address needs to be configured. In this
case, the gateway starts an additional http listener, where the current
metrics values can be scraped.
*/
package metrics

import (
	"net/http"
	"time"
)

// Options of the prometheus metrics.
type Options struct {

	// Prefix is used as namespace of the metrics, "gateway" when
	// empty.
	Prefix string

	// HistogramBuckets of the duration metrics, the prometheus
	// default buckets when empty.
	HistogramBuckets []float64

	// EnableRuntimeMetrics registers the process and the Go runtime
	// collectors.
	EnableRuntimeMetrics bool
}

// Metrics is the interface of the metrics collected by the gateway
// components.
type Metrics interface {
	MeasureRouteLookup(start time.Time)
	MeasureServe(routeID, method string, code int, start time.Time)
	MeasureBackend(routeID, host string, start time.Time)
	IncErrorsBackend(routeID string)
	IncErrorsStreaming(routeID string)
	IncRoutingFailures()
	IncInvalidRoute(reason string)
	SetRoutes(n int)
	IncLoadBalancerCompletion(serviceID, status string)
	RegisterHandler(path string, mux *http.ServeMux)
}

// Default is a metrics implementation that discards everything.
var Default Metrics = Void{}

// Void discards the metrics.
type Void struct{}

func (Void) MeasureRouteLookup(time.Time)                {}
func (Void) MeasureServe(string, string, int, time.Time) {}
func (Void) MeasureBackend(string, string, time.Time)    {}
func (Void) IncErrorsBackend(string)                     {}
func (Void) IncErrorsStreaming(string)                   {}
func (Void) IncRoutingFailures()                         {}
func (Void) IncInvalidRoute(string)                      {}
func (Void) SetRoutes(int)                               {}
func (Void) IncLoadBalancerCompletion(string, string)    {}
func (Void) RegisterHandler(string, *http.ServeMux)      {}
