package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace          = "gateway"
	promRouteSubsystem     = "route"
	promProxySubsystem     = "backend"
	promStreamingSubsystem = "streaming"
	promServeSubsystem     = "serve"
	promLBSubsystem        = "loadbalancer"
)

// Prometheus implements the prometheus metrics backend.
type Prometheus struct {
	routeLookupM       prometheus.Histogram
	routeErrorsM       prometheus.Counter
	routesM            prometheus.Gauge
	invalidRoutesM     *prometheus.CounterVec
	serveRouteM        *prometheus.HistogramVec
	serveRouteCounterM *prometheus.CounterVec
	proxyBackendM      *prometheus.HistogramVec
	backendErrorsM     *prometheus.CounterVec
	streamingErrorsM   *prometheus.CounterVec
	lbCompletionsM     *prometheus.CounterVec

	opts     Options
	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	if len(opts.HistogramBuckets) == 0 {
		opts.HistogramBuckets = prometheus.DefBuckets
	}

	p := &Prometheus{
		opts:     opts,
		registry: prometheus.NewRegistry(),
		routeLookupM: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promRouteSubsystem,
			Name:      "lookup_duration_seconds",
			Help:      "Duration in seconds of a route lookup.",
			Buckets:   opts.HistogramBuckets,
		}),
		routeErrorsM: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promRouteSubsystem,
			Name:      "error_total",
			Help:      "The total of requests without a matching route.",
		}),
		routesM: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: promRouteSubsystem,
			Name:      "active",
			Help:      "The number of routes in the active snapshot.",
		}),
		invalidRoutesM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promRouteSubsystem,
			Name:      "invalid_total",
			Help:      "The total of invalid route definitions by reason.",
		}, []string{"reason"}),
		serveRouteM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promServeSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of serving a request.",
			Buckets:   opts.HistogramBuckets,
		}, []string{"route", "method", "code"}),
		serveRouteCounterM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promServeSubsystem,
			Name:      "requests_total",
			Help:      "The total of served requests.",
		}, []string{"route", "method", "code"}),
		proxyBackendM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: promProxySubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of an upstream call.",
			Buckets:   opts.HistogramBuckets,
		}, []string{"route", "host"}),
		backendErrorsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promProxySubsystem,
			Name:      "error_total",
			Help:      "The total of failed upstream calls.",
		}, []string{"route"}),
		streamingErrorsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promStreamingSubsystem,
			Name:      "error_total",
			Help:      "The total of errors while streaming a response to the client.",
		}, []string{"route"}),
		lbCompletionsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: promLBSubsystem,
			Name:      "completions_total",
			Help:      "The total of load balanced requests by outcome.",
		}, []string{"service", "status"}),
	}

	p.registerMetrics()
	return p
}

// sinceS returns the seconds passed since the start time until now.
func sinceS(start time.Time) float64 {
	return time.Since(start).Seconds()
}

func (p *Prometheus) registerMetrics() {
	p.registry.MustRegister(
		p.routeLookupM,
		p.routeErrorsM,
		p.routesM,
		p.invalidRoutesM,
		p.serveRouteM,
		p.serveRouteCounterM,
		p.proxyBackendM,
		p.backendErrorsM,
		p.streamingErrorsM,
		p.lbCompletionsM,
	)

	// Register prometheus runtime collectors if required.
	if p.opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
}

func (p *Prometheus) getHandler() http.Handler {
	if p.handler == nil {
		p.handler = promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	}

	return p.handler
}

// RegisterHandler satisfies Metrics interface.
func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	mux.Handle(path, p.getHandler())
}

// MeasureRouteLookup satisfies Metrics interface.
func (p *Prometheus) MeasureRouteLookup(start time.Time) {
	p.routeLookupM.Observe(sinceS(start))
}

// MeasureServe satisfies Metrics interface.
func (p *Prometheus) MeasureServe(routeID, method string, code int, start time.Time) {
	c := strconv.Itoa(code)
	p.serveRouteM.WithLabelValues(routeID, method, c).Observe(sinceS(start))
	p.serveRouteCounterM.WithLabelValues(routeID, method, c).Inc()
}

// MeasureBackend satisfies Metrics interface.
func (p *Prometheus) MeasureBackend(routeID, host string, start time.Time) {
	p.proxyBackendM.WithLabelValues(routeID, host).Observe(sinceS(start))
}

// IncErrorsBackend satisfies Metrics interface.
func (p *Prometheus) IncErrorsBackend(routeID string) {
	p.backendErrorsM.WithLabelValues(routeID).Inc()
}

// IncErrorsStreaming satisfies Metrics interface.
func (p *Prometheus) IncErrorsStreaming(routeID string) {
	p.streamingErrorsM.WithLabelValues(routeID).Inc()
}

// IncRoutingFailures satisfies Metrics interface.
func (p *Prometheus) IncRoutingFailures() {
	p.routeErrorsM.Inc()
}

// IncInvalidRoute satisfies Metrics interface.
func (p *Prometheus) IncInvalidRoute(reason string) {
	p.invalidRoutesM.WithLabelValues(reason).Inc()
}

// SetRoutes satisfies Metrics interface.
func (p *Prometheus) SetRoutes(n int) {
	p.routesM.Set(float64(n))
}

// IncLoadBalancerCompletion satisfies Metrics interface.
func (p *Prometheus) IncLoadBalancerCompletion(serviceID, status string) {
	p.lbCompletionsM.WithLabelValues(serviceID, status).Inc()
}
