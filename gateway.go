package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/gateway/dispatch"
	"github.com/zalando/gateway/filters"
	filtersbuiltin "github.com/zalando/gateway/filters/builtin"
	"github.com/zalando/gateway/function"
	"github.com/zalando/gateway/headers"
	"github.com/zalando/gateway/loadbalancer"
	"github.com/zalando/gateway/logging"
	"github.com/zalando/gateway/metrics"
	"github.com/zalando/gateway/predicates"
	predicatesbuiltin "github.com/zalando/gateway/predicates/builtin"
	"github.com/zalando/gateway/proxy"
	"github.com/zalando/gateway/routedef"
	"github.com/zalando/gateway/routefile"
	"github.com/zalando/gateway/routing"
)

const (
	defaultReadHeaderTimeoutServer = time.Minute
	defaultRemoteRoutesTimeout     = 10 * time.Second
)

// Options to start the gateway.
type Options struct {

	// Network address that the gateway listens on.
	Address string

	// Network address of the /metrics endpoint. Empty disables it.
	SupportListener string

	// RoutesFile is a local route file, watched for changes.
	RoutesFile string

	// RoutesURLs are http or https URLs of route files, polled for
	// changes.
	RoutesURLs []string

	// DataClients are additional sources of route definitions.
	DataClients []routing.DataClient

	// PollInterval of the route sources.
	PollInterval time.Duration

	// WaitFirstRouteLoad blocks the start of the listener until the
	// first set of routes was loaded.
	WaitFirstRouteLoad bool

	// Use404 answers requests without a route, function or service
	// instance with 404 instead of 503.
	Use404 bool

	FailOnRouteDefinitionError bool

	// DefaultFilters are added to every route that does not disable
	// them.
	DefaultFilters         []*routedef.Spec
	DefaultFilterPlacement routing.DefaultFilterPlacement

	// CustomPredicates and CustomFilters extend the builtin
	// factories.
	CustomPredicates []predicates.Spec
	CustomFilters    []filters.Spec

	// Functions are served by the fn:// routes.
	Functions []function.Handle

	// Services are the static instances of the lb:// routes, by service
	// id.
	Services               map[string][]*loadbalancer.ServiceInstance
	LoadBalancerAlgorithm  loadbalancer.Algorithm
	LoadBalancerHintHeader string

	StreamingMediaTypes []string

	// Defaults of the routes without timeout metadata.
	ConnectTimeoutBackend  time.Duration
	ResponseTimeoutBackend time.Duration

	IdleConnsPerHost       int
	IdleConnTimeoutBackend time.Duration

	// XForwarded enables the X-Forwarded-* headers on the upstream
	// requests, Forwarded the RFC 7239 header.
	XForwarded *headers.XForwarded
	Forwarded  bool

	ReadTimeoutServer       time.Duration
	ReadHeaderTimeoutServer time.Duration
	WriteTimeoutServer      time.Duration
	IdleTimeoutServer       time.Duration
	MaxHeaderBytes          int

	// ShutdownDelay is waited after receiving the shutdown signal
	// before the listener is closed, to let load balancers in front
	// of the gateway notice.
	ShutdownDelay time.Duration

	ApplicationLogPrefix      string
	ApplicationLogOutput      io.Writer
	ApplicationLogLevel       string
	ApplicationLogJSONEnabled bool
	AccessLogOutput           io.Writer
	AccessLogDisabled         bool
	AccessLogJSONEnabled      bool

	MetricsPrefix        string
	HistogramBuckets     []float64
	EnableRuntimeMetrics bool
}

type closer interface{ Close() }

func (o *Options) createDataClients() ([]routing.DataClient, error) {
	var clients []routing.DataClient
	if o.RoutesFile != "" {
		clients = append(clients, routefile.Watch(o.RoutesFile))
	}

	for _, u := range o.RoutesURLs {
		c, err := routefile.RemoteWatch(&routefile.RemoteWatchOptions{
			RemoteFile:    u,
			FailOnStartup: true,
			HTTPTimeout:   defaultRemoteRoutesTimeout,
		})
		if err != nil {
			closeAll(clients)
			return nil, fmt.Errorf("error loading routes from %s: %w", u, err)
		}

		clients = append(clients, c)
	}

	return append(clients, o.DataClients...), nil
}

func closeAll(clients []routing.DataClient) {
	for _, c := range clients {
		if cc, ok := c.(closer); ok {
			cc.Close()
		}
	}
}

func (o *Options) createMetrics() metrics.Metrics {
	if o.SupportListener == "" {
		return metrics.Default
	}

	return metrics.NewPrometheus(metrics.Options{
		Prefix:               o.MetricsPrefix,
		HistogramBuckets:     o.HistogramBuckets,
		EnableRuntimeMetrics: o.EnableRuntimeMetrics,
	})
}

func (o *Options) createLoadBalancers() *loadbalancer.Static {
	lb := loadbalancer.NewStatic(o.LoadBalancerAlgorithm)
	for id, instances := range o.Services {
		for _, i := range instances {
			if i.ServiceID == "" {
				i.ServiceID = id
			}
		}

		lb.SetInstances(id, instances)
	}

	return lb
}

func (o *Options) predicateRegistry() predicates.Registry {
	r := predicatesbuiltin.MakeRegistry()
	for _, s := range o.CustomPredicates {
		r.Register(s)
	}

	return r
}

func (o *Options) filterRegistry() filters.Registry {
	r := filtersbuiltin.MakeRegistry()
	for _, s := range o.CustomFilters {
		r.Register(s)
	}

	return r
}

func listenAndServeQuit(h http.Handler, o *Options, sig chan os.Signal) error {
	readHeaderTimeout := o.ReadHeaderTimeoutServer
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = defaultReadHeaderTimeoutServer
	}

	srv := &http.Server{
		Addr:              o.Address,
		Handler:           h,
		ReadTimeout:       o.ReadTimeoutServer,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      o.WriteTimeoutServer,
		IdleTimeout:       o.IdleTimeoutServer,
		MaxHeaderBytes:    o.MaxHeaderBytes,
	}

	l, err := net.Listen("tcp", o.Address)
	if err != nil {
		return err
	}

	log.Infof("Listen on %v", l.Addr())

	shutdown := make(chan struct{})

	go func() {
		<-sig
		log.Infof("Got shutdown signal, wait %v for health check", o.ShutdownDelay)
		time.Sleep(o.ShutdownDelay)

		log.Info("Start shutdown")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Errorf("Failed to graceful shutdown: %v", err)
		}

		close(shutdown)
	}()

	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-shutdown
	return nil
}

func listenSupport(address string, m metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	m.RegisterHandler("/metrics", mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: defaultReadHeaderTimeoutServer}
	go func() {
		log.Infof("Support listener on %s", address)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Failed to start support listener on %s: %v", address, err)
		}
	}()

	return srv
}

// Run starts the gateway with the given options, and blocks until it
// receives SIGTERM or SIGINT.
func Run(o Options) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sig)
	return RunWithShutdown(o, sig, nil)
}

// RunWithShutdown starts the gateway and shuts it down gracefully when a
// value is received on sig. When done is not nil, it is closed after the
// server finished serving the in-flight requests.
func RunWithShutdown(o Options, sig chan os.Signal, done chan struct{}) error {
	if done != nil {
		defer close(done)
	}

	if err := logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogOutput:      o.ApplicationLogOutput,
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		AccessLogOutput:           o.AccessLogOutput,
		AccessLogDisabled:         o.AccessLogDisabled,
		AccessLogJSONEnabled:      o.AccessLogJSONEnabled,
	}); err != nil {
		return err
	}

	m := o.createMetrics()
	if o.SupportListener != "" {
		support := listenSupport(o.SupportListener, m)
		defer support.Close()
	}

	dataClients, err := o.createDataClients()
	if err != nil {
		return err
	}

	defer closeAll(dataClients)
	if len(dataClients) == 0 {
		log.Warning("no route source specified")
	}

	lg := logging.New()
	d := dispatch.New(dispatch.Options{
		Clients:                o.createLoadBalancers(),
		Functions:              function.NewCatalog(o.Functions...),
		Use404:                 o.Use404,
		LoadBalancerHintHeader: o.LoadBalancerHintHeader,
		StreamingMediaTypes:    o.StreamingMediaTypes,
		ConnectTimeout:         o.ConnectTimeoutBackend,
		ResponseTimeout:        o.ResponseTimeoutBackend,
		MaxIdleConnsPerHost:    o.IdleConnsPerHost,
		IdleConnTimeout:        o.IdleConnTimeoutBackend,
		XForwarded:             o.XForwarded,
		Forwarded:              o.Forwarded,
		Log:                    lg,
		Metrics:                m,
	})

	rt := routing.New(routing.Options{
		Predicates:                 o.predicateRegistry(),
		Filters:                    o.filterRegistry(),
		GlobalFilters:              d.GlobalFilters(),
		DefaultFilters:             o.DefaultFilters,
		DefaultFilterPlacement:     o.DefaultFilterPlacement,
		FailOnRouteDefinitionError: o.FailOnRouteDefinitionError,
		DataClients:                dataClients,
		PollInterval:               o.PollInterval,
		Log:                        lg,
		Metrics:                    m,
	})
	defer rt.Close()

	if o.WaitFirstRouteLoad && len(dataClients) > 0 {
		log.Info("Waiting for the first route load")
		select {
		case <-rt.FirstLoad():
		case <-sig:
			return nil
		}
	}

	p := proxy.WithParams(proxy.Params{
		Routing:           rt,
		Use404:            o.Use404,
		AccessLogDisabled: o.AccessLogDisabled,
		Closer:            d,
		Log:               lg,
		Metrics:           m,
	})
	defer p.Close()

	return listenAndServeQuit(p, &o, sig)
}
