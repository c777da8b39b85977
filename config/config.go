package config

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/zalando/gateway"
	"github.com/zalando/gateway/dispatch"
	"github.com/zalando/gateway/headers"
	"github.com/zalando/gateway/loadbalancer"
	"github.com/zalando/gateway/routedef"
	"github.com/zalando/gateway/routing"
)

// ServiceInstances are the static instances of the load balanced services,
// by service id.
type ServiceInstances map[string][]*loadbalancer.ServiceInstance

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address                    string                 `yaml:"address"`
	SupportListener            string                 `yaml:"support-listener"`
	NoRouteStatus404           bool                   `yaml:"no-route-status-404"`
	ReadTimeoutServer          time.Duration          `yaml:"read-timeout-server"`
	ReadHeaderTimeoutServer    time.Duration          `yaml:"read-header-timeout-server"`
	WriteTimeoutServer         time.Duration          `yaml:"write-timeout-server"`
	IdleTimeoutServer          time.Duration          `yaml:"idle-timeout-server"`
	MaxHeaderBytes             int                    `yaml:"max-header-bytes"`
	WaitForHealthcheckInterval time.Duration          `yaml:"wait-for-healthcheck-interval"`
	StreamingMediaTypes        *listFlag              `yaml:"streaming-media-types"`
	ForwardedHeadersList       *listFlag              `yaml:"forwarded-headers"`
	ForwardedHeaders           *headers.XForwarded    `yaml:"-"`
	RFC7239Forwarded           bool                   `yaml:"forwarded"`
	ProxyPreserveHost          bool                   `yaml:"proxy-preserve-host"`
	Services                   *ServiceInstances      `yaml:"services"`
	LoadBalancerAlgorithmName  string                 `yaml:"lb-algorithm"`
	LoadBalancerAlgorithm      loadbalancer.Algorithm `yaml:"-"`
	LoadBalancerHintHeader     string                 `yaml:"lb-hint-header"`

	// logging, metrics:
	ApplicationLogLevel          log.Level `yaml:"-"`
	ApplicationLogLevelString    string    `yaml:"application-log-level"`
	ApplicationLogPrefix         string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled    bool      `yaml:"application-log-json-enabled"`
	AccessLogDisabled            bool      `yaml:"access-log-disabled"`
	AccessLogJSONEnabled         bool      `yaml:"access-log-json-enabled"`
	MetricsPrefix                string    `yaml:"metrics-prefix"`
	RuntimeMetrics               bool      `yaml:"runtime-metrics"`
	HistogramMetricBucketsString string    `yaml:"histogram-metric-buckets"`
	HistogramMetricBuckets       []float64 `yaml:"-"`

	// route sources:
	RoutesFile                 string                         `yaml:"routes-file"`
	RoutesURLs                 multiFlag                      `yaml:"routes-urls"`
	SourcePollTimeout          int64                          `yaml:"source-poll-timeout"`
	WaitFirstRouteLoad         bool                           `yaml:"wait-first-route-load"`
	FailOnRouteDefinitionError bool                           `yaml:"fail-on-route-definition-error"`
	DefaultFilters             *defaultFiltersFlags           `yaml:"default-filters"`
	DefaultFilterPlacementName string                         `yaml:"default-filter-placement"`
	DefaultFilterPlacement     routing.DefaultFilterPlacement `yaml:"-"`

	// upstream:
	ConnectTimeoutBackend  time.Duration `yaml:"connect-timeout-backend"`
	ResponseTimeoutBackend time.Duration `yaml:"response-timeout-backend"`
	IdleConnsPerHost       int           `yaml:"idle-conns-num"`
	IdleConnTimeoutBackend time.Duration `yaml:"idle-conn-timeout-backend"`
}

const (
	defaultAddress                 = ":8080"
	defaultSupportListener         = ":9911"
	defaultSourcePollTimeout       = int64(3000)
	defaultApplicationLogPrefix    = "[APP]"
	defaultApplicationLogLevel     = "INFO"
	defaultMetricsPrefix           = "gateway"
	defaultIdleConnsPerHost        = 64
	defaultIdleConnTimeoutBackend  = 30 * time.Second
	defaultReadTimeoutServer       = 5 * time.Minute
	defaultReadHeaderTimeoutServer = 60 * time.Second
	defaultWriteTimeoutServer      = 0
	defaultIdleTimeoutServer       = 60 * time.Second
	defaultMaxHeaderBytes          = 1 << 20
	defaultForwardedHeaders        = "X-Forwarded-For,X-Forwarded-Host,X-Forwarded-Proto,X-Forwarded-Port,X-Forwarded-Prefix,append"

	placementBefore = "before"
	placementAfter  = "after"

	defaultFiltersUsage  = "filter added to every route, in the shortcut form Name=arg0,arg1, may be repeated"
	routesURLUsage       = "http or https URL of a route file, polled for changes, may be repeated"
	servicesUsage        = "static service instances for lb:// routes in YAML format, use flow-style for convenience, e.g. {service: [{host: 10.0.0.1, port: 8080}]}"
	forwardedHeaderUsage = "comma separated list of the X-Forwarded-* headers set on upstream requests, 'append' keeps the received values. Empty disables them"
)

var forwardedHeadersAllowed = []string{
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
	"X-Forwarded-Port",
	"X-Forwarded-Prefix",
	"append",
}

func NewConfig() *Config {
	cfg := new(Config)
	cfg.StreamingMediaTypes = commaListFlag()
	cfg.ForwardedHeadersList = commaListFlag(forwardedHeadersAllowed...)
	cfg.ForwardedHeadersList.Set(defaultForwardedHeaders)
	cfg.DefaultFilters = &defaultFiltersFlags{}

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", defaultAddress, "network address that the gateway should listen on")
	flag.StringVar(&cfg.SupportListener, "support-listener", defaultSupportListener, "network address used for exposing the /metrics endpoint. An empty value disables support endpoint.")
	flag.BoolVar(&cfg.NoRouteStatus404, "no-route-status-404", false, "answer requests without a matching route, function or service instance with 404 instead of 503")
	flag.DurationVar(&cfg.ReadTimeoutServer, "read-timeout-server", defaultReadTimeoutServer, "set ReadTimeout for http server connections")
	flag.DurationVar(&cfg.ReadHeaderTimeoutServer, "read-header-timeout-server", defaultReadHeaderTimeoutServer, "set ReadHeaderTimeout for http server connections")
	flag.DurationVar(&cfg.WriteTimeoutServer, "write-timeout-server", defaultWriteTimeoutServer, "set WriteTimeout for http server connections, 0 disables it for streaming responses")
	flag.DurationVar(&cfg.IdleTimeoutServer, "idle-timeout-server", defaultIdleTimeoutServer, "set IdleTimeout for http server connections")
	flag.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", defaultMaxHeaderBytes, "set MaxHeaderBytes for http server connections")
	flag.DurationVar(&cfg.WaitForHealthcheckInterval, "wait-for-healthcheck-interval", 0, "period waiting to become unhealthy in the load balancer pool in front of the gateway before shutdown")
	flag.Var(cfg.StreamingMediaTypes, "streaming-media-types", "comma separated list of response content types flushed after every chunk, defaults to "+strings.Join(dispatch.DefaultStreamingMediaTypes, ","))
	flag.Var(cfg.ForwardedHeadersList, "forwarded-headers", forwardedHeaderUsage)
	flag.BoolVar(&cfg.RFC7239Forwarded, "forwarded", false, "set the RFC 7239 Forwarded header on upstream requests")
	flag.BoolVar(&cfg.ProxyPreserveHost, "proxy-preserve-host", false, "flag indicating to preserve the incoming request 'Host' header in the outgoing requests")
	flag.Var(newYamlFlag(&cfg.Services), "services", servicesUsage)
	flag.StringVar(&cfg.LoadBalancerAlgorithmName, "lb-algorithm", loadbalancer.RoundRobin.String(), "algorithm choosing the service instances: roundRobin, random, consistentHash or powerOfRandomNChoices")
	flag.StringVar(&cfg.LoadBalancerHintHeader, "lb-hint-header", dispatch.DefaultLoadBalancerHintHeader, "request header passed to the load balancer as hint, e.g. the key of consistentHash")

	// logging, metrics:
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", defaultApplicationLogLevel, "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", defaultApplicationLogPrefix, "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", defaultMetricsPrefix, "namespace of the exported metrics")
	flag.BoolVar(&cfg.RuntimeMetrics, "runtime-metrics", true, "enables reporting the Go runtime and the process metrics")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for prometheus histograms, must be a comma-separated list of numbers")

	// route sources:
	flag.StringVar(&cfg.RoutesFile, "routes-file", "", "file containing route definitions, watched for changes")
	flag.Var(&cfg.RoutesURLs, "routes-url", routesURLUsage)
	flag.Int64Var(&cfg.SourcePollTimeout, "source-poll-timeout", defaultSourcePollTimeout, "polling timeout of the routing data sources, in milliseconds")
	flag.BoolVar(&cfg.WaitFirstRouteLoad, "wait-first-route-load", false, "prevent starting the listener before the first set of routes was loaded")
	flag.BoolVar(&cfg.FailOnRouteDefinitionError, "fail-on-route-definition-error", false, "reject a whole route update when one of the definitions is invalid, instead of dropping the invalid definition")
	flag.Var(cfg.DefaultFilters, "default-filters", defaultFiltersUsage)
	flag.StringVar(&cfg.DefaultFilterPlacementName, "default-filter-placement", placementBefore, "placement of the default filters relative to the route filters with equal orders: before or after")

	// upstream:
	flag.DurationVar(&cfg.ConnectTimeoutBackend, "connect-timeout-backend", 0, "connect timeout of the routes without connect-timeout metadata, 0 means no timeout")
	flag.DurationVar(&cfg.ResponseTimeoutBackend, "response-timeout-backend", 0, "response timeout of the routes without response-timeout metadata, 0 means no timeout")
	flag.IntVar(&cfg.IdleConnsPerHost, "idle-conns-num", defaultIdleConnsPerHost, "maximum idle connections per upstream host")
	flag.DurationVar(&cfg.IdleConnTimeoutBackend, "idle-conn-timeout-backend", defaultIdleConnTimeoutBackend, "time after which an idle upstream connection is closed")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	_, err := log.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return err
	}

	_, err = loadbalancer.AlgorithmFromString(c.LoadBalancerAlgorithmName)
	if err != nil {
		return fmt.Errorf("invalid lb-algorithm %q: %w", c.LoadBalancerAlgorithmName, err)
	}

	_, err = parseDefaultFilterPlacement(c.DefaultFilterPlacementName)
	if err != nil {
		return err
	}

	_, err = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)
	if err != nil {
		return err
	}

	for _, u := range c.RoutesURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("invalid routes-url, must be http or https: %s", u)
		}
	}

	if c.Services != nil {
		for id, instances := range *c.Services {
			for _, i := range instances {
				if i == nil || i.Host == "" {
					return fmt.Errorf("invalid instance of service %s: missing host", id)
				}
			}
		}
	}

	return nil
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		// repeated flags given on the command line replace the file
		// values, and they are collected again by the second parse
		c.Flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "routes-url":
				c.RoutesURLs = nil
			case "default-filters":
				c.DefaultFilters.filters = nil
			}
		})

		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.LoadBalancerAlgorithm, _ = loadbalancer.AlgorithmFromString(c.LoadBalancerAlgorithmName)
	c.DefaultFilterPlacement, _ = parseDefaultFilterPlacement(c.DefaultFilterPlacementName)
	c.HistogramMetricBuckets, _ = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)
	c.ForwardedHeaders = c.parseForwardedHeaders()
	return nil
}

func (c *Config) ToOptions() gateway.Options {
	o := gateway.Options{
		Address:                    c.Address,
		SupportListener:            c.SupportListener,
		RoutesFile:                 c.RoutesFile,
		RoutesURLs:                 c.RoutesURLs,
		PollInterval:               time.Duration(c.SourcePollTimeout) * time.Millisecond,
		WaitFirstRouteLoad:         c.WaitFirstRouteLoad,
		Use404:                     c.NoRouteStatus404,
		FailOnRouteDefinitionError: c.FailOnRouteDefinitionError,
		DefaultFilters:             c.DefaultFilters.filters,
		DefaultFilterPlacement:     c.DefaultFilterPlacement,
		LoadBalancerAlgorithm:      c.LoadBalancerAlgorithm,
		LoadBalancerHintHeader:     c.LoadBalancerHintHeader,
		StreamingMediaTypes:        c.StreamingMediaTypes.values,
		ConnectTimeoutBackend:      c.ConnectTimeoutBackend,
		ResponseTimeoutBackend:     c.ResponseTimeoutBackend,
		IdleConnsPerHost:           c.IdleConnsPerHost,
		IdleConnTimeoutBackend:     c.IdleConnTimeoutBackend,
		XForwarded:                 c.ForwardedHeaders,
		Forwarded:                  c.RFC7239Forwarded,
		ReadTimeoutServer:          c.ReadTimeoutServer,
		ReadHeaderTimeoutServer:    c.ReadHeaderTimeoutServer,
		WriteTimeoutServer:         c.WriteTimeoutServer,
		IdleTimeoutServer:          c.IdleTimeoutServer,
		MaxHeaderBytes:             c.MaxHeaderBytes,
		ShutdownDelay:              c.WaitForHealthcheckInterval,
		ApplicationLogPrefix:       c.ApplicationLogPrefix,
		ApplicationLogLevel:        c.ApplicationLogLevel.String(),
		ApplicationLogJSONEnabled:  c.ApplicationLogJSONEnabled,
		AccessLogDisabled:          c.AccessLogDisabled,
		AccessLogJSONEnabled:       c.AccessLogJSONEnabled,
		MetricsPrefix:              c.MetricsPrefix,
		HistogramBuckets:           c.HistogramMetricBuckets,
		EnableRuntimeMetrics:       c.RuntimeMetrics,
	}

	if c.ProxyPreserveHost {
		o.DefaultFilters = append([]*routedef.Spec{{Name: "PreserveHostHeader"}}, o.DefaultFilters...)
	}

	if c.Services != nil {
		o.Services = *c.Services
	}

	return o
}

func parseDefaultFilterPlacement(s string) (routing.DefaultFilterPlacement, error) {
	switch s {
	case "", placementBefore:
		return routing.BeforeRouteFilters, nil
	case placementAfter:
		return routing.AfterRouteFilters, nil
	default:
		return 0, fmt.Errorf("invalid default-filter-placement: %s", s)
	}
}

func (c *Config) parseHistogramBuckets(bucketString string, defaultBuckets []float64) ([]float64, error) {
	if bucketString == "" {
		return defaultBuckets, nil
	}

	var result []float64
	thresholds := strings.Split(bucketString, ",")
	for _, v := range thresholds {
		bucket, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}
		result = append(result, bucket)
	}
	sort.Float64s(result)
	return result, nil
}

func (c *Config) parseForwardedHeaders() *headers.XForwarded {
	if len(c.ForwardedHeadersList.values) == 0 {
		return nil
	}

	var xf headers.XForwarded
	for _, header := range c.ForwardedHeadersList.values {
		switch header {
		case "X-Forwarded-For":
			xf.For = true
		case "X-Forwarded-Host":
			xf.Host = true
		case "X-Forwarded-Proto":
			xf.Proto = true
		case "X-Forwarded-Port":
			xf.Port = true
		case "X-Forwarded-Prefix":
			xf.Prefix = true
		case "append":
			xf.Append = true
		}
	}

	return &xf
}
