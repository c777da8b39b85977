package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/headers"
	"github.com/zalando/gateway/loadbalancer"
	"github.com/zalando/gateway/routedef"
	"github.com/zalando/gateway/routing"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	cfg := NewConfig()
	return cfg, cfg.ParseArgs("gateway", args)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0600))
	return name
}

func specs(t *testing.T, s ...string) []*routedef.Spec {
	t.Helper()
	var result []*routedef.Spec
	for _, si := range s {
		spec, err := routedef.ParseSpec(si)
		require.NoError(t, err)
		result = append(result, spec)
	}

	return result
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, ":9911", cfg.SupportListener)
	assert.Equal(t, log.InfoLevel, cfg.ApplicationLogLevel)
	assert.Equal(t, loadbalancer.RoundRobin, cfg.LoadBalancerAlgorithm)
	assert.Equal(t, routing.BeforeRouteFilters, cfg.DefaultFilterPlacement)
	assert.Equal(t, prometheus.DefBuckets, cfg.HistogramMetricBuckets)

	o := cfg.ToOptions()
	assert.Equal(t, 3*time.Second, o.PollInterval)
	assert.False(t, o.Use404)
	assert.Empty(t, o.DefaultFilters)
	assert.Nil(t, o.StreamingMediaTypes)
	assert.Nil(t, o.Services)
	assert.Equal(t, "X-LB-Hint", o.LoadBalancerHintHeader)
	assert.Equal(t, "info", o.ApplicationLogLevel)
	assert.Equal(t, &headers.DefaultXForwarded, o.XForwarded)
	assert.False(t, o.Forwarded)
	assert.True(t, o.EnableRuntimeMetrics)
}

func TestFlags(t *testing.T) {
	cfg, err := parse(t,
		"-address", ":9000",
		"-no-route-status-404",
		"-routes-url", "http://a.example.org/routes.yaml",
		"-routes-url", "http://b.example.org/routes.yaml",
		"-default-filters", "AddResponseHeader=X-Gateway,1",
		"-default-filters", "SetStatus=201",
		"-default-filter-placement", "after",
		"-streaming-media-types", "text/event-stream,application/grpc",
		"-forwarded-headers", "",
		"-lb-algorithm", "random",
		"-services", "{users: [{host: 10.0.0.1, port: 8080}]}",
		"-proxy-preserve-host",
	)
	require.NoError(t, err)

	o := cfg.ToOptions()
	assert.Equal(t, ":9000", o.Address)
	assert.True(t, o.Use404)
	assert.Equal(t, []string{"http://a.example.org/routes.yaml", "http://b.example.org/routes.yaml"}, o.RoutesURLs)
	assert.Equal(t, routing.AfterRouteFilters, o.DefaultFilterPlacement)
	assert.Equal(t, []string{"text/event-stream", "application/grpc"}, o.StreamingMediaTypes)
	assert.Nil(t, o.XForwarded)
	assert.Equal(t, loadbalancer.Random, o.LoadBalancerAlgorithm)

	if d := cmp.Diff(specs(t, "PreserveHostHeader", "AddResponseHeader=X-Gateway,1", "SetStatus=201"), o.DefaultFilters); d != "" {
		t.Error(d)
	}

	require.Len(t, o.Services["users"], 1)
	assert.Equal(t, "10.0.0.1:8080", o.Services["users"][0].HostPort())
}

func TestConfigFile(t *testing.T) {
	cfg, err := parse(t, "-config-file", "testdata/test.yaml")
	require.NoError(t, err)

	o := cfg.ToOptions()
	assert.Equal(t, ":9999", o.Address)
	assert.Empty(t, o.SupportListener)
	assert.True(t, o.Use404)
	assert.Equal(t, "routes.yaml", o.RoutesFile)
	assert.Equal(t, []string{"https://routes.example.org/routes.yaml"}, o.RoutesURLs)
	assert.Equal(t, 500*time.Millisecond, o.PollInterval)
	assert.True(t, o.FailOnRouteDefinitionError)
	assert.Equal(t, routing.AfterRouteFilters, o.DefaultFilterPlacement)
	assert.Equal(t, []string{"text/event-stream", "application/x-ndjson"}, o.StreamingMediaTypes)
	assert.Equal(t, &headers.XForwarded{For: true, Proto: true}, o.XForwarded)
	assert.True(t, o.Forwarded)
	assert.Equal(t, 2*time.Second, o.ConnectTimeoutBackend)
	assert.Equal(t, 30*time.Second, o.ResponseTimeoutBackend)
	assert.Equal(t, loadbalancer.ConsistentHash, o.LoadBalancerAlgorithm)
	assert.Equal(t, "debug", o.ApplicationLogLevel)
	assert.Equal(t, []float64{0.1, 0.5, 1}, o.HistogramBuckets)

	if d := cmp.Diff(specs(t, "AddResponseHeader=X-Gateway,1", "RemoveRequestHeader=Cookie"), o.DefaultFilters); d != "" {
		t.Error(d)
	}

	expected := []*loadbalancer.ServiceInstance{
		{InstanceID: "users-1", Host: "10.0.0.1", Port: 8080},
		{InstanceID: "users-2", Host: "10.0.0.2", Port: 8443, Secure: true},
	}
	if d := cmp.Diff(expected, o.Services["users"]); d != "" {
		t.Error(d)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	cfg, err := parse(t,
		"-config-file", "testdata/test.yaml",
		"-address", ":7777",
		"-default-filters", "SetStatus=418",
		"-lb-algorithm", "powerOfRandomNChoices",
	)
	require.NoError(t, err)

	o := cfg.ToOptions()
	assert.Equal(t, ":7777", o.Address)
	assert.Equal(t, loadbalancer.PowerOfRandomNChoices, o.LoadBalancerAlgorithm)
	assert.Equal(t, []string{"https://routes.example.org/routes.yaml"}, o.RoutesURLs)
	if d := cmp.Diff(specs(t, "SetStatus=418"), o.DefaultFilters); d != "" {
		t.Error(d)
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, tt := range []struct {
		name   string
		args   []string
		config string
	}{{
		name: "missing config file",
		args: []string{"-config-file", "testdata/missing.yaml"},
	}, {
		name: "malformed config file",
		args: []string{"-config-file", "testdata/invalid.yaml"},
	}, {
		name: "log level",
		args: []string{"-application-log-level", "LOUD"},
	}, {
		name: "lb algorithm",
		args: []string{"-lb-algorithm", "leastConnections"},
	}, {
		name: "default filter placement",
		args: []string{"-default-filter-placement", "middle"},
	}, {
		name: "histogram buckets",
		args: []string{"-histogram-metric-buckets", "1,two"},
	}, {
		name:   "routes url scheme",
		config: "routes-urls: [file:///etc/routes.yaml]",
	}, {
		name:   "default filter",
		config: "default-filters: [=foo]",
	}, {
		name:   "forwarded header",
		config: "forwarded-headers: [X-Forwarded-Method]",
	}, {
		name:   "service instance without host",
		config: "services: {users: [{port: 8080}]}",
	}} {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.config != "" {
				args = append(args, "-config-file", writeConfig(t, tt.config))
			}

			_, err := parse(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestDefaultFiltersFlag(t *testing.T) {
	f := &defaultFiltersFlags{}
	require.NoError(t, f.Set("AddRequestHeader=X-Foo,bar"))
	require.NoError(t, f.Set("PreserveHostHeader"))
	assert.Equal(t, "AddRequestHeader=X-Foo,bar PreserveHostHeader", f.String())
	assert.Error(t, f.Set(""))
}
