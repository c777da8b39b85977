/*
Package metricstest provides a metrics implementation recording counters,
gauges and measurements in memory, for tests.
*/
package metricstest

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zalando/gateway/metrics"
)

// MockMetrics records metrics by key. Keys are built from the metric and
// its labels, e.g. "serve.route1.GET.200".
type MockMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	measures map[string][]time.Duration
}

var _ metrics.Metrics = (*MockMetrics)(nil)

func (m *MockMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}

	m.counters[key]++
}

func (m *MockMetrics) measure(key string, start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.measures == nil {
		m.measures = make(map[string][]time.Duration)
	}

	m.measures[key] = append(m.measures[key], time.Since(start))
}

// Counter returns the value of a counter.
func (m *MockMetrics) Counter(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

// Gauge returns the value of a gauge.
func (m *MockMetrics) Gauge(key string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.gauges[key]
	return v, ok
}

// Measures returns the recorded durations of a key.
func (m *MockMetrics) Measures(key string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.measures[key]...)
}

func (m *MockMetrics) MeasureRouteLookup(start time.Time) { m.measure("routelookup", start) }

func (m *MockMetrics) MeasureServe(routeID, method string, code int, start time.Time) {
	key := fmt.Sprintf("serve.%s.%s.%d", routeID, method, code)
	m.measure(key, start)
	m.inc(key)
}

func (m *MockMetrics) MeasureBackend(routeID, host string, start time.Time) {
	m.measure(fmt.Sprintf("backend.%s.%s", routeID, host), start)
}

func (m *MockMetrics) IncErrorsBackend(routeID string)   { m.inc("errors.backend." + routeID) }
func (m *MockMetrics) IncErrorsStreaming(routeID string) { m.inc("errors.streaming." + routeID) }
func (m *MockMetrics) IncRoutingFailures()               { m.inc("routingfailures") }
func (m *MockMetrics) IncInvalidRoute(reason string)     { m.inc("invalidroute." + reason) }

func (m *MockMetrics) SetRoutes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges == nil {
		m.gauges = make(map[string]float64)
	}

	m.gauges["routes"] = float64(n)
}

func (m *MockMetrics) IncLoadBalancerCompletion(serviceID, status string) {
	m.inc(fmt.Sprintf("loadbalancer.%s.%s", serviceID, status))
}

func (*MockMetrics) RegisterHandler(string, *http.ServeMux) {}
