package loadbalancer

import (
	"context"
	"net"
	"net/http"
	"strconv"
)

// ServiceInstance is an addressable instance of a service.
type ServiceInstance struct {
	ServiceID  string            `yaml:"serviceId"`
	InstanceID string            `yaml:"instanceId"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	Secure     bool              `yaml:"secure"`
	Metadata   map[string]string `yaml:"metadata"`
}

// Scheme returns https for secure instances and http otherwise.
func (i *ServiceInstance) Scheme() string {
	if i.Secure {
		return "https"
	}

	return "http"
}

// HostPort returns the host and the port joined.
func (i *ServiceInstance) HostPort() string {
	if i.Port <= 0 {
		return i.Host
	}

	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Request describes what the load balancer chooses for.
type Request struct {
	ServiceID string

	// Hint is an optional key, e.g. the value of a session cookie,
	// used by hashing algorithms.
	Hint string

	// HTTPRequest is the request being routed.
	HTTPRequest *http.Request
}

// Response is the result of a choice.
type Response struct {
	Instance *ServiceInstance
}

// HasServer tells whether an instance was chosen.
func (r Response) HasServer() bool { return r.Instance != nil }

// LoadBalancer chooses service instances. Choose may block, e.g. to look up
// instances remotely, and must respect ctx.
type LoadBalancer interface {
	Choose(ctx context.Context, req *Request) (Response, error)
}

// CompletionStatus is the outcome of a load balanced request.
type CompletionStatus int

const (
	Success CompletionStatus = iota
	Failed
	Discard
)

func (s CompletionStatus) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Failed:
		return "FAILED"
	case Discard:
		return "DISCARD"
	default:
		return "UNKNOWN"
	}
}

// CompletionContext reports the outcome of a load balanced request.
type CompletionContext struct {
	Status   CompletionStatus
	Err      error
	Request  *Request
	Response Response

	// StatusCode is the upstream status, when a response was received.
	StatusCode int
}

// Lifecycle receives the callbacks of load balanced requests.
type Lifecycle interface {
	OnStart(req *Request)
	OnStartRequest(req *Request, rsp Response)
	OnComplete(c CompletionContext)
}

// ClientFactory provides the load balancer and the lifecycle callbacks of
// a service.
type ClientFactory interface {

	// LoadBalancer returns nil when the service is unknown.
	LoadBalancer(serviceID string) LoadBalancer

	Lifecycles(serviceID string) []Lifecycle
}
