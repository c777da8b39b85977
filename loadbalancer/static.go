package loadbalancer

import (
	"context"
	"slices"
	"sync"
)

// Static is a ClientFactory serving fixed, replaceable lists of service
// instances. Unknown services get a load balancer without instances, so
// that requests to them are discarded through the regular lifecycle.
type Static struct {
	mu         sync.RWMutex
	algorithm  Algorithm
	services   map[string]*staticLoadBalancer
	instances  map[string][]*ServiceInstance
	lifecycles []Lifecycle
}

type staticLoadBalancer struct {
	owner     *Static
	serviceID string
	algorithm algorithm
}

// NewStatic creates a factory choosing instances with the given algorithm.
// The lifecycles receive the callbacks of every service.
func NewStatic(a Algorithm, l ...Lifecycle) *Static {
	return &Static{
		algorithm:  a,
		services:   make(map[string]*staticLoadBalancer),
		instances:  make(map[string][]*ServiceInstance),
		lifecycles: l,
	}
}

func (s *Static) service(serviceID string) *staticLoadBalancer {
	s.mu.RLock()
	lb, ok := s.services[serviceID]
	s.mu.RUnlock()
	if ok {
		return lb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lb, ok := s.services[serviceID]; ok {
		return lb
	}

	lb = &staticLoadBalancer{owner: s, serviceID: serviceID, algorithm: s.algorithm.create()}
	s.services[serviceID] = lb
	return lb
}

// SetInstances replaces the instances of a service.
func (s *Static) SetInstances(serviceID string, instances []*ServiceInstance) {
	lb := s.service(serviceID)
	copied := make([]*ServiceInstance, len(instances))
	for i, ii := range instances {
		c := *ii
		c.ServiceID = serviceID
		copied[i] = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[lb.serviceID] = copied
}

// Instances returns the current instances of a service.
func (s *Static) Instances(serviceID string) []*ServiceInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.instances[serviceID])
}

// LoadBalancer implements ClientFactory.
func (s *Static) LoadBalancer(serviceID string) LoadBalancer {
	return s.service(serviceID)
}

// Lifecycles implements ClientFactory.
func (s *Static) Lifecycles(serviceID string) []Lifecycle {
	l := slices.Clone(s.lifecycles)
	if li, ok := s.service(serviceID).algorithm.(Lifecycle); ok {
		l = append(l, li)
	}

	return l
}

func (lb *staticLoadBalancer) Choose(ctx context.Context, req *Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	instances := lb.owner.Instances(lb.serviceID)
	if len(instances) == 0 {
		return Response{}, nil
	}

	return Response{Instance: lb.algorithm.apply(req, instances)}, nil
}
