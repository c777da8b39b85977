package loadbalancer

import (
	"errors"
	"math/rand/v2"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-jump"
)

// Algorithm indicates the used load balancing algorithm.
type Algorithm int

const (
	// None is the default non-specified algorithm.
	None Algorithm = iota

	// RoundRobin indicates round-robin load balancing between the service instances.
	RoundRobin

	// Random indicates random choice between the service instances.
	Random

	// ConsistentHash indicates choice between the instances based on the hashed request key.
	ConsistentHash

	// PowerOfRandomNChoices indicates choice between N random instances, with the least
	// outstanding requests.
	PowerOfRandomNChoices
)

const powerOfRandomNChoicesDefaultN = 2

type algorithm interface {
	apply(req *Request, instances []*ServiceInstance) *ServiceInstance
}

type initializeAlgorithm func() algorithm

var (
	algorithms = map[Algorithm]initializeAlgorithm{
		RoundRobin:            newRoundRobin,
		Random:                newRandom,
		ConsistentHash:        newConsistentHash,
		PowerOfRandomNChoices: newPowerOfRandomNChoices,
	}
	defaultAlgorithm = newRoundRobin
)

type roundRobin struct {
	mx    sync.Mutex
	index int
}

func newRoundRobin() algorithm {
	return &roundRobin{index: rand.IntN(1 << 16)}
}

func (r *roundRobin) apply(_ *Request, instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 1 {
		return instances[0]
	}

	r.mx.Lock()
	defer r.mx.Unlock()
	r.index = (r.index + 1) % len(instances)
	return instances[r.index]
}

type random struct{}

func newRandom() algorithm { return random{} }

func (random) apply(_ *Request, instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 1 {
		return instances[0]
	}

	return instances[rand.IntN(len(instances))]
}

type consistentHash struct{}

func newConsistentHash() algorithm { return consistentHash{} }

// the client IP, looked up from X-Forwarded-For with the remote address
// as the fallback
func clientKey(req *Request) string {
	if req.Hint != "" {
		return req.Hint
	}

	r := req.HTTPRequest
	if r == nil {
		return ""
	}

	if ff := r.Header.Get("X-Forwarded-For"); ff != "" {
		return strings.TrimSpace(strings.Split(ff, ",")[0])
	}

	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}

	return r.RemoteAddr
}

func (consistentHash) apply(req *Request, instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 1 {
		return instances[0]
	}

	sum := xxhash.Sum64String(clientKey(req))
	return instances[jump.Hash(sum, len(instances))]
}

type powerOfRandomNChoices struct {
	mx          sync.Mutex
	outstanding map[string]*atomic.Int64
}

func newPowerOfRandomNChoices() algorithm {
	return &powerOfRandomNChoices{outstanding: make(map[string]*atomic.Int64)}
}

func instanceKey(i *ServiceInstance) string {
	if i.InstanceID != "" {
		return i.ServiceID + "/" + i.InstanceID
	}

	return i.ServiceID + "/" + i.HostPort()
}

func (p *powerOfRandomNChoices) counter(i *ServiceInstance) *atomic.Int64 {
	key := instanceKey(i)
	p.mx.Lock()
	defer p.mx.Unlock()
	c, ok := p.outstanding[key]
	if !ok {
		c = new(atomic.Int64)
		p.outstanding[key] = c
	}

	return c
}

func (p *powerOfRandomNChoices) apply(_ *Request, instances []*ServiceInstance) *ServiceInstance {
	if len(instances) == 1 {
		return instances[0]
	}

	best := instances[rand.IntN(len(instances))]
	for range powerOfRandomNChoicesDefaultN - 1 {
		ci := instances[rand.IntN(len(instances))]
		if p.counter(ci).Load() < p.counter(best).Load() {
			best = ci
		}
	}

	return best
}

func (p *powerOfRandomNChoices) OnStart(*Request) {}

func (p *powerOfRandomNChoices) OnStartRequest(_ *Request, rsp Response) {
	if rsp.HasServer() {
		p.counter(rsp.Instance).Add(1)
	}
}

func (p *powerOfRandomNChoices) OnComplete(c CompletionContext) {
	if c.Status != Discard && c.Response.HasServer() {
		p.counter(c.Response.Instance).Add(-1)
	}
}

// AlgorithmFromString parses the string representation of the algorithm definition.
func AlgorithmFromString(a string) (Algorithm, error) {
	switch a {
	case "":
		// This means that the user didn't explicitly specify which
		// algorithm should be used, and we will use a default one.
		return None, nil
	case "roundRobin":
		return RoundRobin, nil
	case "random":
		return Random, nil
	case "consistentHash":
		return ConsistentHash, nil
	case "powerOfRandomNChoices":
		return PowerOfRandomNChoices, nil
	default:
		return None, errors.New("unsupported algorithm")
	}
}

// String returns the string representation of an algorithm definition.
func (a Algorithm) String() string {
	switch a {
	case RoundRobin:
		return "roundRobin"
	case Random:
		return "random"
	case ConsistentHash:
		return "consistentHash"
	case PowerOfRandomNChoices:
		return "powerOfRandomNChoices"
	default:
		return "none"
	}
}

func (a Algorithm) create() algorithm {
	if init, ok := algorithms[a]; ok {
		return init()
	}

	return defaultAlgorithm()
}
