package loadbalancer

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstances(n int) []*ServiceInstance {
	var instances []*ServiceInstance
	for i := range n {
		instances = append(instances, &ServiceInstance{
			InstanceID: fmt.Sprintf("i%d", i),
			Host:       fmt.Sprintf("10.0.0.%d", i+1),
			Port:       8080,
		})
	}

	return instances
}

func TestAlgorithmFromString(t *testing.T) {
	for _, a := range []Algorithm{RoundRobin, Random, ConsistentHash, PowerOfRandomNChoices} {
		parsed, err := AlgorithmFromString(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	a, err := AlgorithmFromString("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = AlgorithmFromString("fastest")
	assert.Error(t, err)
}

func TestRoundRobinVisitsAllInstances(t *testing.T) {
	instances := testInstances(3)
	rr := newRoundRobin()
	seen := make(map[string]int)
	for range 9 {
		seen[rr.apply(&Request{}, instances).InstanceID]++
	}

	assert.Equal(t, map[string]int{"i0": 3, "i1": 3, "i2": 3}, seen)
}

func TestRandomChoosesAnInstance(t *testing.T) {
	instances := testInstances(4)
	for range 20 {
		assert.Contains(t, instances, newRandom().apply(&Request{}, instances))
	}
}

func TestConsistentHash(t *testing.T) {
	instances := testInstances(5)
	ch := newConsistentHash()

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.0.10:4000"
	first := ch.apply(&Request{HTTPRequest: r}, instances)
	for range 10 {
		assert.Equal(t, first, ch.apply(&Request{HTTPRequest: r}, instances))
	}

	r.Header.Set("X-Forwarded-For", "192.168.0.10, 10.1.1.1")
	r.RemoteAddr = "10.1.1.1:4000"
	assert.Equal(t, first, ch.apply(&Request{HTTPRequest: r}, instances), "client from X-Forwarded-For")

	byHint := ch.apply(&Request{Hint: "session-1"}, instances)
	assert.Equal(t, byHint, ch.apply(&Request{Hint: "session-1", HTTPRequest: r}, instances))
}

func TestConsistentHashMovesFewKeys(t *testing.T) {
	ch := newConsistentHash()
	before := testInstances(10)
	after := testInstances(11)

	var moved int
	for i := range 1000 {
		key := fmt.Sprintf("key-%d", i)
		if ch.apply(&Request{Hint: key}, before).InstanceID != ch.apply(&Request{Hint: key}, after).InstanceID {
			moved++
		}
	}

	assert.Less(t, moved, 200)
}

func TestPowerOfRandomNChoicesPrefersIdleInstances(t *testing.T) {
	instances := testInstances(2)
	s := NewStatic(PowerOfRandomNChoices)
	s.SetInstances("svc", instances)

	lifecycles := s.Lifecycles("svc")
	require.Len(t, lifecycles, 1)

	busy := s.Instances("svc")[0]
	for range 10 {
		lifecycles[0].OnStartRequest(&Request{}, Response{Instance: busy})
	}

	lb := s.LoadBalancer("svc")
	var idle int
	for range 50 {
		rsp, err := lb.Choose(context.Background(), &Request{ServiceID: "svc"})
		require.NoError(t, err)
		if rsp.Instance.InstanceID != busy.InstanceID {
			idle++
		}
	}

	// the busy one only wins when drawn twice
	assert.Greater(t, idle, 20)

	for range 10 {
		lifecycles[0].OnComplete(CompletionContext{Status: Success, Response: Response{Instance: busy}})
	}

	p := s.service("svc").algorithm.(*powerOfRandomNChoices)
	assert.Equal(t, int64(0), p.counter(busy).Load())
}
