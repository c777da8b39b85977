package loadbalancer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLifecycle struct {
	starts, requests int
	completions      []CompletionStatus
}

func (l *countingLifecycle) OnStart(*Request)                  { l.starts++ }
func (l *countingLifecycle) OnStartRequest(*Request, Response) { l.requests++ }
func (l *countingLifecycle) OnComplete(c CompletionContext) {
	l.completions = append(l.completions, c.Status)
}

func TestServiceInstance(t *testing.T) {
	i := &ServiceInstance{Host: "10.0.0.1", Port: 8443, Secure: true}
	assert.Equal(t, "https", i.Scheme())
	assert.Equal(t, "10.0.0.1:8443", i.HostPort())

	i = &ServiceInstance{Host: "::1"}
	assert.Equal(t, "http", i.Scheme())
	assert.Equal(t, "::1", i.HostPort())

	i.Port = 80
	assert.Equal(t, "[::1]:80", i.HostPort())
}

func TestStaticUnknownServiceHasNoInstances(t *testing.T) {
	s := NewStatic(RoundRobin)
	lb := s.LoadBalancer("unknown-service")
	require.NotNil(t, lb)

	rsp, err := lb.Choose(context.Background(), &Request{ServiceID: "unknown-service"})
	require.NoError(t, err)
	assert.False(t, rsp.HasServer())
}

func TestStaticChoosesCurrentInstances(t *testing.T) {
	l := &countingLifecycle{}
	s := NewStatic(RoundRobin, l)
	s.SetInstances("svc", testInstances(1))

	lb := s.LoadBalancer("svc")
	rsp, err := lb.Choose(context.Background(), &Request{ServiceID: "svc"})
	require.NoError(t, err)
	require.True(t, rsp.HasServer())
	assert.Equal(t, "svc", rsp.Instance.ServiceID)
	assert.Equal(t, "10.0.0.1", rsp.Instance.Host)

	s.SetInstances("svc", []*ServiceInstance{{Host: "10.0.1.1", Port: 9090}})
	rsp, err = lb.Choose(context.Background(), &Request{ServiceID: "svc"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.1:9090", rsp.Instance.HostPort())

	assert.Equal(t, []Lifecycle{l}, s.Lifecycles("svc"))
}

func TestStaticChooseHonoursContext(t *testing.T) {
	s := NewStatic(Random)
	s.SetInstances("svc", testInstances(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.LoadBalancer("svc").Choose(ctx, &Request{ServiceID: "svc"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompletionStatusString(t *testing.T) {
	assert.Equal(t, "SUCCESS", Success.String())
	assert.Equal(t, "FAILED", Failed.String())
	assert.Equal(t, "DISCARD", Discard.String())
}
