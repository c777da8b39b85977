package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// dialError marks failures of establishing the upstream connection, before
// any byte of the request was sent.
type dialError struct {
	err error
}

func (e *dialError) Error() string { return fmt.Sprintf("dial failed: %v", e.err) }
func (e *dialError) Unwrap() error { return e.err }

func (e *dialError) Timeout() bool {
	var ne net.Error
	return errors.As(e.err, &ne) && ne.Timeout()
}

type dialer struct {
	net.Dialer
}

func (d *dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	c, err := d.Dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, &dialError{err: err}
	}

	return c, nil
}

// client keeps one transport per connect timeout. Routes with the same
// connect timeout share the connection pool.
type client struct {
	mu         sync.Mutex
	options    Options
	transports map[time.Duration]*http.Transport
}

func newClient(o Options) *client {
	return &client{options: o, transports: make(map[time.Duration]*http.Transport)}
}

func (c *client) newDialer(connectTimeout time.Duration) *dialer {
	return &dialer{Dialer: net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}}
}

// transport returns the transport for a connect timeout, where zero means
// the default of the options.
func (c *client) transport(connectTimeout time.Duration) *http.Transport {
	if connectTimeout <= 0 {
		connectTimeout = c.options.ConnectTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.transports[connectTimeout]; ok {
		return t
	}

	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           c.newDialer(connectTimeout).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   c.options.MaxIdleConnsPerHost,
		IdleConnTimeout:       c.options.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	c.transports[connectTimeout] = t
	return t
}

func (c *client) closeIdleConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.transports {
		t.CloseIdleConnections()
	}
}
