/*
Package testdataclient provides an in-memory routing.DataClient for tests.
The routes can be updated and failures injected while the routing polls
the client.
*/
package testdataclient

import (
	"errors"
	"sync"

	"github.com/zalando/gateway/routedef"
)

// ErrInjected is returned by the client after FailNext.
var ErrInjected = errors.New("injected data client failure")

// Client is a routing.DataClient serving definitions from memory.
type Client struct {
	mu        sync.Mutex
	routes    map[string]*routedef.Route
	order     []string
	upserted  []*routedef.Route
	deleted   []string
	failNext  int
	loadCalls int
}

// New creates a client serving routes.
func New(routes []*routedef.Route) *Client {
	c := &Client{routes: make(map[string]*routedef.Route)}
	for _, r := range routes {
		c.set(r)
	}

	return c
}

// NewDoc creates a client from a YAML or JSON route document.
func NewDoc(doc string) (*Client, error) {
	routes, err := routedef.Parse([]byte(doc))
	if err != nil {
		return nil, err
	}

	return New(routes), nil
}

func (c *Client) set(r *routedef.Route) {
	if _, ok := c.routes[r.Id]; !ok {
		c.order = append(c.order, r.Id)
	}

	c.routes[r.Id] = r
}

func (c *Client) fail() bool {
	if c.failNext == 0 {
		return false
	}

	c.failNext--
	return true
}

// LoadAll returns every route and drops the pending changes.
func (c *Client) LoadAll() ([]*routedef.Route, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loadCalls++
	if c.fail() {
		return nil, ErrInjected
	}

	c.upserted, c.deleted = nil, nil
	routes := make([]*routedef.Route, 0, len(c.order))
	for _, id := range c.order {
		routes = append(routes, c.routes[id])
	}

	return routes, nil
}

// LoadUpdate returns the changes since the previous call.
func (c *Client) LoadUpdate() ([]*routedef.Route, []string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail() {
		return nil, nil, ErrInjected
	}

	upserted, deleted := c.upserted, c.deleted
	c.upserted, c.deleted = nil, nil
	return upserted, deleted, nil
}

// Update upserts and deletes routes. The changes are returned by the next
// LoadUpdate.
func (c *Client) Update(upserted []*routedef.Route, deletedIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range deletedIDs {
		if _, ok := c.routes[id]; !ok {
			continue
		}

		delete(c.routes, id)
		for i, current := range c.order {
			if current == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}

	for _, r := range upserted {
		c.set(r)
	}

	c.upserted = append(c.upserted, upserted...)
	c.deleted = append(c.deleted, deletedIDs...)
}

// FailNext makes the next n calls fail.
func (c *Client) FailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = n
}

// LoadAllCalls returns how many times LoadAll was called.
func (c *Client) LoadAllCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadCalls
}
