package routefile

import (
	"errors"
	"io/fs"
	"reflect"

	"github.com/zalando/gateway/routedef"
)

type watchResponse struct {
	routes     []*routedef.Route
	deletedIDs []string
	err        error
}

// WatchClient implements a route configuration client with file watching. Use the Watch function to initialize
// instances of it.
type WatchClient struct {
	fileName   string
	routes     map[string]*routedef.Route
	getAll     chan (chan<- watchResponse)
	getUpdates chan (chan<- watchResponse)
	quit       chan struct{}
}

// Watch creates a route configuration client with file watching. Watch doesn't follow file system nodes, it
// always reads from the file identified by the initially provided file name.
func Watch(name string) *WatchClient {
	c := &WatchClient{
		fileName:   name,
		getAll:     make(chan (chan<- watchResponse)),
		getUpdates: make(chan (chan<- watchResponse)),
		quit:       make(chan struct{}),
	}

	go c.watch()
	return c
}

func mapRoutes(r []*routedef.Route) map[string]*routedef.Route {
	m := make(map[string]*routedef.Route)
	for i := range r {
		m[r[i].Id] = r[i]
	}

	return m
}

func (c *WatchClient) diffStoreRoutes(r []*routedef.Route) (upsert []*routedef.Route, deletedIDs []string) {
	for i := range r {
		if !reflect.DeepEqual(r[i], c.routes[r[i].Id]) {
			upsert = append(upsert, r[i])
		}
	}

	m := mapRoutes(r)
	for id := range c.routes {
		if _, keep := m[id]; !keep {
			deletedIDs = append(deletedIDs, id)
		}
	}

	c.routes = m
	return
}

func (c *WatchClient) deleteAllListIDs() []string {
	var ids []string
	for id := range c.routes {
		ids = append(ids, id)
	}

	c.routes = nil
	return ids
}

func (c *WatchClient) loadAll() watchResponse {
	r, err := readFile(c.fileName)
	if err != nil {
		return watchResponse{err: err}
	}

	c.routes = mapRoutes(r)
	return watchResponse{routes: r}
}

func (c *WatchClient) loadUpdates() watchResponse {
	r, err := readFile(c.fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return watchResponse{deletedIDs: c.deleteAllListIDs()}
	}

	if err != nil {
		return watchResponse{err: err}
	}

	upsert, del := c.diffStoreRoutes(r)
	return watchResponse{routes: upsert, deletedIDs: del}
}

func (c *WatchClient) watch() {
	for {
		select {
		case req := <-c.getAll:
			req <- c.loadAll()
		case req := <-c.getUpdates:
			req <- c.loadUpdates()
		case <-c.quit:
			return
		}
	}
}

// LoadAll returns the parsed route definitions found in the file.
func (c *WatchClient) LoadAll() ([]*routedef.Route, error) {
	req := make(chan watchResponse)
	c.getAll <- req
	rsp := <-req
	return rsp.routes, rsp.err
}

// LoadUpdate returns differential updates when a watched file has changed.
// When the file was removed, all its routes are reported deleted.
func (c *WatchClient) LoadUpdate() ([]*routedef.Route, []string, error) {
	req := make(chan watchResponse)
	c.getUpdates <- req
	rsp := <-req
	return rsp.routes, rsp.deletedIDs, rsp.err
}

// Close stops watching the configured file and providing updates.
func (c *WatchClient) Close() {
	close(c.quit)
}
