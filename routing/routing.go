package routing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/logging"
	"github.com/zalando/gateway/routedef"
)

type snapshot struct {
	routes []*Route
}

// Routing holds the current routes and matches requests against them.
// The routes are replaced atomically. A request keeps matching against the
// snapshot it started with.
type Routing struct {
	options   Options
	locator   *Locator
	log       logging.Logger
	current   atomic.Pointer[snapshot]
	firstLoad chan struct{}
	once      sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a routing and starts receiving the definitions of the
// configured data clients.
func New(o Options) *Routing {
	o = o.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	r := &Routing{
		options:   o,
		locator:   NewLocator(o),
		log:       o.Log,
		firstLoad: make(chan struct{}),
		cancel:    cancel,
	}

	r.current.Store(&snapshot{})
	if len(o.DataClients) == 0 {
		return r
	}

	defs := r.receiveRouteDefs(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case d := <-defs:
				if err := r.Load(d); err != nil {
					r.log.Errorf("route update rejected, keeping the previous routes: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return r
}

// FirstLoad is closed once the first set of routes was loaded.
func (r *Routing) FirstLoad() <-chan struct{} {
	return r.firstLoad
}

// Load builds the definitions and replaces the current routes. With
// FailOnRouteDefinitionError set, an invalid definition rejects the whole
// set and the current routes are kept.
func (r *Routing) Load(defs []*routedef.Route) error {
	routes, err := r.locator.BuildAll(defs)
	if err != nil {
		return err
	}

	r.current.Store(&snapshot{routes: routes})
	r.options.Metrics.SetRoutes(len(routes))
	r.log.Infof("route settings applied, %d routes", len(routes))
	r.once.Do(func() { close(r.firstLoad) })
	return nil
}

// Routes returns the current routes in matching order.
func (r *Routing) Routes() []*Route {
	return r.current.Load().routes
}

// Match returns the first route, in ascending order, whose predicate
// accepts the exchange, and stores it on the exchange. It returns nil when
// no route matches. A route whose predicate fails is skipped. When the
// request context is done, its error is returned.
func (r *Routing) Match(ex *exchange.Exchange) (*Route, error) {
	defer r.options.Metrics.MeasureRouteLookup(time.Now())
	defer ex.Remove(exchange.PredicateRouteKey)

	ctx := ex.Context()
	for _, rt := range r.current.Load().routes {
		ex.Set(exchange.PredicateRouteKey, rt.Id)
		ok, err := rt.Predicate.Apply(ctx, ex)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			r.log.Warnf("%serror evaluating the predicates of route %s: %v", ex.LogPrefix(), rt.Id, err)
			continue
		}

		if ok {
			ex.Set(exchange.RouteKey, rt)
			return rt, nil
		}
	}

	return nil, nil
}

// Close stops receiving updates.
func (r *Routing) Close() {
	r.cancel()
	r.wg.Wait()
}
