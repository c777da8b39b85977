package routing

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/zalando/gateway/routedef"
)

// DataClient provides route definitions. LoadAll returns the complete set,
// LoadUpdate the definitions upserted and the ids deleted since the
// previous call. An error from LoadUpdate makes the routing start over with
// LoadAll.
type DataClient interface {
	LoadAll() ([]*routedef.Route, error)
	LoadUpdate() ([]*routedef.Route, []string, error)
}

type incomingType uint

const (
	incomingReset incomingType = iota
	incomingUpdate
)

type incomingData struct {
	typ            incomingType
	client         int
	upsertedRoutes []*routedef.Route
	deletedIDs     []string
}

// routeDefs keeps the definitions of a client in the order they were
// first seen.
type routeDefs struct {
	ids  []string
	byID map[string]*routedef.Route
}

func newRouteDefs() *routeDefs {
	return &routeDefs{byID: make(map[string]*routedef.Route)}
}

func (d *routeDefs) upsert(r *routedef.Route) {
	if _, ok := d.byID[r.Id]; !ok {
		d.ids = append(d.ids, r.Id)
	}

	d.byID[r.Id] = r
}

func (d *routeDefs) delete(id string) {
	if _, ok := d.byID[id]; !ok {
		return
	}

	delete(d.byID, id)
	for i, current := range d.ids {
		if current == id {
			d.ids = append(d.ids[:i], d.ids[i+1:]...)
			return
		}
	}
}

func applyIncoming(defs *routeDefs, d *incomingData) *routeDefs {
	if d.typ == incomingReset || defs == nil {
		defs = newRouteDefs()
	}

	for _, id := range d.deletedIDs {
		defs.delete(id)
	}

	for _, def := range d.upsertedRoutes {
		defs.upsert(def)
	}

	return defs
}

// mergeDefs merges the definitions of the clients in the order of the
// clients. A definition of a later client replaces the one with the same
// id of an earlier client, keeping its position.
func mergeDefs(defsByClient []*routeDefs) []*routedef.Route {
	merged := newRouteDefs()
	for _, defs := range defsByClient {
		if defs == nil {
			continue
		}

		for _, id := range defs.ids {
			merged.upsert(defs.byID[id])
		}
	}

	all := make([]*routedef.Route, len(merged.ids))
	for i, id := range merged.ids {
		all[i] = merged.byID[id]
	}

	return all
}

func send(ctx context.Context, out chan<- *incomingData, d *incomingData) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Routing) receiveInitial(ctx context.Context, index int, c DataClient, out chan<- *incomingData) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.options.PollInterval / 4
	b.MaxInterval = r.options.PollInterval * 4

	routes, err := backoff.Retry(
		ctx,
		c.LoadAll,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.Errorf("error while receiving initial data, retrying in %v: %v", next, err)
		}),
	)
	if err != nil {
		return false
	}

	return send(ctx, out, &incomingData{typ: incomingReset, client: index, upsertedRoutes: routes})
}

func (r *Routing) receiveUpdates(ctx context.Context, index int, c DataClient, out chan<- *incomingData) bool {
	ticker := time.NewTicker(r.options.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false
		}

		routes, deletedIDs, err := c.LoadUpdate()
		if err != nil {
			r.log.Errorf("error while receiving update: %v", err)
			return true
		}

		if len(routes) == 0 && len(deletedIDs) == 0 {
			continue
		}

		if !send(ctx, out, &incomingData{typ: incomingUpdate, client: index, upsertedRoutes: routes, deletedIDs: deletedIDs}) {
			return false
		}
	}
}

func (r *Routing) receiveFromClient(ctx context.Context, index int, c DataClient, out chan<- *incomingData) {
	for r.receiveInitial(ctx, index, c, out) && r.receiveUpdates(ctx, index, c, out) {
	}
}

// receiveRouteDefs merges the definitions of all clients and sends the
// full set on every change.
func (r *Routing) receiveRouteDefs(ctx context.Context) <-chan []*routedef.Route {
	in := make(chan *incomingData)
	out := make(chan []*routedef.Route)
	defsByClient := make([]*routeDefs, len(r.options.DataClients))

	for i, c := range r.options.DataClients {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.receiveFromClient(ctx, i, c, in)
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case incoming := <-in:
				defsByClient[incoming.client] = applyIncoming(defsByClient[incoming.client], incoming)
			case <-ctx.Done():
				return
			}

			select {
			case out <- mergeDefs(defsByClient):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
