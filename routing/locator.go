package routing

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"time"

	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/logging"
	"github.com/zalando/gateway/metrics"
	"github.com/zalando/gateway/predicates"
	"github.com/zalando/gateway/routedef"
)

// DefaultFilterPlacement tells where the default filters are placed
// relative to the route filters before sorting. It decides the execution
// order of default and route filters with equal orders.
type DefaultFilterPlacement int

const (
	BeforeRouteFilters DefaultFilterPlacement = iota
	AfterRouteFilters
)

// DefaultPollInterval is used when Options.PollInterval is not set.
const DefaultPollInterval = 3 * time.Second

// Options of the locator and the routing.
type Options struct {

	// Predicates creates the predicates of the definitions.
	Predicates predicates.Registry

	// Filters creates the route and default filters.
	Filters filters.Registry

	// GlobalFilters are added to every route, with their own orders.
	GlobalFilters []*filters.Filter

	// DefaultFilters are added to every route that does not disable
	// them.
	DefaultFilters []*routedef.Spec

	DefaultFilterPlacement DefaultFilterPlacement

	// FailOnRouteDefinitionError makes a single invalid definition
	// reject the whole update. Otherwise invalid definitions are
	// logged and dropped.
	FailOnRouteDefinitionError bool

	// DataClients provide the route definitions.
	DataClients []DataClient

	// PollInterval is the interval of polling the data clients for
	// updates.
	PollInterval time.Duration

	Log     logging.Logger
	Metrics metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.Predicates == nil {
		o.Predicates = make(predicates.Registry)
	}

	if o.Filters == nil {
		o.Filters = make(filters.Registry)
	}

	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}

	if o.Log == nil {
		o.Log = logging.New()
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	return o
}

// Locator builds routes from definitions.
type Locator struct {
	options Options
}

func NewLocator(o Options) *Locator {
	return &Locator{options: o.withDefaults()}
}

func parseURI(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("missing uri")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	if u.Scheme == "" {
		return nil, fmt.Errorf("missing scheme in %q", raw)
	}

	// composed schemes, like lb:ws://service
	if u.Opaque != "" {
		inner, err := url.Parse(u.Opaque)
		if err != nil {
			return nil, err
		}

		if inner.Scheme == "" || inner.Host == "" {
			return nil, fmt.Errorf("invalid composed uri %q", raw)
		}
	}

	return u, nil
}

func (l *Locator) filters(def *routedef.Route) ([]*filters.Filter, error) {
	routeFilters, err := l.options.Filters.CreateAll(def.Filters)
	if err != nil {
		return nil, err
	}

	var defaults []*filters.Filter
	if !def.DisableDefaultFilters {
		if defaults, err = l.options.Filters.CreateAll(l.options.DefaultFilters); err != nil {
			return nil, fmt.Errorf("default filters: %w", err)
		}
	}

	all := slices.Clone(l.options.GlobalFilters)
	if l.options.DefaultFilterPlacement == AfterRouteFilters {
		all = append(append(all, routeFilters...), defaults...)
	} else {
		all = append(append(all, defaults...), routeFilters...)
	}

	filters.Sort(all)
	return all, nil
}

// Build creates a route from a definition. The returned errors are
// ConfigErrors.
func (l *Locator) Build(def *routedef.Route) (*Route, error) {
	if def.Id == "" {
		return nil, configError("", ReasonMissingID, errors.New("route id is required"))
	}

	u, err := parseURI(def.URI)
	if err != nil {
		return nil, configError(def.Id, ReasonInvalidURI, err)
	}

	p, err := l.options.Predicates.CreateAll(def.Predicates)
	if err != nil {
		return nil, predicateError(def.Id, err)
	}

	f, err := l.filters(def)
	if err != nil {
		return nil, filterError(def.Id, err)
	}

	r := &Route{
		Id:        def.Id,
		Predicate: p,
		Filters:   f,
		URI:       u,
		Order:     def.Order,
		Metadata:  maps.Clone(def.Metadata),
	}

	if err := parseTimeouts(r); err != nil {
		return nil, configError(def.Id, ReasonInvalidMetadata, err)
	}

	return r, nil
}

// BuildAll builds the routes of defs, sorted by order. Routes with equal
// orders keep the order of their definitions.
func (l *Locator) BuildAll(defs []*routedef.Route) ([]*Route, error) {
	routes := make([]*Route, 0, len(defs))
	for _, def := range defs {
		r, err := l.Build(def)
		if err != nil {
			l.options.Metrics.IncInvalidRoute(Reason(err))
			if l.options.FailOnRouteDefinitionError {
				return nil, err
			}

			l.options.Log.Errorf("%v", err)
			continue
		}

		routes = append(routes, r)
	}

	slices.SortStableFunc(routes, func(a, b *Route) int {
		return cmp.Compare(a.Order, b.Order)
	})

	return routes, nil
}
