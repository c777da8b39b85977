package routing

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/predicates"
)

// Metadata keys with a meaning for the gateway. Timeouts are integer
// milliseconds or duration strings like "1.5s".
const (
	ConnectTimeoutKey  = "connect-timeout"
	ResponseTimeoutKey = "response-timeout"
)

// Route is a built route definition. It is never modified after it was
// built.
type Route struct {
	Id        string
	Predicate *predicates.Predicate

	// Filters are the global, default and route filters, sorted by
	// order.
	Filters []*filters.Filter

	URI      *url.URL
	Order    int
	Metadata map[string]any

	// ConnectTimeout is zero when the default applies.
	ConnectTimeout time.Duration

	// ResponseTimeout is zero when the default applies, and negative
	// when the route has no response timeout.
	ResponseTimeout time.Duration
}

func (r *Route) String() string {
	names := make([]string, len(r.Filters))
	for i, f := range r.Filters {
		names[i] = f.String()
	}

	return fmt.Sprintf(
		"Route{id=%s, uri=%s, order=%d, predicate=%s, filters=[%s]}",
		r.Id, r.URI, r.Order, r.Predicate, strings.Join(names, ", "),
	)
}

// FromExchange returns the route matched for the exchange, or nil.
func FromExchange(ex *exchange.Exchange) *Route {
	r, _ := exchange.Value[*Route](ex, exchange.RouteKey)
	return r
}

// durationMetadata converts a metadata value to a duration. Numbers are
// milliseconds.
func durationMetadata(v any) (time.Duration, error) {
	switch vv := v.(type) {
	case int:
		return time.Duration(vv) * time.Millisecond, nil
	case int64:
		return time.Duration(vv) * time.Millisecond, nil
	case float64:
		if vv != math.Trunc(vv) {
			return 0, fmt.Errorf("not an integer number of milliseconds: %v", vv)
		}

		return time.Duration(vv) * time.Millisecond, nil
	case string:
		s := strings.TrimSpace(vv)
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}

		return time.ParseDuration(s)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func parseTimeouts(r *Route) error {
	if v, ok := r.Metadata[ConnectTimeoutKey]; ok {
		d, err := durationMetadata(v)
		if err != nil {
			return fmt.Errorf("%s: %w", ConnectTimeoutKey, err)
		}

		if d < 0 {
			return fmt.Errorf("%s must not be negative", ConnectTimeoutKey)
		}

		r.ConnectTimeout = d
	}

	if v, ok := r.Metadata[ResponseTimeoutKey]; ok {
		d, err := durationMetadata(v)
		if err != nil {
			return fmt.Errorf("%s: %w", ResponseTimeoutKey, err)
		}

		if d < 0 {
			d = -1
		}

		r.ResponseTimeout = d
	}

	return nil
}
