package filters

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/zalando/gateway/exchange"
)

// Orders from ReservedOrders up are used by the filters performing the
// upstream call. Route and default filters cannot declare them.
const ReservedOrders = math.MaxInt32 - 1

// Chain is the continuation of the filter chain.
type Chain interface {

	// Next executes the rest of the chain. It may be called at most
	// once.
	Next(*exchange.Exchange) error
}

// Handler is the behavior of a filter.
type Handler interface {
	Filter(ex *exchange.Exchange, next Chain) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(*exchange.Exchange, Chain) error

func (f HandlerFunc) Filter(ex *exchange.Exchange, next Chain) error { return f(ex, next) }

// Ordered is implemented by handlers that declare their order instead of
// taking the position based one.
type Ordered interface {
	Order() int
}

// Filter is a handler with its order in the chain.
type Filter struct {
	Name    string
	Order   int
	Handler Handler
}

func (f *Filter) String() string {
	return fmt.Sprintf("%s[order=%d]", f.Name, f.Order)
}

// Positioned creates a filter from the handler at index of its declaring
// list. The order is index+1, unless h implements Ordered.
func Positioned(name string, index int, h Handler) *Filter {
	order := index + 1
	if o, ok := h.(Ordered); ok {
		order = o.Order()
	}

	return &Filter{Name: name, Order: order, Handler: h}
}

// Sort orders filters by ascending order, keeping the declaration order of
// filters with equal order.
func Sort(f []*Filter) {
	slices.SortStableFunc(f, func(a, b *Filter) int {
		return cmp.Compare(a.Order, b.Order)
	})
}
