package filters

import (
	"errors"
	"sync/atomic"

	"github.com/zalando/gateway/exchange"
)

// ErrChainReentered is returned when a handler continues the chain more
// than once.
var ErrChainReentered = errors.New("filter chain continued more than once")

type link struct {
	filters []*Filter
	index   int
	called  atomic.Bool
}

func (l *link) Next(ex *exchange.Exchange) error {
	if !l.called.CompareAndSwap(false, true) {
		return ErrChainReentered
	}

	if l.index >= len(l.filters) {
		return nil
	}

	f := l.filters[l.index]
	return f.Handler.Filter(ex, &link{filters: l.filters, index: l.index + 1})
}

// Run executes the filters in the order of the slice, which is expected to
// be sorted.
func Run(ex *exchange.Exchange, f []*Filter) error {
	return (&link{filters: f}).Next(ex)
}
