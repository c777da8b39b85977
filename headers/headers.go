/*
Package headers implements the pipelines filtering the request headers sent
to the upstream and the response headers received from it.

A header filter is a function of the headers and the exchange returning a
new header set; the input is never modified. The filters of a pipeline run
in registration order, each one receiving the output of the previous one.
*/
package headers

import (
	"net/http"

	"github.com/zalando/gateway/exchange"
)

// Type tells which headers a filter is applied to.
type Type int

const (
	Request Type = iota
	Response
)

// Filter transforms request or response headers.
type Filter interface {
	Filter(h http.Header, ex *exchange.Exchange) http.Header
	Supports(Type) bool
}

// Apply runs the filters supporting t, in order.
func Apply(f []Filter, h http.Header, ex *exchange.Exchange, t Type) http.Header {
	if h == nil {
		h = make(http.Header)
	}

	for _, fi := range f {
		if fi.Supports(t) {
			h = fi.Filter(h, ex)
		}
	}

	return h
}

// Func adapts a function to a filter of the given types.
func Func(f func(http.Header, *exchange.Exchange) http.Header, types ...Type) Filter {
	return funcFilter{f: f, types: types}
}

type funcFilter struct {
	f     func(http.Header, *exchange.Exchange) http.Header
	types []Type
}

func (f funcFilter) Filter(h http.Header, ex *exchange.Exchange) http.Header {
	return f.f(h.Clone(), ex)
}

func (f funcFilter) Supports(t Type) bool {
	for _, ti := range f.types {
		if ti == t {
			return true
		}
	}

	return false
}
