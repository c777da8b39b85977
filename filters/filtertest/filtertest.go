/*
Package filtertest provides filter implementations and helpers for tests
of the filter chain and of the components building it.
*/
package filtertest

import (
	"net/http"
	"net/http/httptest"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
)

// Filter is a filter spec taking any named arguments. Its handlers only
// continue the chain.
type Filter struct {
	FilterName  string
	FilterOrder int
}

// Config holds the arguments a Filter was created with.
type Config map[string]any

func (s *Filter) Name() string                       { return s.FilterName }
func (s *Filter) NewConfig() any                     { return &Config{} }
func (s *Filter) ShortcutFieldOrder() []string       { return nil }
func (s *Filter) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (s *Filter) Apply(config any) (filters.Handler, error) {
	h := &Handler{Config: *config.(*Config)}
	if s.FilterOrder != 0 {
		return &OrderedHandler{Handler: h, order: s.FilterOrder}, nil
	}

	return h, nil
}

// Handler is created by Filter.
type Handler struct {
	Config Config
}

func (h *Handler) Filter(ex *exchange.Exchange, next filters.Chain) error { return next.Next(ex) }

// OrderedHandler is created by a Filter with an explicit order.
type OrderedHandler struct {
	*Handler
	order int
}

func (h *OrderedHandler) Order() int { return h.order }

// Backend is the last handler of a test chain. It records the request it
// received and answers with its status and headers.
type Backend struct {
	StatusCode int
	Header     http.Header
	Body       string
	Err        error

	Calls   int
	Request *http.Request
}

func (b *Backend) Filter(ex *exchange.Exchange, _ filters.Chain) error {
	b.Calls++
	b.Request = ex.Request
	if b.Err != nil {
		return b.Err
	}

	for k, values := range b.Header {
		for _, v := range values {
			ex.Response.Header().Add(k, v)
		}
	}

	if b.StatusCode != 0 {
		ex.Response.SetStatusCode(b.StatusCode)
	}

	if b.Body != "" {
		_, err := ex.Response.Write([]byte(b.Body))
		return err
	}

	return nil
}

// Run executes handlers as a chain on a new exchange for r, in the order
// given, and commits the response.
func Run(r *http.Request, handlers ...filters.Handler) (*exchange.Exchange, *httptest.ResponseRecorder, error) {
	w := httptest.NewRecorder()
	ex := exchange.New(w, r)
	f := make([]*filters.Filter, len(handlers))
	for i, h := range handlers {
		f[i] = &filters.Filter{Name: "test", Order: i, Handler: h}
	}

	err := filters.Run(ex, f)
	if err == nil {
		ex.Response.Commit()
	}

	return ex, w, err
}
