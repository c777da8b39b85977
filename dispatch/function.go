package dispatch

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"strings"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/function"
)

// message headers not copied to the response
var ignoredMessageHeaders = map[string]bool{
	"id":                        true,
	"content-length":            true,
	"host":                      true,
	"accept":                    true,
	function.RequestParamHeader: true,
	function.DefinitionHeader:   true,
}

type functionFilter struct {
	options Options
}

// NewFunction creates the filter invoking fn://name targets from the
// function catalog. The request body is the payload of the input message,
// the request headers and the query parameters are its headers. The result
// is set as the client response before the chain continues.
func NewFunction(o Options) *filters.Filter {
	return &filters.Filter{
		Name:    FunctionName,
		Order:   FunctionOrder,
		Handler: &functionFilter{options: o.withDefaults()},
	}
}

func requestBody(ex *exchange.Exchange) ([]byte, error) {
	if b, ok := exchange.Value[[]byte](ex, exchange.CachedRequestBodyKey); ok {
		return b, nil
	}

	if ex.Request.Body == nil {
		return nil, nil
	}

	defer ex.Request.Body.Close()
	return io.ReadAll(ex.Request.Body)
}

func inputMessage(ex *exchange.Exchange, body []byte) function.Message {
	m := function.Message{Payload: body, Headers: make(map[string]any, len(ex.Request.Header)+1)}
	for name := range ex.Request.Header {
		m.Headers[strings.ToLower(name)] = ex.Request.Header.Get(name)
	}

	if q := ex.Request.URL.Query(); len(q) > 0 {
		params := make(map[string]string, len(q))
		for k := range q {
			params[k] = q.Get(k)
		}

		m.Headers[function.RequestParamHeader] = params
	}

	return m
}

func messageHeaders(h http.Header, m map[string]any) {
	for name, v := range m {
		if ignoredMessageHeaders[strings.ToLower(name)] {
			continue
		}

		switch vv := v.(type) {
		case string:
			h.Set(name, vv)
		case []string:
			h.Del(name)
			for _, vi := range vv {
				h.Add(name, vi)
			}
		case fmt.Stringer:
			h.Set(name, vv.String())
		case int, int64, float64, bool:
			h.Set(name, fmt.Sprint(vv))
		}
	}
}

// streamBody writes the encoded values of s to a pipe. The stream stops when
// the reading side is closed.
func streamBody(s iter.Seq2[any, error]) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		for v, err := range s {
			if err != nil {
				pw.CloseWithError(err)
				return
			}

			b, err := function.Encode(v)
			if err != nil {
				pw.CloseWithError(err)
				return
			}

			if _, err := pw.Write(b); err != nil {
				return
			}
		}

		pw.Close()
	}()

	return pr
}

func (f *functionFilter) Filter(ex *exchange.Exchange, next filters.Chain) error {
	if shouldSkip(ex, "fn") || !ex.MarkRouted() {
		return next.Next(ex)
	}

	u := ex.RequestURL()
	var (
		h  function.Handle
		ok bool
	)

	if f.options.Functions != nil {
		h, ok = f.options.Functions.Lookup(u.Host, ex.Request.Header.Values("Accept")...)
	}

	if !ok {
		return &filters.NotFoundError{Message: "no function for uri " + u.String(), Use404: f.options.Use404}
	}

	body, err := requestBody(ex)
	if err != nil {
		return filters.NewStatusError(http.StatusBadRequest, err)
	}

	out, err := h.Apply(ex.Context(), inputMessage(ex, body))
	if err != nil {
		return fmt.Errorf("function %s failed: %w", h.Name(), err)
	}

	rh := make(http.Header)
	if m, ok := out.(function.Message); ok {
		messageHeaders(rh, m.Headers)
		out = m.Payload
	}

	if rh.Get("Content-Type") == "" && len(h.ContentTypes()) > 0 {
		rh.Set("Content-Type", h.ContentTypes()[0])
	}

	status := http.StatusOK
	if h.IsConsumer() {
		status = http.StatusAccepted
	}

	var rb io.ReadCloser
	switch s := out.(type) {
	case function.Stream:
		rb = streamBody(iter.Seq2[any, error](s))
	case iter.Seq2[any, error]:
		rb = streamBody(s)
	default:
		b, err := function.Encode(out)
		if err != nil {
			return fmt.Errorf("function %s: failed to encode the result: %w", h.Name(), err)
		}

		rh.Set("Content-Length", strconv.Itoa(len(b)))
		rb = io.NopCloser(bytes.NewReader(b))
	}

	for name, values := range rh {
		ex.Response.Header()[name] = values
	}

	ex.Response.SetStatusCode(status)
	ex.Set(exchange.ClientResponseKey, exchange.NewClientResponse(status, rh, rb, nil))
	return next.Next(ex)
}
