package exchange

import (
	"io"
	"net/http"
	"sync"
)

// ClientResponse is a response received from an upstream or produced by an
// in-process function. Its body is written to the client by the response
// writing filter.
type ClientResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	cancel func()
	once   sync.Once
	err    error
}

// NewClientResponse creates a response handle. cancel, when not nil, is
// called once the body is closed and releases the upstream call.
func NewClientResponse(status int, h http.Header, body io.ReadCloser, cancel func()) *ClientResponse {
	if body == nil {
		body = http.NoBody
	}

	return &ClientResponse{StatusCode: status, Header: h, Body: body, cancel: cancel}
}

// Close closes the body and releases the upstream call. It is safe to call
// more than once.
func (r *ClientResponse) Close() error {
	r.once.Do(func() {
		r.err = r.Body.Close()
		if r.cancel != nil {
			r.cancel()
		}
	})

	return r.err
}

// ClientResponse returns the response stored under ClientResponseKey.
func (ex *Exchange) ClientResponse() *ClientResponse {
	r, _ := Value[*ClientResponse](ex, ClientResponseKey)
	return r
}

// DiscardClientResponse closes and removes the stored client response.
func (ex *Exchange) DiscardClientResponse() {
	if r := ex.ClientResponse(); r != nil {
		r.Close()
		ex.Remove(ClientResponseKey)
	}
}

// MutateRequest applies f to the current request. The first mutation
// clones the request, so that the original request is never modified.
func (ex *Exchange) MutateRequest(f func(r *http.Request)) {
	if !ex.cloned {
		ex.Request = ex.Request.Clone(ex.Request.Context())
		ex.cloned = true
	}

	f(ex.Request)
}
