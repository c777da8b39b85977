package exchange

import (
	"net/http"
)

// Response is the client response under construction. Status and headers
// are buffered until the first write or an explicit Commit.
type Response struct {
	writer    http.ResponseWriter
	header    http.Header
	status    int
	committed bool
	hijacked  bool
	written   int64
}

func newResponse(w http.ResponseWriter) *Response {
	return &Response{writer: w, header: make(http.Header)}
}

// Header returns the response header. Changes after Commit have no effect.
func (r *Response) Header() http.Header { return r.header }

// StatusCode returns the status set so far, or 0 when none was set.
func (r *Response) StatusCode() int { return r.status }

// SetStatusCode sets the status verbatim, including values outside the
// registered HTTP status codes. It returns false when the response was
// already committed.
func (r *Response) SetStatusCode(code int) bool {
	if r.committed {
		return false
	}

	r.status = code
	return true
}

// IsCommitted tells whether the status and headers were sent.
func (r *Response) IsCommitted() bool { return r.committed || r.hijacked }

// Hijacked tells whether a filter took over the connection.
func (r *Response) Hijacked() bool { return r.hijacked }

// MarkHijacked records that the underlying connection was taken over, e.g.
// by a websocket upgrade. Nothing is written through the response after it.
func (r *Response) MarkHijacked() { r.hijacked = true }

// Writer returns the underlying writer, used for connection upgrades.
func (r *Response) Writer() http.ResponseWriter { return r.writer }

// Written returns the number of body bytes sent.
func (r *Response) Written() int64 { return r.written }

// Commit sends the status and headers. A response never carries both
// Transfer-Encoding and Content-Length.
func (r *Response) Commit() {
	if r.committed || r.hijacked {
		return
	}

	r.committed = true
	if r.header.Get("Content-Length") != "" {
		r.header.Del("Transfer-Encoding")
	}

	h := r.writer.Header()
	for k, v := range r.header {
		h[k] = v
	}

	status := r.status
	if status == 0 {
		status = http.StatusOK
	}

	r.writer.WriteHeader(status)
}

// Write commits the response if necessary and writes the body bytes.
func (r *Response) Write(p []byte) (int, error) {
	if r.hijacked {
		return 0, http.ErrHijacked
	}

	r.Commit()
	n, err := r.writer.Write(p)
	r.written += int64(n)
	return n, err
}

// Flush sends buffered body bytes to the client.
func (r *Response) Flush() {
	if r.hijacked {
		return
	}

	r.Commit()
	if f, ok := r.writer.(http.Flusher); ok {
		f.Flush()
	}
}
