package dispatch

import (
	"io"
	"mime"
	"slices"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/routing"
)

const bufferSize = 8192

type writeResponse struct {
	options Options
}

// NewWriteResponse creates the filter writing the body of the client
// response, once every other filter completed. Bodies of streaming media
// types are flushed after every chunk. The client response is always
// closed, which returns fully read upstream connections to the pool and
// discards the others.
func NewWriteResponse(o Options) *filters.Filter {
	return &filters.Filter{
		Name:    WriteResponseName,
		Order:   WriteResponseOrder,
		Handler: &writeResponse{options: o.withDefaults()},
	}
}

func (f *writeResponse) isStreaming(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return slices.Contains(f.options.StreamingMediaTypes, mt)
}

// copies a stream with flushing on every successful read operation
func copyStream(to *exchange.Response, from io.Reader) error {
	b := make([]byte, bufferSize)
	for {
		l, rerr := from.Read(b)
		if rerr != nil && rerr != io.EOF {
			return rerr
		}

		if l > 0 {
			if _, werr := to.Write(b[:l]); werr != nil {
				return werr
			}

			to.Flush()
		}

		if rerr == io.EOF {
			return nil
		}
	}
}

func (f *writeResponse) Filter(ex *exchange.Exchange, next filters.Chain) error {
	err := next.Next(ex)
	cr := ex.ClientResponse()
	if cr == nil {
		return err
	}

	defer cr.Close()
	if err != nil || ex.Response.Hijacked() {
		return err
	}

	if err := ex.Context().Err(); err != nil {
		return err
	}

	streaming := f.isStreaming(ex.Response.Header().Get("Content-Type"))
	ex.Response.Commit()
	if streaming {
		ex.Response.Flush()
		err = copyStream(ex.Response, cr.Body)
	} else {
		_, err = io.CopyBuffer(ex.Response, cr.Body, make([]byte, bufferSize))
	}

	if err != nil {
		routeID := ""
		if rt := routing.FromExchange(ex); rt != nil {
			routeID = rt.Id
		}

		f.options.Metrics.IncErrorsStreaming(routeID)
		f.options.Log.Errorf("%serror while copying the response stream: %v", ex.LogPrefix(), err)
		return err
	}

	return nil
}
