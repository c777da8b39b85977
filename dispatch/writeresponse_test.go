package dispatch

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/metrics/metricstest"
)

type flushCounter struct {
	*httptest.ResponseRecorder
	flushes int
}

func (f *flushCounter) Flush() {
	f.flushes++
	f.ResponseRecorder.Flush()
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

// respond sets a client response with the given content type and body.
func respond(contentType string, body io.ReadCloser, err error) *filters.Filter {
	return &filters.Filter{
		Name:  "respond",
		Order: 1,
		Handler: filters.HandlerFunc(func(ex *exchange.Exchange, _ filters.Chain) error {
			h := http.Header{"Content-Type": []string{contentType}}
			ex.Response.Header().Set("Content-Type", contentType)
			ex.Set(exchange.ClientResponseKey, exchange.NewClientResponse(http.StatusOK, h, body, nil))
			return err
		}),
	}
}

func TestWriteResponseFlushesStreamingTypes(t *testing.T) {
	for _, tt := range []struct {
		contentType string
		streaming   bool
	}{
		{contentType: "text/event-stream", streaming: true},
		{contentType: "application/x-ndjson; charset=utf-8", streaming: true},
		{contentType: "text/plain"},
		{contentType: "not a media type"},
	} {
		t.Run(tt.contentType, func(t *testing.T) {
			f := NewWriteResponse(Options{})
			body := &trackingBody{Reader: strings.NewReader("data: streamed\n\n")}
			w := &flushCounter{ResponseRecorder: httptest.NewRecorder()}
			ex := exchange.New(w, httptest.NewRequest("GET", "http://www.example.org/", nil))

			err := filters.Run(ex, []*filters.Filter{f, respond(tt.contentType, body, nil)})
			require.NoError(t, err)
			assert.Equal(t, "data: streamed\n\n", w.Body.String())
			assert.True(t, body.closed)
			if tt.streaming {
				assert.GreaterOrEqual(t, w.flushes, 2)
			} else {
				assert.Zero(t, w.flushes)
			}
		})
	}
}

func TestWriteResponseClosesOnError(t *testing.T) {
	f := NewWriteResponse(Options{})
	body := &trackingBody{Reader: strings.NewReader("never written")}
	w := httptest.NewRecorder()
	ex := exchange.New(w, httptest.NewRequest("GET", "http://www.example.org/", nil))

	err := filters.Run(ex, []*filters.Filter{f, respond("text/plain", body, errors.New("failed"))})
	assert.Error(t, err)
	assert.True(t, body.closed)
	assert.Empty(t, w.Body.String())
	assert.False(t, ex.Response.IsCommitted())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("upstream reset") }

func TestWriteResponseCopyError(t *testing.T) {
	m := &metricstest.MockMetrics{}
	f := NewWriteResponse(Options{Metrics: m})
	body := &trackingBody{Reader: failingReader{}}
	ex := exchange.New(httptest.NewRecorder(), httptest.NewRequest("GET", "http://www.example.org/", nil))

	err := filters.Run(ex, []*filters.Filter{f, respond("text/event-stream", body, nil)})
	assert.ErrorContains(t, err, "upstream reset")
	assert.True(t, body.closed)
	assert.True(t, ex.Response.IsCommitted())
	assert.Equal(t, int64(1), m.Counter("errors.streaming."))
}
