/*
Package backendtest provides an upstream for tests, that records the
requests it receives and echoes their bodies.
*/
package backendtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	log "github.com/sirupsen/logrus"
)

type RecordedRequest struct {
	Method string
	Host   string
	URL    *url.URL
	Header http.Header
	Body   string
}

type Done chan struct{}

// BackendRecorder answers every request with the request body, and with
// the configured status and headers.
type BackendRecorder struct {
	server           *httptest.Server
	requests         []RecordedRequest
	mutex            sync.RWMutex
	expectedRequests int
	pendingRequests  int
	statusCode       int
	header           http.Header

	// Done is closed when the expected number of requests was served.
	Done Done
}

func (rec *BackendRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("backendrecorder: error while reading request body")
	}

	rec.mutex.Lock()
	rec.requests = append(rec.requests, RecordedRequest{
		Method: r.Method,
		Host:   r.Host,
		URL:    r.URL,
		Header: r.Header.Clone(),
		Body:   string(body),
	})

	rec.pendingRequests--
	if rec.pendingRequests == 0 {
		close(rec.Done)
	}

	for k, v := range rec.header {
		w.Header()[k] = v
	}

	status := rec.statusCode
	rec.mutex.Unlock()

	if status != 0 {
		w.WriteHeader(status)
	}

	if _, err := w.Write(body); err != nil {
		log.Error("backendrecorder: error while writing the response body")
	}
}

// Respond sets the status and the headers of the responses.
func (rec *BackendRecorder) Respond(statusCode int, h http.Header) {
	rec.mutex.Lock()
	defer rec.mutex.Unlock()
	rec.statusCode = statusCode
	rec.header = h
}

func (rec *BackendRecorder) GetRequests() []RecordedRequest {
	rec.mutex.RLock()
	defer rec.mutex.RUnlock()
	requests := make([]RecordedRequest, len(rec.requests))
	copy(requests, rec.requests)
	return requests
}

func (rec *BackendRecorder) GetServedRequests() int {
	rec.mutex.RLock()
	defer rec.mutex.RUnlock()
	return len(rec.requests)
}

func (rec *BackendRecorder) GetURL() string {
	return rec.server.URL
}

func (rec *BackendRecorder) Close() {
	rec.server.Close()
}

// NewBackendRecorder starts a recorder. Done is closed after
// expectedRequests requests.
func NewBackendRecorder(expectedRequests int) *BackendRecorder {
	handler := &BackendRecorder{
		pendingRequests:  expectedRequests,
		expectedRequests: expectedRequests,
		Done:             make(chan struct{}),
	}

	if expectedRequests == 0 {
		close(handler.Done)
	}

	handler.server = httptest.NewServer(handler)
	return handler
}
