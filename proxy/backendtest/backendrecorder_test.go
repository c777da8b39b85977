package backendtest

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestDoneWhenAllRequestsAreServed(t *testing.T) {
	expectedRequests := 4
	recorder := NewBackendRecorder(expectedRequests)
	defer recorder.Close()

	var g errgroup.Group
	for range expectedRequests {
		g.Go(func() error {
			resp, err := http.Post(recorder.GetURL()+"/path", "text/plain", strings.NewReader("body"))
			if err != nil {
				return err
			}

			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				return err
			}

			return resp.Body.Close()
		})
	}

	require.NoError(t, g.Wait())
	select {
	case <-recorder.Done:
	case <-time.After(time.Second):
		t.Fatal("recorder not done")
	}

	requests := recorder.GetRequests()
	require.Len(t, requests, expectedRequests)
	for _, r := range requests {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/path", r.URL.Path)
		assert.Equal(t, "body", r.Body)
	}
}

func TestRespond(t *testing.T) {
	recorder := NewBackendRecorder(1)
	defer recorder.Close()

	recorder.Respond(http.StatusTeapot, http.Header{"X-Test": []string{"test"}})
	resp, err := http.Post(recorder.GetURL(), "text/plain", strings.NewReader("echo"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "test", resp.Header.Get("X-Test"))
	assert.Equal(t, "echo", string(body))
	assert.Equal(t, 1, recorder.GetServedRequests())
}
