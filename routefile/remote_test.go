package routefile

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeServer struct {
	mu        sync.Mutex
	content   string
	etag      string
	status    int
	notModify int
}

func (s *routeServer) set(content, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content, s.etag = content, etag
}

func (s *routeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}

	if s.etag != "" && r.Header.Get("If-None-Match") == s.etag {
		s.notModify++
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", s.etag)
	w.Write([]byte(s.content))
}

func TestRemoteWatch(t *testing.T) {
	rs := &routeServer{}
	rs.set(testRoutes, `"v1"`)
	server := httptest.NewServer(rs)
	defer server.Close()

	dc, err := RemoteWatch(&RemoteWatchOptions{RemoteFile: server.URL + "/routes.yaml", FailOnStartup: true})
	require.NoError(t, err)
	defer dc.(*remoteFile).Close()

	routes, err := dc.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "baz", "foo"}, ids(routes))

	upserted, deleted, err := dc.LoadUpdate()
	require.NoError(t, err)
	assert.Empty(t, upserted)
	assert.Empty(t, deleted)
	assert.Equal(t, 1, rs.notModify)

	rs.set(testRoutesUpdated, `"v2"`)
	upserted, deleted, err = dc.LoadUpdate()
	require.NoError(t, err)
	assert.Equal(t, []string{"baz"}, ids(upserted))
	assert.Equal(t, []string{"bar"}, deleted)
}

func TestRemoteWatchFailOnStartup(t *testing.T) {
	server := httptest.NewServer(&routeServer{status: http.StatusInternalServerError})
	defer server.Close()

	_, err := RemoteWatch(&RemoteWatchOptions{RemoteFile: server.URL, FailOnStartup: true})
	assert.Error(t, err)
}

func TestRemoteWatchLocalPath(t *testing.T) {
	name := filepath.Join(t.TempDir(), "routes.yaml")
	writeFile(t, name, testRoutes)

	dc, err := RemoteWatch(&RemoteWatchOptions{RemoteFile: name})
	require.NoError(t, err)
	require.IsType(t, &WatchClient{}, dc)
	defer dc.(*WatchClient).Close()

	routes, err := dc.LoadAll()
	require.NoError(t, err)
	assert.Len(t, routes, 3)
}
