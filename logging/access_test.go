package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const logOutput = `127.0.0.1 - - [10/Oct/2000:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.1" 418 2326 "" "" 42 127.0.0.1 route1 req1` + "\n"

func testRequest() *http.Request {
	r, _ := http.NewRequest("GET", "http://frank@127.0.0.1", nil)
	r.RequestURI = "/apache_pb.gif"
	r.RemoteAddr = "127.0.0.1"
	return r
}

func testDate() time.Time {
	l := time.FixedZone("foo", -7*3600)
	return time.Date(2000, 10, 10, 13, 55, 36, 0, l)
}

func testAccessEntry() *AccessEntry {
	return &AccessEntry{
		Request:      testRequest(),
		ResponseSize: 2326,
		StatusCode:   http.StatusTeapot,
		RequestTime:  testDate(),
		Duration:     42 * time.Millisecond,
		RouteID:      "route1",
		RequestID:    "req1",
	}
}

func testAccessLog(t *testing.T, entry *AccessEntry, jsonEnabled bool) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Init(Options{AccessLogOutput: &buf, AccessLogJSONEnabled: jsonEnabled}))
	LogAccess(entry)
	return buf.String()
}

func TestAccessLogFormat(t *testing.T) {
	assert.Equal(t, logOutput, testAccessLog(t, testAccessEntry(), false))
}

func TestAccessLogFormatJSON(t *testing.T) {
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(testAccessLog(t, testAccessEntry(), true)), &m))
	assert.Equal(t, "10/Oct/2000:13:55:36 -0700", m["timestamp"])
	assert.Equal(t, "GET", m["method"])
	assert.Equal(t, float64(418), m["status"])
	assert.Equal(t, float64(42), m["duration"])
	assert.Equal(t, "route1", m["route-id"])
}

func TestAccessLogForwardedFor(t *testing.T) {
	entry := testAccessEntry()
	entry.Request.Header.Set("X-Forwarded-For", "192.168.3.3, 10.0.0.1")
	entry.RouteID = ""
	out := testAccessLog(t, entry, false)
	assert.Regexp(t, `^192\.168\.3\.3 - - `, out)
	assert.Regexp(t, ` - req1\n$`, out)
}

func TestAccessLogIgnoresNil(t *testing.T) {
	assert.Empty(t, testAccessLog(t, nil, false))
}
