package logging

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	dateFormat      = "02/Jan/2006:15:04:05 -0700"
	commonLogFormat = `%s - - [%s] "%s %s %s" %d %d`
	// format:
	// remote_host - - [date] "method uri protocol" status response_size "referer" "user_agent"
	combinedLogFormat = commonLogFormat + ` "%s" "%s"`
	// We add the duration in ms, the requested host, the route id and
	// the request id
	accessLogFormat = combinedLogFormat + " %d %s %s %s\n"
)

type accessLogFormatter struct {
	format string
}

// Access log entry.
type AccessEntry struct {

	// The client request.
	Request *http.Request

	// The status code of the response.
	StatusCode int

	// The size of the response in bytes.
	ResponseSize int64

	// The time spent processing request.
	Duration time.Duration

	// The time that the request was received.
	RequestTime time.Time

	// The id of the matched route, empty when no route matched.
	RouteID string

	// The id of the exchange.
	RequestID string
}

var accessLog atomic.Pointer[logrus.Logger]

// strip port from addresses with hostname, ipv4 or ipv6
func stripPort(address string) string {
	if h, _, err := net.SplitHostPort(address); err == nil {
		return h
	}

	return address
}

// The remote address of the client. When the 'X-Forwarded-For'
// header is set, its first entry is used instead.
func remoteAddr(r *http.Request) string {
	ff := r.Header.Get("X-Forwarded-For")
	if ff != "" {
		first, _, _ := strings.Cut(ff, ",")
		return strings.TrimSpace(first)
	}

	return r.RemoteAddr
}

func remoteHost(r *http.Request) string {
	a := remoteAddr(r)
	h := stripPort(a)
	if h != "" {
		return h
	}

	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func (f *accessLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	keys := []string{
		"host", "timestamp", "method", "uri", "proto",
		"status", "response-size", "referer", "user-agent",
		"duration", "requested-host", "route-id", "request-id"}

	values := make([]any, len(keys))
	for i, key := range keys {
		values[i] = e.Data[key]
	}

	return fmt.Appendf(nil, f.format, values...), nil
}

// LogAccess logs an access event in Apache combined log format, with the
// duration, the requested host, the route and the request id appended.
func LogAccess(entry *AccessEntry) {
	l := accessLog.Load()
	if l == nil || entry == nil {
		return
	}

	host := "-"
	var method, uri, proto, referer, userAgent, requestedHost string

	if entry.Request != nil {
		host = remoteHost(entry.Request)
		method = entry.Request.Method
		uri = entry.Request.RequestURI
		proto = entry.Request.Proto
		referer = entry.Request.Referer()
		userAgent = entry.Request.UserAgent()
		requestedHost = entry.Request.Host
	}

	l.WithFields(logrus.Fields{
		"timestamp":      entry.RequestTime.Format(dateFormat),
		"host":           host,
		"method":         method,
		"uri":            uri,
		"proto":          proto,
		"referer":        referer,
		"user-agent":     userAgent,
		"status":         entry.StatusCode,
		"response-size":  entry.ResponseSize,
		"requested-host": requestedHost,
		"duration":       int64(entry.Duration / time.Millisecond),
		"route-id":       orDash(entry.RouteID),
		"request-id":     orDash(entry.RequestID),
	}).Infoln()
}
