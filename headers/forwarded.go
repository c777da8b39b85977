package headers

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/zalando/gateway/exchange"
)

func remoteHost(r *http.Request) string {
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}

	return r.RemoteAddr
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}

	return "http"
}

func port(r *http.Request) string {
	if _, p, err := net.SplitHostPort(r.Host); err == nil && p != "" {
		return p
	}

	if r.TLS != nil {
		return "443"
	}

	return "80"
}

// XForwarded sets or appends the non-standard X-Forwarded-* headers from
// the request as received by the gateway.
type XForwarded struct {
	For    bool
	Host   bool
	Proto  bool
	Port   bool
	Prefix bool

	// Append adds the values of this hop to the ones received, instead
	// of replacing them.
	Append bool
}

// DefaultXForwarded enables every header in append mode.
var DefaultXForwarded = XForwarded{For: true, Host: true, Proto: true, Port: true, Prefix: true, Append: true}

func (f XForwarded) write(h http.Header, name, value string) {
	if value == "" {
		return
	}

	if current := h.Get(name); f.Append && current != "" {
		value = current + "," + value
	}

	h.Set(name, value)
}

func forwardedPrefix(ex *exchange.Exchange) string {
	original := ex.OriginalRequest().URL.Path
	current := ex.Request.URL.Path
	if current == original || !strings.HasSuffix(original, current) {
		return ""
	}

	prefix := strings.TrimSuffix(original, current)
	if current == "/" {
		prefix = strings.TrimSuffix(original, "/")
	}

	return prefix
}

func (f XForwarded) Filter(h http.Header, ex *exchange.Exchange) http.Header {
	out := h.Clone()
	r := ex.OriginalRequest()
	if f.For {
		f.write(out, "X-Forwarded-For", remoteHost(r))
	}

	if f.Host {
		f.write(out, "X-Forwarded-Host", r.Host)
	}

	if f.Proto {
		f.write(out, "X-Forwarded-Proto", scheme(r))
	}

	if f.Port {
		f.write(out, "X-Forwarded-Port", port(r))
	}

	if f.Prefix {
		f.write(out, "X-Forwarded-Prefix", forwardedPrefix(ex))
	}

	return out
}

func (XForwarded) Supports(t Type) bool { return t == Request }

// Forwarded appends an element to the standard Forwarded header, RFC
// 7239.
type Forwarded struct{}

func forwardedNode(addr string) string {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	if p != "" {
		host += ":" + p
	}

	if strings.ContainsAny(host, ":[]") {
		return strconv.Quote(host)
	}

	return host
}

func (Forwarded) Filter(h http.Header, ex *exchange.Exchange) http.Header {
	out := h.Clone()
	r := ex.OriginalRequest()

	var elem []string
	if r.RemoteAddr != "" {
		elem = append(elem, "for="+forwardedNode(r.RemoteAddr))
	}

	if r.Host != "" {
		elem = append(elem, "host="+forwardedNode(r.Host))
	}

	elem = append(elem, "proto="+scheme(r))
	out.Add("Forwarded", strings.Join(elem, ";"))
	return out
}

func (Forwarded) Supports(t Type) bool { return t == Request }
