package headers

import (
	"net/http"
	"strings"

	"github.com/zalando/gateway/exchange"
)

// HopByHop lists the headers that apply to a single connection.
var HopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RemoveHopByHop removes the hop-by-hop headers and the headers listed in
// the Connection header.
type RemoveHopByHop struct {

	// Headers overrides the default HopByHop list.
	Headers []string
}

func (f RemoveHopByHop) Filter(h http.Header, _ *exchange.Exchange) http.Header {
	out := h.Clone()
	for _, c := range h.Values("Connection") {
		for _, name := range strings.Split(c, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}

	names := f.Headers
	if len(names) == 0 {
		names = HopByHop
	}

	for _, name := range names {
		out.Del(name)
	}

	return out
}

func (RemoveHopByHop) Supports(Type) bool { return true }

// TransferEncodingNormalization removes Transfer-Encoding from responses
// that carry a Content-Length.
type TransferEncodingNormalization struct{}

func (TransferEncodingNormalization) Filter(h http.Header, _ *exchange.Exchange) http.Header {
	out := h.Clone()
	if out.Get("Content-Length") != "" {
		out.Del("Transfer-Encoding")
	}

	return out
}

func (TransferEncodingNormalization) Supports(t Type) bool { return t == Response }

// WebsocketHandshake removes the Sec-WebSocket-* headers of the client
// handshake. The upstream handshake sets its own.
type WebsocketHandshake struct{}

func (WebsocketHandshake) Filter(h http.Header, _ *exchange.Exchange) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if strings.HasPrefix(http.CanonicalHeaderKey(k), "Sec-Websocket-") {
			continue
		}

		out[k] = append([]string(nil), v...)
	}

	return out
}

func (WebsocketHandshake) Supports(t Type) bool { return t == Request }
