package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/headers"
	"github.com/zalando/gateway/routing"
)

const closeWriteTimeout = time.Second

type webSocketFilter struct {
	options        Options
	client         *client
	requestHeaders []headers.Filter
	upgrader       websocket.Upgrader
}

// NewWebSocket creates the filter relaying ws and wss targets. It dials the
// upstream, upgrades the client connection with the subprotocol chosen by
// the upstream and relays the frames in both directions until one side
// closes. The close status is forwarded to the other side. The filter owns
// the client connection and does not continue the chain after dispatching.
func NewWebSocket(o Options) *filters.Filter {
	o = o.withDefaults()
	return newWebSocket(o, newClient(o))
}

func newWebSocket(o Options, c *client) *filters.Filter {
	return &filters.Filter{
		Name:  WebSocketName,
		Order: WebSocketOrder,
		Handler: &webSocketFilter{
			options:        o,
			client:         c,
			requestHeaders: append(o.requestHeaderFilters(), headers.WebsocketHandshake{}),
			upgrader: websocket.Upgrader{
				CheckOrigin: func(*http.Request) bool { return true },
			},
		},
	}
}

func (f *webSocketFilter) dial(ctx context.Context, ex *exchange.Exchange, connectTimeout time.Duration) (*websocket.Conn, *http.Response, error) {
	if connectTimeout <= 0 {
		connectTimeout = f.options.ConnectTimeout
	}

	d := websocket.Dialer{
		NetDialContext:   f.client.newDialer(connectTimeout).DialContext,
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
		Subprotocols:     websocket.Subprotocols(ex.Request),
	}

	h := headers.Apply(f.requestHeaders, ex.Request.Header, ex, headers.Request)
	if ex.PreserveHost() {
		h.Set("Host", ex.OriginalRequest().Host)
	}

	return d.DialContext(ctx, ex.RequestURL().String(), h)
}

func closeCode(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseNoStatusReceived || ce.Code == websocket.CloseAbnormalClosure {
			return websocket.CloseNormalClosure, ""
		}

		return ce.Code, ce.Text
	}

	return websocket.CloseGoingAway, ""
}

// relay copies the messages from src to dst. When reading from src fails,
// its close status is sent to dst.
func relay(dst, src *websocket.Conn) error {
	for {
		typ, msg, err := src.ReadMessage()
		if err != nil {
			code, text := closeCode(err)
			dst.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(closeWriteTimeout))
			return err
		}

		if err := dst.WriteMessage(typ, msg); err != nil {
			return err
		}
	}
}

func (f *webSocketFilter) Filter(ex *exchange.Exchange, next filters.Chain) error {
	changeSchemeIfWebsocketUpgrade(ex)
	if shouldSkip(ex, "ws", "wss") || !ex.MarkRouted() {
		return next.Next(ex)
	}

	rt := routing.FromExchange(ex)
	routeID := ""
	if rt != nil {
		routeID = rt.Id
	}

	connectTimeout, _ := timeouts(f.options, rt)
	upstream, rsp, err := f.dial(ex.Context(), ex, connectTimeout)
	if err != nil {
		f.options.Metrics.IncErrorsBackend(routeID)
		if rsp != nil {
			return filters.NewStatusError(rsp.StatusCode, fmt.Errorf("websocket handshake with %s failed: %w", ex.RequestURL().Host, err))
		}

		return mapError(ex, ex.Context(), err)
	}

	defer upstream.Close()

	rh := make(http.Header)
	if p := upstream.Subprotocol(); p != "" {
		rh.Set("Sec-Websocket-Protocol", p)
	}

	ex.Response.MarkHijacked()
	downstream, err := f.upgrader.Upgrade(ex.Response.Writer(), ex.Request, rh)
	if err != nil {
		f.options.Log.Errorf("%sfailed to upgrade the client connection: %v", ex.LogPrefix(), err)
		return nil
	}

	defer downstream.Close()

	f.options.Log.Debugf("%srelaying websocket to %s", ex.LogPrefix(), ex.RequestURL())
	var g errgroup.Group
	g.Go(func() error {
		defer upstream.Close()
		return relay(upstream, downstream)
	})

	g.Go(func() error {
		defer downstream.Close()
		return relay(downstream, upstream)
	})

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		f.options.Log.Debugf("%swebsocket relay ended: %v", ex.LogPrefix(), err)
	}

	return nil
}
