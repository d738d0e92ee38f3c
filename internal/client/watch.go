package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wolfeidau/tableside/internal/realtime"
)

// Watch connects to the realtime endpoint, joins groups beyond the defaults
// and calls fn for every frame until ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context, groups []string, fn func(realtime.ServerFrame)) error {
	u, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/v1/realtime"

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return decodeAPIError(resp)
		}
		return err
	}
	defer conn.Close()

	for _, g := range groups {
		if err := conn.WriteJSON(realtime.ClientFrame{Action: "join", Group: g}); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var frame realtime.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(frame)
	}
}
