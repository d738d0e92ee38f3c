package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ClientFrame is a message sent by a client.
type ClientFrame struct {
	Action string `json:"action"` // join or leave
	Group  string `json:"group"`
}

// ServerFrame is a message sent to a client.
type ServerFrame struct {
	Type  string `json:"type"` // event, joined, left or error
	Event *Event `json:"event,omitempty"`
	Group string `json:"group,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler upgrades authenticated requests to websocket connections attached
// to the hub.
type Handler struct {
	hub      *Hub
	verifier *auth.TokenVerifier
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler. An empty allowedOrigins accepts any
// origin; the token is the credential, not cookies.
func NewHandler(hub *Hub, verifier *auth.TokenVerifier, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			token = v
		}
	}
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	principal, err := h.verifier.Verify(token)
	if err != nil {
		logger.Warn().Err(err).Msg("rejected realtime connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub, err := h.hub.Connect(principal)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	c := &connection{
		hub:     h.hub,
		conn:    conn,
		sub:     sub,
		replies: make(chan ServerFrame, 16),
		logger:  logger.With().Stringer("subscriber", sub.ID()).Stringer("user_id", principal.UserID).Logger(),
	}

	for _, g := range DefaultGroups(principal) {
		if err := h.hub.Join(sub, g); err == nil {
			c.replies <- ServerFrame{Type: "joined", Group: string(g)}
		}
	}

	c.logger.Debug().Msg("realtime connection opened")

	go c.writePump()
	c.readPump()
}

type connection struct {
	hub     *Hub
	conn    *websocket.Conn
	sub     *Subscriber
	replies chan ServerFrame
	logger  zerolog.Logger
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// readPump handles join and leave frames until the client goes away.
func (c *connection) readPump() {
	defer func() {
		c.hub.Disconnect(c.sub)
		c.logger.Debug().Msg("realtime connection closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("realtime read failed")
			}
			if isDecodeError(err) {
				c.reply(ServerFrame{Type: "error", Error: "malformed frame"})
				continue
			}
			return
		}

		c.handle(frame)
	}
}

func (c *connection) handle(frame ClientFrame) {
	group, err := ParseGroup(frame.Group)
	if err != nil {
		c.reply(ServerFrame{Type: "error", Error: err.Error(), Group: frame.Group})
		return
	}

	switch frame.Action {
	case "join":
		if err := c.hub.Join(c.sub, group); err != nil {
			c.logger.Info().Str("group", frame.Group).Err(err).Msg("realtime join rejected")
			c.reply(ServerFrame{Type: "error", Error: err.Error(), Group: frame.Group})
			return
		}
		c.reply(ServerFrame{Type: "joined", Group: frame.Group})
	case "leave":
		c.hub.Leave(c.sub, group)
		c.reply(ServerFrame{Type: "left", Group: frame.Group})
	default:
		c.reply(ServerFrame{Type: "error", Error: "unknown action " + frame.Action})
	}
}

func (c *connection) reply(f ServerFrame) {
	select {
	case c.replies <- f:
	default:
		c.logger.Warn().Str("type", f.Type).Msg("reply queue full, dropping frame")
	}
}

// writePump is the only writer on the connection.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.sub.Events():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(ServerFrame{Type: "event", Event: &evt}); err != nil {
				return
			}
		case f := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
