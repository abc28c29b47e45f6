// Package ws is the WebSocket push transport between the canvas service and
// rendering clients, plus a probe client that plays the renderer role.
package ws

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/clients"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/protocol/wire"
)

const SessionHeader = "Mcp-Session-Id"

// Service is the canvas surface a push connection drives.
type Service interface {
	Connect(clientID string, sender clients.Sender, sessionID string) int
	Disconnect(clientID string) bool
	HandleClientMessage(clientID string, msg wire.Inbound) (wire.Outbound, bool)
}

type Handler struct {
	svc      Service
	cfg      Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewHandler(svc Service, cfg Config) *Handler {
	cfg = cfg.WithDefaults()
	h := &Handler{
		svc:    svc,
		cfg:    cfg,
		logger: log.Logger.With().Str("component", "ws").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get(SessionHeader))
	}
	c := &connection{
		id:     uuid.NewString(),
		conn:   conn,
		sender: clients.NewQueueSender(h.cfg.SendBuffer),
		svc:    h.svc,
		cfg:    h.cfg,
		logger: h.logger,
	}
	go c.writeLoop()
	replayed := h.svc.Connect(c.id, c.sender, sessionID)
	h.logger.Debug().
		Str("client_id", c.id).
		Str("session_id", sessionID).
		Int("replayed", replayed).
		Msg("websocket client attached")
	c.readLoop()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin)
}

type connection struct {
	id     string
	conn   *websocket.Conn
	sender *clients.QueueSender
	svc    Service
	cfg    Config
	logger zerolog.Logger
}

// writeLoop is the only goroutine writing data frames to conn.
func (c *connection) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.sender.Ready():
			if !c.flush() {
				c.svc.Disconnect(c.id)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.svc.Disconnect(c.id)
				return
			}
		case <-c.sender.Done():
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// flush writes every queued message in order and reports whether the
// connection is still writable.
func (c *connection) flush() bool {
	for _, msg := range c.sender.Drain() {
		raw, err := wire.Encode(msg)
		if err != nil {
			c.logger.Error().Err(err).Str("client_id", c.id).Msg("encode outbound failed")
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			c.logger.Warn().Err(err).Str("client_id", c.id).Msg("websocket write failed")
			return false
		}
	}
	return true
}

// reply queues an ack for the client. A reply that cannot be queued is a
// delivery failure like any other push, so the client is dropped.
func (c *connection) reply(msg wire.Outbound) bool {
	if err := c.sender.Send(msg); err != nil {
		c.logger.Warn().Err(err).Str("client_id", c.id).Msg("reply failed; dropping client")
		c.svc.Disconnect(c.id)
		return false
	}
	return true
}

func (c *connection) readLoop() {
	defer c.svc.Disconnect(c.id)
	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})
	for {
		kind, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Str("client_id", c.id).Msg("websocket read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		msg, err := wire.DecodeInbound(raw)
		if err != nil {
			c.logger.Warn().Err(err).Str("client_id", c.id).Msg("dropping malformed client message")
			continue
		}
		reply, ok := c.svc.HandleClientMessage(c.id, msg)
		if !ok {
			continue
		}
		if !c.reply(reply) {
			return
		}
	}
}
