package handler

import (
	"go-pos-ws/internal/terminal"
	"go-pos-ws/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type WSHandler struct {
	hub       *ws.Hub
	terminals *terminal.Manager
	log       *zap.Logger
}

func NewWSHandler(hub *ws.Hub, terminals *terminal.Manager, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, terminals: terminals, log: log}
}

// Upgrade gates /ws. It runs after RequireAuth, so ownership of the optional
// ?terminal= is checked before the connection is upgraded.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}
	if id := c.Query("terminal"); id != "" {
		t, err := h.terminals.Get(id, getUserID(c))
		if err != nil {
			return respondError(c, err)
		}
		c.Locals("terminal", t)
	}
	return c.Next()
}

// Serve receives the feed broadcasts and, when attached, the terminal's
// session_state and cart_state pushes. Inbound messages are ignored.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		client := ws.NewClient(conn, userID)
		h.hub.Register(client)
		defer h.hub.Unregister(client)

		if t, ok := conn.Locals("terminal").(*terminal.Terminal); ok {
			detach := t.Attach(client)
			defer detach()
			h.log.Debug("terminal attached", zap.String("terminal_id", t.ID), zap.String("user_id", userID))
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	})
}
