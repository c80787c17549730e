package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tablefold/tablefold/internal/events"
	"github.com/tablefold/tablefold/internal/observability"
)

// WSHandler upgrades connections and hands them to the event hub, which
// pushes job status changes to every connected client.
type WSHandler struct {
	logger   *observability.Logger
	hub      *events.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *observability.Logger, hub *events.Hub) *WSHandler {
	return &WSHandler{
		logger: logger.WithComponent("ws"),
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	h.hub.Register(conn)
	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Websocket client connected")

	// Clients only listen; the read loop exists to detect disconnects.
	go func() {
		defer func() {
			h.hub.Unregister(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
