// File: internal/handlers/ws_handler.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/iyunix/go-roomchat/internal/middleware"
	"github.com/iyunix/go-roomchat/internal/services"
	"github.com/iyunix/go-roomchat/internal/session"
	"github.com/iyunix/go-roomchat/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WSHandler struct {
	manager *session.Manager
	hub     *transport.Hub
	logger  services.Logger
}

func NewWSHandler(manager *session.Manager, hub *transport.Hub, logger services.Logger) *WSHandler {
	return &WSHandler{manager: manager, hub: hub, logger: logger}
}

// Serve upgrades the connection and binds it to a room session. The
// read loop runs on the request goroutine until the peer disconnects.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["roomID"]
	activeThread := r.URL.Query().Get("thread")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	identity.ConnID = uuid.NewString()
	client := transport.NewClient(identity.ConnID, roomID, identity, ws, h.logger)

	room := h.manager.Room(roomID)
	h.hub.Register(client)
	room.Join(client, activeThread)

	go client.WritePump()
	client.ReadPump(room.HandleEvent, func(c *transport.Client) {
		room.Leave(c)
		h.hub.Unregister(c)
	})
}
