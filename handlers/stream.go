package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/charles-mendoza/agile-poker/models"
)

// Package-level WebSocket upgrader
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Stream event types
const (
	eventSnapshot = "snapshot"
	eventNotFound = "not_found"
	eventClosed   = "closed"
)

type streamEvent struct {
	Type string       `json:"type"`
	Room *models.Room `json:"room,omitempty"`
}

// StreamEvents upgrades the connection and forwards every room snapshot
// to the client, this client's own writes included. A room that does not
// exist streams a not_found event instead of failing, so the client can
// render its "room does not exist" view and still catch a later create.
func (h *RoomHandler) StreamEvents(c *gin.Context) {
	roomID := c.Param("id")

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "could not upgrade to WebSocket")
		return
	}
	defer conn.Close()

	snapshots, cancel := h.store.Subscribe(roomID)
	defer cancel()

	// Setup ping ticker for keep-alive
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	// Create a channel to handle client disconnections
	done := make(chan struct{})
	go drainIncoming(conn, done)

	h.log.Debug().Str("room", roomID).Msg("snapshot stream opened")

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				// Terminal store failure or shutdown.
				_ = conn.WriteJSON(streamEvent{Type: eventClosed})
				return
			}
			event := streamEvent{Type: eventSnapshot, Room: snap.Room}
			if snap.Room == nil {
				event.Type = eventNotFound
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// drainIncoming reads and discards client frames so pongs are processed
// and disconnects are noticed. Players are never removed from the room on
// disconnect; identity outlives the connection.
func drainIncoming(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
