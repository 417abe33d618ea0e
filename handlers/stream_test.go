package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charles-mendoza/agile-poker/db"
	"github.com/charles-mendoza/agile-poker/models"
	"github.com/charles-mendoza/agile-poker/session"
)

func dialStream(t *testing.T, server *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/rooms/" + roomID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) streamEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event streamEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestStreamEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := db.NewMemoryStore()
	t.Cleanup(store.Close)

	roomHandler := NewRoomHandler(store, session.NewManager(store), zerolog.Nop())
	router := gin.New()
	router.GET("/api/rooms/:id/events", roomHandler.StreamEvents)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	_, err := store.Create(ctx, "room-1")
	require.NoError(t, err)

	conn := dialStream(t, server, "room-1")

	initial := readEvent(t, conn)
	assert.Equal(t, eventSnapshot, initial.Type)
	require.NotNil(t, initial.Room)
	assert.Equal(t, models.StateSetup, initial.Room.State)

	// A store write from another client shows up on the stream.
	patch := models.Patch{models.UpsertPlayer{Player: models.Player{ID: "p1", Name: "Alice", IsModerator: true}}}
	require.NoError(t, store.Apply(ctx, "room-1", patch))

	update := readEvent(t, conn)
	assert.Equal(t, eventSnapshot, update.Type)
	require.NotNil(t, update.Room)
	assert.Contains(t, update.Room.Players, "p1")
}

func TestStreamEvents_MissingRoom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := db.NewMemoryStore()
	t.Cleanup(store.Close)

	roomHandler := NewRoomHandler(store, session.NewManager(store), zerolog.Nop())
	router := gin.New()
	router.GET("/api/rooms/:id/events", roomHandler.StreamEvents)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	conn := dialStream(t, server, "nowhere")

	// Absent rooms stream a not_found event instead of failing the
	// connection, and the stream picks up a later create.
	event := readEvent(t, conn)
	assert.Equal(t, eventNotFound, event.Type)
	assert.Nil(t, event.Room)

	_, err := store.Create(context.Background(), "nowhere")
	require.NoError(t, err)

	created := readEvent(t, conn)
	assert.Equal(t, eventSnapshot, created.Type)
	require.NotNil(t, created.Room)
}

func TestStreamEvents_StoreCloseEndsStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := db.NewMemoryStore()

	roomHandler := NewRoomHandler(store, session.NewManager(store), zerolog.Nop())
	router := gin.New()
	router.GET("/api/rooms/:id/events", roomHandler.StreamEvents)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	_, err := store.Create(context.Background(), "room-1")
	require.NoError(t, err)

	conn := dialStream(t, server, "room-1")
	readEvent(t, conn)

	store.Close()

	event := readEvent(t, conn)
	assert.Equal(t, eventClosed, event.Type)
}
