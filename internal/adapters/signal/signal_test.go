package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

func newHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	r := gin.New()
	r.GET("/events", func(c *gin.Context) { hub.HandleEvents(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	before := hub.Len()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Len() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHubStreamsEventsByGuild(t *testing.T) {
	hub, url := newHubServer(t)
	all := dial(t, hub, url)
	g1 := dial(t, hub, url+"?guild=g1")

	hub.Publish(core.Event{Type: core.EventSessionCreated, GuildID: "g2", SessionID: "s2"})
	hub.Publish(core.Event{Type: core.EventSessionCreated, GuildID: "g1", SessionID: "s1"})

	var ev core.Event
	readJSON(t, g1, &ev)
	assert.Equal(t, domain.SessionID("s1"), ev.SessionID, "g2 event is filtered out")

	readJSON(t, all, &ev)
	assert.Equal(t, domain.SessionID("s2"), ev.SessionID)
	readJSON(t, all, &ev)
	assert.Equal(t, domain.SessionID("s1"), ev.SessionID)
}

func TestHubPingAndSubscribe(t *testing.T) {
	hub, url := newHubServer(t)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var msg map[string]any
	readJSON(t, conn, &msg)
	assert.Equal(t, "pong", msg["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "guild": "g9"}))
	readJSON(t, conn, &msg)
	assert.Equal(t, "subscribed", msg["type"])

	hub.Publish(core.Event{Type: core.EventRoomSpawned, GuildID: "g1"})
	hub.Publish(core.Event{Type: core.EventRoomSpawned, GuildID: "g9", RoomID: "r9"})
	var ev core.Event
	readJSON(t, conn, &ev)
	assert.Equal(t, domain.RoomID("r9"), ev.RoomID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	readJSON(t, conn, &msg)
	assert.Equal(t, "bad_payload", msg["error"])
}

func TestHubForgetsClosedConnections(t *testing.T) {
	hub, url := newHubServer(t)
	conn := dial(t, hub, url)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTrySendBackpressure(t *testing.T) {
	c := &WsEventConn{send: make(chan []byte, 1)}
	require.NoError(t, c.TrySend([]byte("a")))
	assert.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)
}
