package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatch(t *testing.T, hub *Hub, snapshot SnapshotFunc) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/watch/:session_key", UpgradeMiddleware(), Handler(hub, snapshot))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws/watch/"
}

func readEvent(t *testing.T, conn *websocket.Conn) (EventType, json.RawMessage) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &event))
	return event.Type, event.Data
}

func TestHandler_UpdateDuringSnapshotIsDelivered(t *testing.T) {
	hub := runHub(t)

	// an update recorded while the snapshot is being read
	snapshot := func(_ context.Context, sessionKey string) (interface{}, error) {
		hub.BroadcastToSession(sessionKey, EventViolationUpdate, map[string]int{"copies": 2})
		return []map[string]int{{"copies": 1}}, nil
	}
	url := startWatch(t, hub, snapshot)

	conn, _, err := websocket.DefaultDialer.Dial(url+"qs-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	eventType, data := readEvent(t, conn)
	assert.Equal(t, EventSessionSnapshot, eventType)
	assert.JSONEq(t, `[{"copies":1}]`, string(data))

	eventType, data = readEvent(t, conn)
	assert.Equal(t, EventViolationUpdate, eventType)
	assert.JSONEq(t, `{"copies":2}`, string(data))
}

func TestHandler_SnapshotFailureStillStreams(t *testing.T) {
	hub := runHub(t)
	snapshot := func(context.Context, string) (interface{}, error) {
		return nil, errors.New("db down")
	}
	url := startWatch(t, hub, snapshot)

	conn, _, err := websocket.DefaultDialer.Dial(url+"qs-2", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetConnectedClients("qs-2") == 1 }, time.Second, 5*time.Millisecond)
	hub.BroadcastToSession("qs-2", EventViolationUpdate, map[string]int{"pastes": 1})

	eventType, _ := readEvent(t, conn)
	assert.Equal(t, EventViolationUpdate, eventType)
}
