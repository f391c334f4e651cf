package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SnapshotFunc loads the current state of a session for a new watcher.
type SnapshotFunc func(ctx context.Context, sessionKey string) (interface{}, error)

// Handler upgrades GET /ws/watch/:session_key and streams the session's
// updates. When snapshot is set, the watcher first receives the current
// totals. The watcher joins the hub before the snapshot is loaded, so
// updates recorded meanwhile are queued behind it rather than lost; every
// update carries full totals, so replaying one the snapshot already
// reflects is harmless.
func Handler(hub *Hub, snapshot SnapshotFunc) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		sessionKey := strings.TrimSpace(c.Params("session_key"))
		if sessionKey == "" {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:        hub,
			conn:       c,
			sessionKey: sessionKey,
			send:       make(chan []byte, 256),
		}

		if !hub.join(client) {
			_ = c.Close()
			return
		}

		// the write pump is not running yet, so this is the only writer
		if message, ok := snapshotMessage(snapshot, sessionKey); ok {
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				hub.leave(client)
				_ = c.Close()
				return
			}
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func snapshotMessage(snapshot SnapshotFunc, sessionKey string) ([]byte, bool) {
	if snapshot == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := snapshot(ctx, sessionKey)
	if err != nil {
		return nil, false
	}

	message, err := json.Marshal(Event{
		Type:      EventSessionSnapshot,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, false
	}
	return message, true
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
