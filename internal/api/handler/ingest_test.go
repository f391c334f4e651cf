package handler

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

type fakeIngester struct {
	received chan string
	err      error
}

func (f *fakeIngester) Ingest(ctx context.Context, message []byte) (*domain.Result, error) {
	f.received <- string(message)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Result{}, nil
}

func startIngest(t *testing.T, svc Ingester) string {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", NewIngestHandler(svc, logger).Handle())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("nothing ingested")
		return ""
	}
}

func TestIngestHandler_ForwardsTextFrames(t *testing.T) {
	svc := &fakeIngester{received: make(chan string, 4)}
	url := startIngest(t, svc)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"suspicious_event"}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`second`)))

	assert.Equal(t, `{"event":"suspicious_event"}`, receive(t, svc.received))
	assert.Equal(t, "second", receive(t, svc.received))
}

func TestIngestHandler_InvalidEventKeepsConnection(t *testing.T) {
	svc := &fakeIngester{received: make(chan string, 4), err: domain.ErrInvalidEnvelope}
	url := startIngest(t, svc)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	assert.Equal(t, "garbage", receive(t, svc.received))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`still here`)))
	assert.Equal(t, "still here", receive(t, svc.received))
}

func TestIngestHandler_RejectsPlainHTTP(t *testing.T) {
	app := newTestApp()
	app.Get("/ws", NewIngestHandler(&fakeIngester{}, slog.Default()).Handle())

	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
