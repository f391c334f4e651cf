package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

const ingestTimeout = 5 * time.Second

// Ingester records one inbound violation message
type Ingester interface {
	Ingest(ctx context.Context, message []byte) (*domain.Result, error)
}

// IngestHandler accepts agent connections on GET /ws
type IngestHandler struct {
	service Ingester
	logger  *slog.Logger
}

// NewIngestHandler creates a new IngestHandler instance
func NewIngestHandler(service Ingester, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		service: service,
		logger:  logger.With("component", "ingest"),
	}
}

// Handle returns the websocket handler. Each text frame is one event; a bad
// event is logged and skipped without closing the connection.
func (h *IngestHandler) Handle() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		remote := c.RemoteAddr().String()
		h.logger.Info("agent connected", "remote", remote)
		defer h.logger.Info("agent disconnected", "remote", remote)

		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("agent read failed", "remote", remote, "error", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			h.ingest(message, remote)
		}
	})
}

func (h *IngestHandler) ingest(message []byte, remote string) {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	_, err := h.service.Ingest(ctx, message)
	if err == nil {
		return
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < 500 {
		h.logger.Warn("event ignored", "remote", remote, "code", appErr.Code, "error", err)
		return
	}

	h.logger.Error("event not recorded", "remote", remote, "error", err)
}
