package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Version is reported by /health
const Version = "0.1.0"

type HealthHandler struct {
	db database.Pinger
}

// NewHealthHandler creates a health handler. With a nil db, /ready only
// reports that the process is up.
func NewHealthHandler(db database.Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.db != nil {
		if err := database.HealthCheck(c.UserContext(), h.db); err != nil {
			return domain.ErrServiceUnavailable.WithError(err)
		}
	}

	return c.JSON(HealthResponse{
		Status: "ready",
	})
}
