package handler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// ResultService is the read side of the violation service
type ResultService interface {
	Result(ctx context.Context, sessionKey, candidateEmail string) (*domain.Result, error)
	SessionResults(ctx context.Context, sessionKey string) ([]domain.Result, error)
}

// ResultsHandler serves the accumulated violation totals
type ResultsHandler struct {
	service ResultService
	logger  *slog.Logger
}

// NewResultsHandler creates a new ResultsHandler instance
func NewResultsHandler(service ResultService, logger *slog.Logger) *ResultsHandler {
	return &ResultsHandler{
		service: service,
		logger:  logger,
	}
}

// SessionResultsResponse response for the session listing endpoint
type SessionResultsResponse struct {
	SessionKey string          `json:"session_key"`
	Results    []domain.Result `json:"results"`
	Total      int             `json:"total"`
}

// Get handles GET /v1/results/:session_key/:candidate_email
func (h *ResultsHandler) Get(c *fiber.Ctx) error {
	sessionKey := param(c, "session_key")
	email := param(c, "candidate_email")

	result, err := h.service.Result(c.UserContext(), sessionKey, email)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// List handles GET /v1/results/:session_key
func (h *ResultsHandler) List(c *fiber.Ctx) error {
	sessionKey := param(c, "session_key")

	results, err := h.service.SessionResults(c.UserContext(), sessionKey)
	if err != nil {
		return err
	}

	return c.JSON(SessionResultsResponse{
		SessionKey: sessionKey,
		Results:    results,
		Total:      len(results),
	})
}

// param returns the unescaped route parameter; emails arrive percent-encoded
func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if value, err := url.PathUnescape(raw); err == nil {
		raw = value
	}
	return strings.TrimSpace(raw)
}
