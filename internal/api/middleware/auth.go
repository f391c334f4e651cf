package middleware

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/auth"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

const (
	// LocalDashboardClaims is the key to retrieve validated claims from context
	LocalDashboardClaims = "dashboard_claims"
)

// AuthDependencies contains dependencies for dashboard authentication
type AuthDependencies struct {
	JWTService *auth.JWTService
	Logger     *slog.Logger
}

// DashboardAuth validates the bearer token of dashboard requests and checks
// that it covers the :session_key route parameter. Browsers cannot set
// headers on websocket upgrades, so the token may also come as ?token=.
func DashboardAuth(deps AuthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			deps.Logger.Debug("missing dashboard token", "path", c.Path())
			return domain.ErrUnauthorized
		}

		claims, err := deps.JWTService.ValidateToken(token)
		if err != nil {
			deps.Logger.Warn("invalid dashboard token", "error", err, "ip", c.IP())
			return domain.ErrUnauthorized
		}

		sessionKey := sessionParam(c)
		if sessionKey != "" && !claims.CanWatch(sessionKey) {
			deps.Logger.Warn("session not granted",
				"subject", claims.Subject,
				"session_key", sessionKey,
			)
			return domain.ErrForbidden
		}

		c.Locals(LocalDashboardClaims, claims)

		return c.Next()
	}
}

// GetDashboardClaims retrieves the validated claims from context
func GetDashboardClaims(c *fiber.Ctx) (*auth.DashboardClaims, error) {
	claims, ok := c.Locals(LocalDashboardClaims).(*auth.DashboardClaims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// extractBearerToken extracts the token from the Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func sessionParam(c *fiber.Ctx) string {
	raw := c.Params("session_key")
	if value, err := url.PathUnescape(raw); err == nil {
		raw = value
	}
	return strings.TrimSpace(raw)
}
