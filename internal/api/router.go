package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/proctor/internal/alert"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/proctor/internal/auth"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/service"
	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

type Dependencies struct {
	DB          database.Pinger
	ResultRepo  service.ResultRepositoryInterface
	WatchBuffer int
	RateLimit   middleware.RateLimiterConfig

	// JWTService protects dashboard routes when set
	JWTService *auth.JWTService

	AlertRules []alert.Rule
	// Webhook receives alerts when set
	Webhook webhook.Sender
}

type Router struct {
	app           *fiber.App
	logger        *slog.Logger
	deps          *Dependencies
	rateLimiter   *middleware.RateLimiter
	wsHub         *ws.Hub
	service       *service.ViolationService
	cancelHub     context.CancelFunc
	cancelWebhook context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "Proctor Collector",
		DisableStartupMessage: true,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var db database.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Everything below needs storage
	if r.deps == nil || r.deps.ResultRepo == nil {
		return
	}

	r.wsHub = ws.NewHub(r.deps.WatchBuffer)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	r.cancelHub = hubCancel
	go r.wsHub.Run(hubCtx)

	r.service = service.NewViolationService(r.deps.ResultRepo, r.wsHub, r.logger)
	if len(r.deps.AlertRules) > 0 {
		r.service.WithAlerts(alert.NewEngine(r.deps.AlertRules), r.newNotifier())
	}

	// Agents
	ingestHandler := handler.NewIngestHandler(r.service, r.logger)
	r.app.Get("/ws", ws.UpgradeMiddleware(), ingestHandler.Handle())

	// Dashboards
	guard := r.dashboardAuth()
	snapshot := func(ctx context.Context, sessionKey string) (interface{}, error) {
		return r.service.SessionResults(ctx, sessionKey)
	}
	r.app.Get("/ws/watch/:session_key", ws.UpgradeMiddleware(), guard, ws.Handler(r.wsHub, snapshot))

	v1 := r.app.Group("/v1")
	r.rateLimiter = middleware.NewRateLimiter(r.deps.RateLimit)
	v1.Use(r.rateLimiter.Handler())

	resultsHandler := handler.NewResultsHandler(r.service, r.logger)
	v1.Get("/results/:session_key/:candidate_email", guard, resultsHandler.Get)
	v1.Get("/results/:session_key", guard, resultsHandler.List)
}

// dashboardAuth returns the JWT guard, or a pass-through when auth is off
func (r *Router) dashboardAuth() fiber.Handler {
	if r.deps.JWTService == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.DashboardAuth(middleware.AuthDependencies{
		JWTService: r.deps.JWTService,
		Logger:     r.logger,
	})
}

func (r *Router) newNotifier() *alert.Notifier {
	if r.deps.Webhook == nil {
		return alert.NewNotifier(r.wsHub, nil, r.logger)
	}

	worker := webhook.NewWorker(r.deps.Webhook, 0, r.logger)
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelWebhook = cancel
	go worker.Run(ctx)

	return alert.NewNotifier(r.wsHub, worker, r.logger)
}

func (r *Router) App() *fiber.App {
	return r.app
}

// Hub returns the watcher hub, nil until Setup ran with storage
func (r *Router) Hub() *ws.Hub {
	return r.wsHub
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Closes every watcher connection
	if r.cancelHub != nil {
		r.cancelHub()
	}

	if r.cancelWebhook != nil {
		r.cancelWebhook()
	}

	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
