package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/facestream/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/facestream/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facestream/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registrysync"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
	"github.com/saturnino-fabrica-de-software/facestream/internal/ws"
)

// bodyLimit fits a 10 MiB image once base64 encoded.
const bodyLimit = 16 * 1024 * 1024

type Dependencies struct {
	FaceService *service.FaceService
	Registry    *registry.Registry
	// Synchronizer is nil when no registry source is configured.
	Synchronizer *registrysync.Synchronizer
	// HealthChecker is nil for in-process embedders.
	HealthChecker provider.HealthChecker

	WSQueueSize     int
	RateLimitMax    int
	RateLimitWindow time.Duration
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
	wsHub       *ws.Hub
	cancelHub   context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "Facestream API",
		BodyLimit:             bodyLimit,
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
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Session hub; it outlives requests and stops on Shutdown
	r.wsHub = ws.NewHub(r.logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	r.cancelHub = hubCancel
	go r.wsHub.Run(hubCtx)

	healthHandler := handler.NewHealthHandler(r.deps.Registry, r.wsHub, r.deps.HealthChecker)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    r.deps.RateLimitMax,
		Window: r.deps.RateLimitWindow,
	})

	faceHandler := handler.NewFaceHandler(r.deps.FaceService, r.logger)
	r.app.Post("/encode", r.rateLimiter.Handler(), faceHandler.Encode)

	v1 := r.app.Group("/v1", r.rateLimiter.Handler())

	v1.Get("/identities", faceHandler.ListIdentities)
	v1.Post("/identities", faceHandler.Register)
	v1.Post("/recognize", faceHandler.Recognize)

	var syncer handler.RegistrySyncer
	if r.deps.Synchronizer != nil {
		syncer = r.deps.Synchronizer
	}
	v1.Post("/registry/sync", handler.NewRegistryHandler(syncer).Sync)

	// WebSocket endpoint; in-flight work uses hubCtx so a disconnect does
	// not cancel it
	dispatcher := ws.NewDispatcher(r.deps.FaceService, r.logger)
	v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(hubCtx, r.wsHub, dispatcher, r.deps.WSQueueSize, r.logger))
}

func (r *Router) App() *fiber.App {
	return r.app
}

// Hub returns the session hub; nil before Setup.
func (r *Router) Hub() *ws.Hub {
	return r.wsHub
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop WebSocket hub
	if r.cancelHub != nil {
		r.cancelHub()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
