package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/golf-qa/backend/internal/api/handlers"
	"github.com/golf-qa/backend/internal/metrics"
	"github.com/golf-qa/backend/internal/middleware/ratelimit"
	"github.com/golf-qa/backend/internal/middleware/security"
	"github.com/golf-qa/backend/internal/middleware/validation"
	"github.com/golf-qa/backend/internal/query"
	"github.com/golf-qa/backend/internal/scheduler"
	"github.com/golf-qa/backend/pkg/config"
	"github.com/golf-qa/backend/pkg/logger"
)

type Dependencies struct {
	Engine  *query.Engine
	Updater *scheduler.Updater
	Courses handlers.CourseStore
	Store   handlers.Pinger
	// Cache is nil when the embedding cache is disabled.
	Cache handlers.Pinger
}

// Server is the HTTP API. Close releases the rate limiter after the app is shut down.
type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	origins := cfg.AllowedOrigins
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: strings.Split(origins, ","),
		IsDevelopment:  cfg.Development,
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimitPerMin,
		Logger:               logger.GetLogger(),
	})

	queryHandler := handlers.NewQueryHandler(deps.Engine)
	dataHandler := handlers.NewDataHandler(deps.Updater, deps.Courses)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Cache)
	wsHandler := handlers.NewWebSocketHandler(deps.Engine, cfg.MaxQuestionLength, time.Duration(cfg.WriteTimeout)*time.Second)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	limited := api.Group("", limiter.Middleware(), validation.Middleware(validation.Config{
		MaxQuestionLength: cfg.MaxQuestionLength,
		Logger:            logger.GetLogger(),
	}))

	limited.Post("/ask", queryHandler.Ask)
	limited.Get("/queries", queryHandler.History)
	limited.Get("/queries/:id", queryHandler.GetQuery)
	limited.Post("/queries/:id/feedback", queryHandler.Feedback)
	limited.Get("/analytics", queryHandler.Analytics)

	limited.Get("/courses", dataHandler.Courses)
	limited.Get("/freshness", dataHandler.Freshness)
	limited.Post("/updates", dataHandler.TriggerUpdate)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	return &Server{App: app, limiter: limiter}
}

func (s *Server) Close() error {
	s.limiter.Stop()
	return s.App.Shutdown()
}
