package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/logging"
	"github.com/kalinanews/newsroom/metrics"
	"go.uber.org/zap"
)

// DefaultPrefix is where the API is mounted when ServerConfig leaves it empty
const DefaultPrefix = "/api/v1"

type ServerConfig struct {
	Prefix         string
	AllowedOrigins string
	// Logger receives request lines; the error handler logs through its
	// auth.Logger adapter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewApp assembles the fiber application: middleware, health and metrics
// endpoints, and the API routes under the configured prefix.
func NewApp(cfg ServerConfig, h *Controller, guards Guards) *fiber.App {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "newsroom",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logging.NewAuthLogger(logger, "api")),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logging.RequestLogger(logger))
	if cfg.Metrics != nil {
		app.Use(cfg.Metrics.Middleware())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: originsOrDefault(cfg.AllowedOrigins),
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/healthz", h.Health)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	prefix := strings.TrimRight(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	RegisterRoutes(app.Group(prefix), h, guards)

	app.Use(func(c *fiber.Ctx) error {
		return auth.NotFound("route")
	})
	return app
}

func originsOrDefault(origins string) string {
	if strings.TrimSpace(origins) == "" {
		return "*"
	}
	return origins
}
