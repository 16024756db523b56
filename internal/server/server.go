package server

import (
	"log"

	"docflash-be/internal/bootstrap"
	"docflash-be/internal/config"
	"docflash-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	// Uploads are checked against MaxUploadBytes again in the controller; the
	// extra MB leaves room for the multipart envelope.
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.App.MaxUploadBytes + 1024*1024,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	// Stored documents and figure images for the local storage driver
	if cfg.Storage.Driver != "minio" {
		app.Static("/files", cfg.Storage.LocalRoot)
	}

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse[any]("ok", nil))
	})

	api := app.Group("/api")
	api.Use(serverutils.JwtMiddleware(cfg.Keys.JWTSecret))

	c.DocumentController.RegisterRoutes(api)
	c.ReviewController.RegisterRoutes(api)
	c.ExportController.RegisterRoutes(api)
	c.SearchController.RegisterRoutes(api)
	c.QueueController.RegisterRoutes(api)
}
