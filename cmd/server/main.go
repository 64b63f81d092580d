package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/microlens/microlens-backend/internal/api"
	"github.com/microlens/microlens-backend/internal/config"
	"github.com/microlens/microlens-backend/internal/database"
	"github.com/microlens/microlens-backend/internal/providers"
	"github.com/microlens/microlens-backend/internal/providers/openai"
	"github.com/microlens/microlens-backend/internal/services"
	"github.com/microlens/microlens-backend/internal/storage/s3"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Server.JWTSecret == "" {
		cfg.Server.JWTSecret = "change-me-in-production"
		log.Warn("Using default JWT secret. Set MICROLENS_JWT_SECRET in production!")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	store, err := s3.New(context.Background(), cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize object storage")
	}

	registry := providers.NewRegistry()
	visionProvider, err := openai.NewProvider(cfg.AI)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize vision provider")
	}
	registry.Register("openai", visionProvider)

	svc, err := services.NewServices(db.DB, cfg, registry, store, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize services")
	}

	app := fiber.New(fiber.Config{
		AppName:      "MicroLens Backend",
		BodyLimit:    32 << 20, // headroom over the 25 MB media cap
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, svc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("MicroLens backend starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func corsOrigins() string {
	origins := os.Getenv("MICROLENS_CORS_ORIGINS")
	if origins == "" {
		return "http://localhost:3000,http://localhost:19006"
	}
	return origins
}
