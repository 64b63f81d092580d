// Package api mounts the HTTP surface on a fiber app.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/microlens/microlens-backend/internal/api/handlers"
	"github.com/microlens/microlens-backend/internal/api/middleware"
	"github.com/microlens/microlens-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services) {
	// Health check, unauthenticated
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")
	v1.Use(middleware.DefaultRateLimit())

	// Auth endpoints
	authGroup := v1.Group("/auth")
	authGroup.Use(middleware.AuthRateLimit())
	authGroup.Post("/signup", handlers.Signup(svc))
	authGroup.Post("/login", handlers.Login(svc))
	authGroup.Post("/refresh", handlers.Refresh(svc))

	// Stripe calls this directly; signature verification replaces auth.
	v1.Post("/billing/webhook", handlers.StripeWebhook(svc))

	// Everything below requires a valid access token.
	protected := v1.Group("", middleware.AuthRequired(svc.Auth))

	protected.Get("/me", handlers.Me(svc))
	protected.Get("/me/activity", handlers.ActivityHistory(svc))
	protected.Get("/quota", handlers.QuotaStatus(svc))

	protected.Post("/analyze", middleware.ScanRateLimit(), handlers.StartAnalysis(svc))

	protected.Get("/conversations", handlers.ListConversations(svc))
	protected.Get("/conversations/:id", handlers.GetConversation(svc))
	protected.Post("/conversations/:id/messages", middleware.ScanRateLimit(), handlers.ContinueConversation(svc))

	protected.Get("/interpretations", handlers.ListInterpretations(svc))
	protected.Get("/interpretations/:id", handlers.GetInterpretation(svc))
	protected.Patch("/interpretations/:id", handlers.RenameInterpretation(svc))
	protected.Delete("/interpretations/:id", handlers.DeleteInterpretation(svc))

	protected.Post("/billing/checkout", handlers.CreateCheckout(svc))

	// Free-form assistant chat over websocket. Auth runs before the
	// upgrade so the socket carries an identity.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/assistant", middleware.AuthRequired(svc.Auth), websocket.New(handlers.AssistantStream(svc)))
}
