package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/microlens/microlens-backend/internal/api/middleware"
	"github.com/microlens/microlens-backend/internal/services"
)

// CheckoutRequest is the checkout session payload
type CheckoutRequest struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CreateCheckout starts a subscription checkout and returns the hosted URL
func CreateCheckout(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		var req CheckoutRequest
		if err := c.BodyParser(&req); err != nil || req.SuccessURL == "" || req.CancelURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "success_url and cancel_url are required",
			})
		}

		user, err := svc.Users.GetByID(c.Context(), userID)
		if err != nil {
			return repoError(c, err)
		}
		if user.IsSubscribed {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Already subscribed",
			})
		}

		url, err := svc.Billing.CreateCheckoutSession(c.Context(), user, req.SuccessURL, req.CancelURL)
		if err != nil {
			svc.Log.WithError(err).WithField("user_id", userID).Error("checkout session failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Could not start checkout",
			})
		}
		return c.JSON(fiber.Map{"checkout_url": url})
	}
}

// StripeWebhook applies subscription events. Unauthenticated: the payload
// signature is the authentication.
func StripeWebhook(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Billing.HandleWebhook(c.Context(), c.Body(), c.Get("Stripe-Signature")); err != nil {
			svc.Log.WithError(err).Warn("stripe webhook rejected")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Webhook rejected",
			})
		}
		return c.JSON(fiber.Map{"received": true})
	}
}
