package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/microlens/microlens-backend/internal/api/middleware"
	"github.com/microlens/microlens-backend/internal/services"
)

// ActivityHistory returns the user's recent audit events
func ActivityHistory(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		events, err := svc.Audit.History(c.Context(), userID, limit)
		if err != nil {
			return repoError(c, err)
		}
		return c.JSON(fiber.Map{"events": events})
	}
}
