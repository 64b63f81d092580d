package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/microlens/microlens-backend/internal/api/middleware"
	"github.com/microlens/microlens-backend/internal/quota"
	"github.com/microlens/microlens-backend/internal/services"
)

// QuotaStatus reports the effective counters for today. The stored row is
// never mutated here; rollover is applied on read.
func QuotaStatus(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		user, err := svc.Users.GetByID(c.Context(), userID)
		if err != nil {
			return repoError(c, err)
		}

		today := quota.Today(time.Now())
		eff := quota.ReadEffective(user, today)

		remaining := eff.ScansRemaining
		if remaining < 0 {
			remaining = 0
		}

		return c.JSON(fiber.Map{
			"date":              today,
			"scans_today":       eff.ScansToday,
			"scans_remaining":   remaining,
			"daily_image_limit": svc.Quota.DailyImageLimit,
			"daily_video_limit": svc.Quota.DailyVideoLimit,
			"completed_scans":   user.CompletedScans,
			"is_subscribed":     user.IsSubscribed,
		})
	}
}
