package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/microlens/microlens-backend/internal/analysis"
	"github.com/microlens/microlens-backend/internal/repository"
)

// analysisError maps a pipeline failure onto an HTTP response. Admission
// failures get their own status codes so clients can react (upsell on 429,
// new-conversation prompt on 409); upstream failures surface as 502 to
// distinguish them from our own bugs.
func analysisError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch analysis.KindOf(err) {
	case analysis.KindQuotaExceeded:
		status = fiber.StatusTooManyRequests
	case analysis.KindConversationFull:
		status = fiber.StatusConflict
	case analysis.KindAiUnavailable, analysis.KindStorageError:
		status = fiber.StatusBadGateway
	case analysis.KindNotFound:
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{
		"error": analysis.MessageOf(err),
		"kind":  analysis.KindOf(err),
	})
}

// repoError maps repository errors for simple CRUD handlers.
func repoError(c *fiber.Ctx, err error) error {
	if err == repository.ErrNotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
