package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/microlens/microlens-backend/internal/api/middleware"
	"github.com/microlens/microlens-backend/internal/audit"
	"github.com/microlens/microlens-backend/internal/services"
)

// ListInterpretations returns the user's saved reports
func ListInterpretations(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		recs, err := svc.Interpretations.List(c.Context(), userID)
		if err != nil {
			return repoError(c, err)
		}
		return c.JSON(fiber.Map{"interpretations": recs})
	}
}

// GetInterpretation returns one report with its conversation
func GetInterpretation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}
		recID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid id"})
		}

		rec, conv, err := svc.Interpretations.Get(c.Context(), userID, recID)
		if err != nil {
			return repoError(c, err)
		}
		return c.JSON(fiber.Map{
			"interpretation": rec,
			"conversation":   conv,
		})
	}
}

// RenameRequest is the title update payload
type RenameRequest struct {
	Title string `json:"title"`
}

// RenameInterpretation updates a report title
func RenameInterpretation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}
		recID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid id"})
		}

		var req RenameRequest
		if err := c.BodyParser(&req); err != nil || req.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A title is required"})
		}

		if err := svc.Interpretations.Rename(c.Context(), userID, recID, req.Title); err != nil {
			return repoError(c, err)
		}

		svc.Audit.Record(c.Context(), audit.EventRecordRenamed, userID,
			"interpretation", recID.String(), nil)

		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// DeleteInterpretation removes a report, its conversation and its media
func DeleteInterpretation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}
		recID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid id"})
		}

		if err := svc.Interpretations.Delete(c.Context(), userID, recID); err != nil {
			return repoError(c, err)
		}

		svc.Audit.Record(c.Context(), audit.EventRecordDeleted, userID,
			"interpretation", recID.String(), nil)

		return c.JSON(fiber.Map{"status": "deleted"})
	}
}
