package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/microlens/microlens-backend/internal/analysis"
	"github.com/microlens/microlens-backend/internal/api/middleware"
	"github.com/microlens/microlens-backend/internal/audit"
	"github.com/microlens/microlens-backend/internal/services"
)

// MaxUploadBytes caps a single media upload. Mobile clients compress
// before uploading; anything larger is a misbehaving client.
const MaxUploadBytes = 25 << 20

// StartAnalysis handles a new media analysis. The upload arrives as
// multipart form data with the media under "media".
func StartAnalysis(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		fileHeader, err := c.FormFile("media")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "A media file is required",
			})
		}
		if fileHeader.Size > MaxUploadBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Upload too large (max " + strconv.Itoa(MaxUploadBytes>>20) + " MB)",
			})
		}

		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Could not read the upload",
			})
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Could not read the upload",
			})
		}

		mimeType := fileHeader.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		result, err := svc.Analysis.Start(c.Context(), analysis.StartAnalysisRequest{
			UserID: userID,
			Media: analysis.MediaUpload{
				Data:     data,
				MimeType: mimeType,
				FileName: fileHeader.Filename,
			},
			PromptMessage:  c.FormValue("prompt_message"),
			TargetLanguage: c.FormValue("target_language"),
			ConversationID: c.FormValue("conversation_id"),
		})
		if err != nil {
			return analysisError(c, err)
		}

		svc.Audit.Record(c.Context(), audit.EventScanCompleted, userID,
			"interpretation", result.InterpretationID.String(), map[string]interface{}{
				"conversation_id": result.ConversationID,
				"mime_type":       mimeType,
			})

		return c.Status(fiber.StatusCreated).JSON(result)
	}
}

// ContinueRequest is the follow-up message payload
type ContinueRequest struct {
	Message        string `json:"message"`
	TargetLanguage string `json:"target_language"`
}

// ContinueConversation appends a follow-up exchange to a conversation
func ContinueConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		var req ContinueRequest
		if err := c.BodyParser(&req); err != nil || req.Message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "A message is required",
			})
		}

		result, err := svc.Analysis.Continue(c.Context(), analysis.ContinueConversationRequest{
			UserID:         userID,
			ConversationID: c.Params("id"),
			UserMessage:    req.Message,
			TargetLanguage: req.TargetLanguage,
		})
		if err != nil {
			return analysisError(c, err)
		}

		svc.Audit.Record(c.Context(), audit.EventConversationContinue, userID,
			"conversation", result.ConversationID, nil)

		return c.JSON(result)
	}
}

// GetConversation returns a conversation with its turns in order
func GetConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		conv, err := svc.Conversations.Get(c.Context(), c.Params("id"))
		if err != nil {
			return repoError(c, err)
		}
		if conv.UserID != userID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		}
		return c.JSON(conv)
	}
}

// ListConversations returns the user's conversations
func ListConversations(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}

		convs, err := svc.Conversations.ListByUser(c.Context(), userID)
		if err != nil {
			return repoError(c, err)
		}
		return c.JSON(fiber.Map{"conversations": convs})
	}
}
