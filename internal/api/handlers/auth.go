package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/microlens/microlens-backend/internal/api/middleware"
	"github.com/microlens/microlens-backend/internal/audit"
	"github.com/microlens/microlens-backend/internal/auth"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/services"
)

// SignupRequest is the signup payload
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the token refresh payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Signup creates an account
func Signup(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		if req.Email == "" || req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Email and password are required",
			})
		}

		user, tokens, err := svc.Auth.Signup(c.Context(), req.Email, req.Password, req.DisplayName)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrEmailTaken):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
			case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooWeak):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not create account",
			})
		}

		svc.Audit.Record(c.Context(), audit.EventSignup, user.ID, "user", user.ID.String(), nil)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"user":   profileView(user),
			"tokens": tokens,
		})
	}
}

// Login authenticates a user
func Login(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		user, tokens, err := svc.Auth.Login(c.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not log in",
			})
		}

		svc.Audit.Record(c.Context(), audit.EventLogin, user.ID, "user", user.ID.String(), nil)

		return c.JSON(fiber.Map{
			"user":   profileView(user),
			"tokens": tokens,
		})
	}
}

// Refresh exchanges a refresh token for a new pair
func Refresh(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Refresh token is required",
			})
		}

		tokens, err := svc.Auth.Refresh(c.Context(), req.RefreshToken)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired refresh token",
			})
		}
		return c.JSON(fiber.Map{"tokens": tokens})
	}
}

// Me returns the authenticated user's profile
func Me(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.GetUserID(c)
		if err != nil {
			return err
		}
		user, err := svc.Users.GetByID(c.Context(), userID)
		if err != nil {
			return repoError(c, err)
		}
		return c.JSON(fiber.Map{"user": profileView(user)})
	}
}

func profileView(user *models.User) fiber.Map {
	return fiber.Map{
		"id":              user.ID,
		"email":           user.Email,
		"display_name":    user.DisplayName,
		"scans_remaining": user.DisplayScansRemaining(),
		"is_subscribed":   user.IsSubscribed,
		"created_at":      user.CreatedAt,
	}
}
