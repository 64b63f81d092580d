// Package auth provides stateless account authentication: bcrypt password
// hashing and HMAC-signed JWT pairs. New accounts start with the free
// lifetime scan allowance.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for a wrong email or password. The
	// two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when the signup email already has an account
	ErrEmailTaken = errors.New("an account with this email already exists")
)

// Service handles signup, login and token refresh
type Service struct {
	users repository.UserRepository
	jwt   *JWTService
	log   *logrus.Logger
}

// NewService creates an auth service
func NewService(users repository.UserRepository, jwt *JWTService, log *logrus.Logger) *Service {
	return &Service{users: users, jwt: jwt, log: log}
}

// TokenPair is the result of a successful signup, login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Signup creates an account and returns its first token pair.
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidatePassword(password); err != nil {
		return nil, nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if err != repository.ErrNotFound {
		return nil, nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:             uuid.New(),
		Email:          email,
		PasswordHash:   hash,
		DisplayName:    displayName,
		ScansRemaining: models.FreeStartingScans,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.log.WithField("user_id", user.ID).Info("account created")
	return user, pair, nil
}

// Login verifies credentials and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to record login time")
	}

	pair, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidClaims
	}

	// The account must still exist; tokens outlive deletions otherwise.
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.tokenPair(user)
}

// Authenticate resolves an access token to the request identity.
func (s *Service) Authenticate(tokenString string) (*models.UserContext, error) {
	claims, err := s.jwt.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidClaims
	}
	return &models.UserContext{UserID: userID, Email: claims.Email}, nil
}

func (s *Service) tokenPair(user *models.User) (*TokenPair, error) {
	access, refresh, err := s.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
