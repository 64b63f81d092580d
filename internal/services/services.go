// Package services wires the application's long-lived components together.
// Handlers depend on this container rather than constructing collaborators
// themselves.
package services

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/microlens/microlens-backend/internal/analysis"
	"github.com/microlens/microlens-backend/internal/audit"
	"github.com/microlens/microlens-backend/internal/auth"
	"github.com/microlens/microlens-backend/internal/billing"
	"github.com/microlens/microlens-backend/internal/config"
	"github.com/microlens/microlens-backend/internal/providers"
	"github.com/microlens/microlens-backend/internal/quota"
	"github.com/microlens/microlens-backend/internal/repository"
	"github.com/microlens/microlens-backend/internal/repository/postgres"
	"github.com/microlens/microlens-backend/internal/storage"
)

// Services holds all service instances
type Services struct {
	Auth            *auth.Service
	Analysis        *analysis.Session
	Interpretations *InterpretationService
	Billing         *billing.Service
	Audit           *audit.Logger

	Users         repository.UserRepository
	Conversations repository.ConversationRepository
	Providers     *providers.Registry

	Quota config.QuotaConfig
	Log   *logrus.Logger
}

// NewServices creates all service instances from the shared database
// handle, the provider registry and the object store.
func NewServices(
	db *sqlx.DB,
	cfg *config.Config,
	registry *providers.Registry,
	store storage.ObjectStorage,
	log *logrus.Logger,
) (*Services, error) {
	users := postgres.NewUserRepository(db)
	conversations := postgres.NewConversationRepository(db)
	interpretations := postgres.NewInterpretationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	provider, err := registry.Default()
	if err != nil {
		return nil, err
	}

	session := analysis.NewSession(analysis.SessionParams{
		Users:           users,
		Conversations:   conversations,
		Interpretations: interpretations,
		Ledger:          quota.NewLedger(users),
		Provider:        provider,
		Store:           store,
		Quota:           cfg.Quota,
		InvokeTimeout:   cfg.AI.InvokeTimeout,
		Log:             log,
	})

	jwtService := auth.NewJWTService(cfg.Server.JWTSecret, "microlens")

	return &Services{
		Auth:            auth.NewService(users, jwtService, log),
		Analysis:        session,
		Interpretations: NewInterpretationService(interpretations, conversations, store, log),
		Billing:         billing.NewService(users, cfg.Stripe, log),
		Audit:           audit.NewLogger(auditRepo, log),
		Users:           users,
		Conversations:   conversations,
		Providers:       registry,
		Quota:           cfg.Quota,
		Log:             log,
	}, nil
}
