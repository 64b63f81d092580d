package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/microlens/microlens-backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository defines user and quota-record storage operations.
//
// CommitScan is the only write path for the quota counters and must be a
// single atomic statement against the row: concurrent commits for the same
// user must not lose updates. Everything else reads the record and decides
// in application code.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// CommitScan sets last_scan_date to today (UTC YYYY-MM-DD), increments
	// scans_today (resetting to 1 on rollover), decrements scans_remaining
	// and increments completed_scans, all in one statement.
	CommitScan(ctx context.Context, userID uuid.UUID, today string) error

	// AdjustScansRemaining applies a relative delta (admin grants, promo
	// codes). Also a single atomic statement.
	AdjustScansRemaining(ctx context.Context, userID uuid.UUID, delta int) error

	SetSubscribed(ctx context.Context, userID uuid.UUID, subscribed bool) error
	SetSubscribedByCustomer(ctx context.Context, customerID string, subscribed bool) error
	SetStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

// ConversationRepository defines conversation aggregate storage.
// Turns are append-only and ordered by their per-conversation sequence
// number; the repository never reorders or truncates them.
type ConversationRepository interface {
	// GetOrCreate returns the conversation, creating an empty one owned by
	// userID if absent. Idempotent: a second call with no intervening
	// writes returns the same single row.
	GetOrCreate(ctx context.Context, id string, userID uuid.UUID, originMediaURL string) (*models.Conversation, error)

	// Get returns the conversation with its turns in order, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Conversation, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error)

	// AppendTurns appends turns in the given order. ErrNotFound if the
	// conversation does not exist; callers create first via GetOrCreate.
	AppendTurns(ctx context.Context, id string, turns []models.Turn) error

	// Delete hard-deletes the conversation and its turns. The caller pairs
	// this with the interpretation-record delete.
	Delete(ctx context.Context, id string) error
}

// InterpretationRepository defines storage for analysis reports.
type InterpretationRepository interface {
	Create(ctx context.Context, rec *models.InterpretationRecord) error
	Get(ctx context.Context, userID, id uuid.UUID) (*models.InterpretationRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.InterpretationRecord, error)
	UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// AuditRepository defines audit log persistence.
type AuditRepository interface {
	Log(ctx context.Context, entry *models.AuditLog) error
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error)
}
