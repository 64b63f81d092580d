// Package audit records domain events for after-the-fact review. Audit
// writes are best effort: a failed write is logged and never fails the
// request that produced it.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

// EventType identifies the recorded action
type EventType string

const (
	EventSignup               EventType = "user.signup"
	EventLogin                EventType = "user.login"
	EventScanCompleted        EventType = "scan.completed"
	EventConversationContinue EventType = "conversation.continued"
	EventRecordRenamed        EventType = "record.renamed"
	EventRecordDeleted        EventType = "record.deleted"
	EventSubscriptionChanged  EventType = "subscription.changed"
)

// Logger records domain events
type Logger struct {
	repo repository.AuditRepository
	log  *logrus.Logger
}

// NewLogger creates an audit logger
func NewLogger(repo repository.AuditRepository, log *logrus.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// Record writes one audit entry. Errors are swallowed after logging.
func (l *Logger) Record(ctx context.Context, event EventType, userID uuid.UUID, resourceType, resourceID string, metadata map[string]interface{}) {
	entry := &models.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       string(event),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     models.JSONB(metadata),
		Status:       "ok",
		CreatedAt:    time.Now(),
	}
	if err := l.repo.Log(ctx, entry); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"event":   event,
			"user_id": userID,
		}).Warn("audit write failed")
	}
}

// History returns the most recent events for a user.
func (l *Logger) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.repo.GetByUserID(ctx, userID, limit)
}
