package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

// AuditRepository implements repository.AuditRepository using PostgreSQL
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &AuditRepository{db: db}
}

// Log persists an audit entry
func (r *AuditRepository) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Metadata == nil {
		entry.Metadata = models.JSONB{}
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, metadata, status, created_at)
		VALUES (:id, :user_id, :action, :resource_type, :resource_id, :metadata, :status, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	return err
}

// GetByUserID retrieves recent audit entries for a user
func (r *AuditRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, action, resource_type, resource_id, metadata, status, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
