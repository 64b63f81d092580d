package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

// InterpretationRepository implements repository.InterpretationRepository using PostgreSQL
type InterpretationRepository struct {
	db *sqlx.DB
}

// NewInterpretationRepository creates a new PostgreSQL interpretation repository
func NewInterpretationRepository(db *sqlx.DB) repository.InterpretationRepository {
	return &InterpretationRepository{db: db}
}

// Create creates a new interpretation record
func (r *InterpretationRepository) Create(ctx context.Context, rec *models.InterpretationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO interpretations (id, user_id, url, file_path, mime_type, prompt_message,
			interpretation_result, conversation_id, title, created_at)
		VALUES (:id, :user_id, :url, :file_path, :mime_type, :prompt_message,
			:interpretation_result, :conversation_id, :title, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, rec)
	return err
}

// Get retrieves an interpretation record owned by the user
func (r *InterpretationRepository) Get(ctx context.Context, userID, id uuid.UUID) (*models.InterpretationRecord, error) {
	var rec models.InterpretationRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT id, user_id, url, file_path, mime_type, prompt_message,
			interpretation_result, conversation_id, title, created_at
		FROM interpretations
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListByUser retrieves the user's interpretation history, newest first
func (r *InterpretationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.InterpretationRecord, error) {
	var recs []*models.InterpretationRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT id, user_id, url, file_path, mime_type, prompt_message,
			interpretation_result, conversation_id, title, created_at
		FROM interpretations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateTitle renames a record; title is the only mutable field
func (r *InterpretationRepository) UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE interpretations SET title = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, title)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete deletes an interpretation record
func (r *InterpretationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM interpretations WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return err
	}
	return requireRow(result)
}
