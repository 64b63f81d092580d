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

// ConversationRepository implements repository.ConversationRepository using PostgreSQL
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new PostgreSQL conversation repository
func NewConversationRepository(db *sqlx.DB) repository.ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate returns the conversation, inserting an empty one when absent.
// ON CONFLICT DO NOTHING keeps the call idempotent under concurrent firsts.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, id string, userID uuid.UUID, originMediaURL string) (*models.Conversation, error) {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, origin_media_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO NOTHING
	`, id, userID, originMediaURL, now)
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, id)
}

// Get retrieves a conversation with its turns in sequence order
func (r *ConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT id, user_id, origin_media_url, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	err = r.db.SelectContext(ctx, &conv.Messages, `
		SELECT conversation_id, seq, role, content, media_url, created_at
		FROM turns
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// ListByUser retrieves a user's conversations without their turns
func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT id, user_id, origin_media_url, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// AppendTurns appends turns in order, assigning sequence numbers inside a
// transaction. The parent row is locked so two concurrent appends cannot
// claim the same sequence numbers.
func (r *ConversationRepository) AppendTurns(ctx context.Context, id string, turns []models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM conversations WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrNotFound
		}
		return err
	}

	var maxSeq int
	if err := tx.GetContext(ctx, &maxSeq, `SELECT COALESCE(MAX(seq), 0) FROM turns WHERE conversation_id = $1`, id); err != nil {
		return err
	}

	now := time.Now()
	for i := range turns {
		turns[i].ConversationID = id
		turns[i].Seq = maxSeq + i + 1
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = now
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO turns (conversation_id, seq, role, content, media_url, created_at)
			VALUES (:conversation_id, :seq, :role, :content, :media_url, :created_at)
		`, turns[i])
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, id, now); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete hard-deletes the conversation; turns go with it via ON DELETE CASCADE
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}
