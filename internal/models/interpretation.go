package models

import (
	"time"

	"github.com/google/uuid"
)

// InterpretationRecord is the durable report produced by one successful
// analysis. It is paired with a conversation: deleting either deletes
// both, and the pairing is enforced by the analysis/service layer, not
// by the repositories.
type InterpretationRecord struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	UserID               uuid.UUID `json:"user_id" db:"user_id"`
	URL                  string    `json:"url" db:"url"`
	FilePath             string    `json:"file_path" db:"file_path"`
	MimeType             string    `json:"mime_type" db:"mime_type"`
	PromptMessage        string    `json:"prompt_message" db:"prompt_message"`
	InterpretationResult string    `json:"interpretation_result" db:"interpretation_result"`
	ConversationID       string    `json:"conversation_id" db:"conversation_id"`
	Title                string    `json:"title" db:"title"` // user-editable after creation
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}
