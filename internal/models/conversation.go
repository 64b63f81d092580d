package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxConversationMessages caps how many turns a conversation may hold.
// Once at the cap, continuation requests are rejected before the AI is
// invoked; the client is told to start a new conversation.
const MaxConversationMessages = 60

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is an ordered, append-only log of turns attached to one
// originating media analysis.
type Conversation struct {
	ID             string    `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	OriginMediaURL string    `json:"origin_media_url" db:"origin_media_url"` // set once, immutable after creation
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
	Messages       []Turn    `json:"messages" db:"-"`
}

// IsFull reports whether the conversation has reached the turn cap.
func (c *Conversation) IsFull() bool {
	return len(c.Messages) >= MaxConversationMessages
}

// Turn is one message within a conversation. Turns have no identity
// outside their parent conversation; Seq fixes chronological order.
type Turn struct {
	ConversationID string    `json:"-" db:"conversation_id"`
	Seq            int       `json:"seq" db:"seq"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	MediaURL       string    `json:"media_url,omitempty" db:"media_url"` // only the first user turn carries media
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
