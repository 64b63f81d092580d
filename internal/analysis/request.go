package analysis

import (
	"time"

	"github.com/google/uuid"
)

// The two request shapes are distinct types on purpose: a start request
// carries media and may create a conversation, a continuation carries a
// conversation ID and never does. Keeping them apart makes each
// entrypoint's admission conditions explicit.

// MediaUpload is the raw uploaded artifact for a start request.
type MediaUpload struct {
	Data     []byte
	MimeType string
	FileName string
}

// IsVideo reports whether the upload is a video, which carries a lower
// daily cap than images.
func (m MediaUpload) IsVideo() bool {
	return len(m.MimeType) >= 6 && m.MimeType[:6] == "video/"
}

// StartAnalysisRequest begins a new analysis of uploaded media.
type StartAnalysisRequest struct {
	UserID         uuid.UUID
	Media          MediaUpload
	PromptMessage  string
	TargetLanguage string
	// ConversationID may be supplied by the client; generated server-side
	// when empty. Either way it is fixed before first persistence.
	ConversationID string
}

// ContinueConversationRequest appends one exchange to an existing
// conversation. The referenced conversation must already exist.
type ContinueConversationRequest struct {
	UserID         uuid.UUID
	ConversationID string
	UserMessage    string
	TargetLanguage string
}

// Result is the successful outcome of either request shape.
type Result struct {
	InterpretationResult string    `json:"interpretation_result"`
	ConversationID       string    `json:"conversation_id"`
	InterpretationID     uuid.UUID `json:"interpretation_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}
