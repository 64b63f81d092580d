package providers

import (
	"context"
)

// VisionProvider defines the interface for AI analysis backends. The core
// only depends on this contract: submit media plus text, receive a text
// result or a failure. Prompt construction and model selection live inside
// the implementation.
type VisionProvider interface {
	// Name returns the provider name
	Name() string

	// AnalyzeMedia performs a single-shot analysis of an image or video still
	AnalyzeMedia(ctx context.Context, input AnalysisInput) (*Output, error)

	// ContinueChat continues an existing conversation with text only,
	// carrying the accumulated history
	ContinueChat(ctx context.Context, input ChatInput) (*Output, error)

	// StreamChat streams an assistant reply chunk by chunk; used by the
	// free-form assistant mode, not by quota-consuming analysis
	StreamChat(ctx context.Context, input ChatInput) (<-chan StreamChunk, error)
}

// Media is the raw uploaded artifact.
type Media struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
}

// AnalysisInput is a single-shot analysis request.
type AnalysisInput struct {
	Media          Media  `json:"media"`
	Prompt         string `json:"prompt,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// ChatTurn is one message of conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput is a continuation request carrying history.
type ChatInput struct {
	History        []ChatTurn `json:"history"`
	Message        string     `json:"message"`
	TargetLanguage string     `json:"target_language,omitempty"`
}

// Output is a completed model response.
type Output struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// StreamChunk represents a chunk in a streaming response
type StreamChunk struct {
	Delta        string `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Error        string `json:"error,omitempty"`
}
