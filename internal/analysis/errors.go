package analysis

import (
	"errors"
	"fmt"
)

// Stage identifies where in the request pipeline a failure occurred, so
// failure rates can be attributed per stage without parsing messages.
type Stage string

const (
	StageValidating Stage = "validating"
	StageInvoking   Stage = "invoking"
	StagePersisting Stage = "persisting"
	StageRecording  Stage = "recording"
	StageCommitting Stage = "committing"
)

// Kind classifies a failure for the client. Admission kinds
// (QuotaExceeded, ConversationFull) are raised before any side effect.
type Kind string

const (
	KindQuotaExceeded    Kind = "QuotaExceeded"
	KindConversationFull Kind = "ConversationFull"
	KindAiUnavailable    Kind = "AiUnavailable"
	KindStorageError     Kind = "StorageError"
	KindNotFound         Kind = "NotFound"
	KindInternal         Kind = "Internal"
)

// Error is a staged, classified analysis failure. Message is safe to show
// to end users; the wrapped cause is for logs only.
type Error struct {
	Stage   Stage
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Stage, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Stage, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failed(stage Stage, kind Kind, message string, cause error) *Error {
	return &Error{Stage: stage, Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the failure kind, defaulting to Internal for errors that
// did not come out of the session pipeline.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf extracts the user-safe message for a pipeline error. Internal
// causes are never surfaced.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
