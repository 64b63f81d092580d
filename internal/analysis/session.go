// Package analysis orchestrates one end-to-end analysis exchange: quota
// admission, AI invocation, media persistence, conversation and record
// writes, and the final quota commit.
//
// The stages run strictly in order and the ordering is the correctness
// story: nothing durable exists before the AI call succeeds, and quota is
// committed last so a unit is only ever consumed once real, user-visible
// output exists. A failed request never charges quota.
package analysis

import (
	"context"
	"fmt"
	"path"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/microlens/microlens-backend/internal/config"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/providers"
	"github.com/microlens/microlens-backend/internal/quota"
	"github.com/microlens/microlens-backend/internal/repository"
	"github.com/microlens/microlens-backend/internal/storage"
)

// SessionParams holds the collaborators a Session needs. Everything is
// injected so tests can substitute fakes.
type SessionParams struct {
	Users           repository.UserRepository
	Conversations   repository.ConversationRepository
	Interpretations repository.InterpretationRepository
	Ledger          *quota.Ledger
	Provider        providers.VisionProvider
	Store           storage.ObjectStorage
	Quota           config.QuotaConfig
	InvokeTimeout   time.Duration
	Log             *logrus.Logger
	Now             func() time.Time
}

// Session runs analysis requests. Stateless across requests; all durable
// state lives behind the repositories.
type Session struct {
	users           repository.UserRepository
	conversations   repository.ConversationRepository
	interpretations repository.InterpretationRepository
	ledger          *quota.Ledger
	provider        providers.VisionProvider
	store           storage.ObjectStorage
	quotaCfg        config.QuotaConfig
	invokeTimeout   time.Duration
	log             *logrus.Logger
	now             func() time.Time
}

// NewSession creates a session orchestrator
func NewSession(p SessionParams) *Session {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.InvokeTimeout == 0 {
		p.InvokeTimeout = 60 * time.Second
	}
	if p.Log == nil {
		p.Log = logrus.StandardLogger()
	}
	return &Session{
		users:           p.Users,
		conversations:   p.Conversations,
		interpretations: p.Interpretations,
		ledger:          p.Ledger,
		provider:        p.Provider,
		store:           p.Store,
		quotaCfg:        p.Quota,
		invokeTimeout:   p.InvokeTimeout,
		log:             p.Log,
		now:             p.Now,
	}
}

// Start runs a new media analysis end to end.
func (s *Session) Start(ctx context.Context, req StartAnalysisRequest) (*Result, error) {
	today := quota.Today(s.now())

	// Validating: both gates, no side effects yet.
	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if d := quota.CheckLifetime(user); !d.Allowed {
		return nil, failed(StageValidating, KindQuotaExceeded,
			"no scans remaining", fmt.Errorf("reason: %s", d.Reason))
	}
	dailyLimit := s.dailyLimit(req.Media)
	if d := quota.CanScan(user, today, dailyLimit); !d.Allowed {
		return nil, failed(StageValidating, KindQuotaExceeded,
			"daily scan limit reached", fmt.Errorf("reason: %s", d.Reason))
	}

	// A client-supplied conversation ID may name an existing conversation;
	// it is admitted under the same rules as a continuation. Absence is
	// fine, the conversation is created below.
	if req.ConversationID != "" {
		conv, err := s.conversations.Get(ctx, req.ConversationID)
		if err != nil && err != repository.ErrNotFound {
			return nil, failed(StageValidating, KindInternal, "could not load the conversation", err)
		}
		if err == nil {
			if conv.UserID != req.UserID {
				return nil, failed(StageValidating, KindNotFound, "conversation not found",
					fmt.Errorf("conversation owned by another user"))
			}
			if conv.IsFull() {
				return nil, failed(StageValidating, KindConversationFull,
					"this conversation is full, please start a new one",
					fmt.Errorf("conversation has %d messages", len(conv.Messages)))
			}
		}
	}

	// Invoking: the only slow stage, bounded by the invoke timeout. A
	// failure here leaves no trace: no upload, no rows, no quota.
	invokeCtx, cancel := context.WithTimeout(ctx, s.invokeTimeout)
	defer cancel()

	out, err := s.provider.AnalyzeMedia(invokeCtx, providers.AnalysisInput{
		Media: providers.Media{
			Data:     req.Media.Data,
			MimeType: req.Media.MimeType,
			FileName: req.Media.FileName,
		},
		Prompt:         req.PromptMessage,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		return nil, failed(StageInvoking, KindAiUnavailable,
			"analysis is temporarily unavailable, please try again", err)
	}
	if out == nil || out.Text == "" {
		return nil, failed(StageInvoking, KindAiUnavailable,
			"analysis is temporarily unavailable, please try again",
			fmt.Errorf("empty model output"))
	}

	// Persisting: the media must be retrievable before anything references
	// it. On failure the generated text is discarded; the user resubmits.
	filePath := s.mediaPath(req.UserID, req.Media)
	mediaURL, err := s.store.Store(ctx, req.Media.Data, filePath, req.Media.MimeType)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": req.UserID, "stage": StagePersisting,
		}).Warn("media upload failed, discarding analysis result")
		return nil, failed(StagePersisting, KindStorageError,
			"could not store your upload, please try again", err)
	}

	// Recording: conversation first, then the interpretation record.
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	conv, err := s.conversations.GetOrCreate(ctx, conversationID, req.UserID, mediaURL)
	if err != nil {
		return nil, failed(StageRecording, KindInternal, "could not save the analysis", err)
	}
	// Re-checked here because the admission check above raced against other
	// writers; the returned row is authoritative.
	if conv.UserID != req.UserID {
		return nil, failed(StageRecording, KindNotFound, "conversation not found",
			fmt.Errorf("conversation owned by another user"))
	}

	turns := []models.Turn{
		{Role: models.RoleUser, Content: req.PromptMessage, MediaURL: mediaURL},
		{Role: models.RoleAssistant, Content: out.Text},
	}
	if err := s.conversations.AppendTurns(ctx, conversationID, turns); err != nil {
		return nil, failed(StageRecording, KindInternal, "could not save the analysis", err)
	}

	rec := &models.InterpretationRecord{
		UserID:               req.UserID,
		URL:                  mediaURL,
		FilePath:             filePath,
		MimeType:             req.Media.MimeType,
		PromptMessage:        req.PromptMessage,
		InterpretationResult: out.Text,
		ConversationID:       conversationID,
		Title:                defaultTitle(req),
		CreatedAt:            s.now(),
	}
	if err := s.interpretations.Create(ctx, rec); err != nil {
		// The conversation write already landed. Tolerated: the orphan is
		// logged for reconciliation, not rolled back.
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":         req.UserID,
			"conversation_id": conversationID,
			"stage":           StageRecording,
		}).Error("interpretation record creation failed after conversation update; orphaned conversation left in place")
		return nil, failed(StageRecording, KindInternal, "could not save the analysis", err)
	}

	// Committing: last, so quota is only consumed once durable output
	// exists. A failure here is a bookkeeping gap, not a request failure.
	if err := s.ledger.Commit(ctx, req.UserID, today); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": req.UserID, "stage": StageCommitting,
		}).Error("quota commit failed after successful analysis; counters need reconciliation")
	}

	return &Result{
		InterpretationResult: out.Text,
		ConversationID:       conversationID,
		InterpretationID:     rec.ID,
		CreatedAt:            rec.CreatedAt,
	}, nil
}

// Continue appends one exchange to an existing conversation.
func (s *Session) Continue(ctx context.Context, req ContinueConversationRequest) (*Result, error) {
	today := quota.Today(s.now())

	// Validating. Continuations consult the day cap only; the lifetime
	// allowance is not gated here (see DESIGN.md), though the commit below
	// still decrements it.
	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.Get(ctx, req.ConversationID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, failed(StageValidating, KindNotFound, "conversation not found", err)
		}
		return nil, failed(StageValidating, KindInternal, "could not load the conversation", err)
	}
	if conv.UserID != req.UserID {
		return nil, failed(StageValidating, KindNotFound, "conversation not found",
			fmt.Errorf("conversation owned by another user"))
	}
	if conv.IsFull() {
		return nil, failed(StageValidating, KindConversationFull,
			"this conversation is full, please start a new one",
			fmt.Errorf("conversation has %d messages", len(conv.Messages)))
	}
	if d := quota.CanScan(user, today, s.quotaCfg.DailyImageLimit); !d.Allowed {
		return nil, failed(StageValidating, KindQuotaExceeded,
			"daily scan limit reached", fmt.Errorf("reason: %s", d.Reason))
	}

	// Invoking with accumulated history.
	history := make([]providers.ChatTurn, len(conv.Messages))
	for i, turn := range conv.Messages {
		history[i] = providers.ChatTurn{Role: turn.Role, Content: turn.Content}
	}

	invokeCtx, cancel := context.WithTimeout(ctx, s.invokeTimeout)
	defer cancel()

	out, err := s.provider.ContinueChat(invokeCtx, providers.ChatInput{
		History:        history,
		Message:        req.UserMessage,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		return nil, failed(StageInvoking, KindAiUnavailable,
			"analysis is temporarily unavailable, please try again", err)
	}
	if out == nil || out.Text == "" {
		return nil, failed(StageInvoking, KindAiUnavailable,
			"analysis is temporarily unavailable, please try again",
			fmt.Errorf("empty model output"))
	}

	// Recording: no new media on continuations, so Persisting is a no-op.
	turns := []models.Turn{
		{Role: models.RoleUser, Content: req.UserMessage},
		{Role: models.RoleAssistant, Content: out.Text},
	}
	if err := s.conversations.AppendTurns(ctx, req.ConversationID, turns); err != nil {
		return nil, failed(StageRecording, KindInternal, "could not save the reply", err)
	}

	// Committing, same policy as Start.
	if err := s.ledger.Commit(ctx, req.UserID, today); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": req.UserID, "stage": StageCommitting,
		}).Error("quota commit failed after successful continuation; counters need reconciliation")
	}

	return &Result{
		InterpretationResult: out.Text,
		ConversationID:       req.ConversationID,
		CreatedAt:            s.now(),
	}, nil
}

func (s *Session) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, failed(StageValidating, KindNotFound, "user not found", err)
		}
		return nil, failed(StageValidating, KindInternal, "could not load your account", err)
	}
	return user, nil
}

func (s *Session) dailyLimit(media MediaUpload) int {
	if media.IsVideo() {
		return s.quotaCfg.DailyVideoLimit
	}
	return s.quotaCfg.DailyImageLimit
}

func (s *Session) mediaPath(userID uuid.UUID, media MediaUpload) string {
	ext := path.Ext(media.FileName)
	return fmt.Sprintf("scans/%s/%s%s", userID, uuid.New(), ext)
}

func defaultTitle(req StartAnalysisRequest) string {
	if req.PromptMessage != "" {
		return truncate(req.PromptMessage, 80)
	}
	if req.Media.FileName != "" {
		return req.Media.FileName
	}
	return "Scan"
}

// truncate cuts s to at most max bytes without splitting a rune; prompts
// arrive in arbitrary languages.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
