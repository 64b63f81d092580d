package services

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
	"github.com/microlens/microlens-backend/internal/storage"
)

// maxTitleBytes caps a report title; matches the column width.
const maxTitleBytes = 120

// InterpretationService manages saved analysis reports. All operations are
// scoped to the owning user; a record belonging to someone else behaves
// exactly like a missing one.
type InterpretationService struct {
	records       repository.InterpretationRepository
	conversations repository.ConversationRepository
	store         storage.ObjectStorage
	log           *logrus.Logger
}

// NewInterpretationService creates the report service
func NewInterpretationService(
	records repository.InterpretationRepository,
	conversations repository.ConversationRepository,
	store storage.ObjectStorage,
	log *logrus.Logger,
) *InterpretationService {
	return &InterpretationService{
		records:       records,
		conversations: conversations,
		store:         store,
		log:           log,
	}
}

// List returns the user's saved reports, newest first.
func (s *InterpretationService) List(ctx context.Context, userID uuid.UUID) ([]*models.InterpretationRecord, error) {
	return s.records.ListByUser(ctx, userID)
}

// Get returns one report with its conversation loaded.
func (s *InterpretationService) Get(ctx context.Context, userID, id uuid.UUID) (*models.InterpretationRecord, *models.Conversation, error) {
	rec, err := s.records.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	conv, err := s.conversations.Get(ctx, rec.ConversationID)
	if err != nil {
		if err == repository.ErrNotFound {
			// A record without its conversation is readable, just not
			// continuable.
			return rec, nil, nil
		}
		return nil, nil, err
	}
	return rec, conv, nil
}

// Rename updates a report title. Oversized titles are cut on a rune
// boundary, never mid-character.
func (s *InterpretationService) Rename(ctx context.Context, userID, id uuid.UUID, title string) error {
	if len(title) > maxTitleBytes {
		cut := maxTitleBytes
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut]
	}
	return s.records.UpdateTitle(ctx, userID, id, title)
}

// Delete removes a report and cascades to its conversation and stored
// media. The record row goes first so the report disappears from listings
// immediately; the follow-up deletes are best effort.
func (s *InterpretationService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	rec, err := s.records.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.records.Delete(ctx, userID, id); err != nil {
		return err
	}

	if err := s.conversations.Delete(ctx, rec.ConversationID); err != nil && err != repository.ErrNotFound {
		s.log.WithError(err).WithFields(logrus.Fields{
			"record_id":       id,
			"conversation_id": rec.ConversationID,
		}).Warn("conversation cleanup failed after record delete")
	}

	if rec.FilePath != "" {
		if err := s.store.Delete(ctx, rec.FilePath); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"record_id": id,
				"file_path": rec.FilePath,
			}).Warn("media cleanup failed after record delete")
		}
	}

	return nil
}
