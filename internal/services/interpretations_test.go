package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

type memRecords struct {
	recs map[uuid.UUID]*models.InterpretationRecord
}

func newMemRecords() *memRecords {
	return &memRecords{recs: map[uuid.UUID]*models.InterpretationRecord{}}
}

func (m *memRecords) Create(_ context.Context, rec *models.InterpretationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.recs[rec.ID] = rec
	return nil
}

func (m *memRecords) Get(_ context.Context, userID, id uuid.UUID) (*models.InterpretationRecord, error) {
	rec, ok := m.recs[id]
	if !ok || rec.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (m *memRecords) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.InterpretationRecord, error) {
	var out []*models.InterpretationRecord
	for _, r := range m.recs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecords) UpdateTitle(_ context.Context, userID, id uuid.UUID, title string) error {
	rec, ok := m.recs[id]
	if !ok || rec.UserID != userID {
		return repository.ErrNotFound
	}
	rec.Title = title
	return nil
}

func (m *memRecords) Delete(_ context.Context, userID, id uuid.UUID) error {
	rec, ok := m.recs[id]
	if !ok || rec.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

type memConversations struct {
	convs     map[string]*models.Conversation
	deleteErr error
}

func newMemConversations() *memConversations {
	return &memConversations{convs: map[string]*models.Conversation{}}
}

func (m *memConversations) GetOrCreate(_ context.Context, id string, userID uuid.UUID, origin string) (*models.Conversation, error) {
	if c, ok := m.convs[id]; ok {
		return c, nil
	}
	c := &models.Conversation{ID: id, UserID: userID, OriginMediaURL: origin, CreatedAt: time.Now()}
	m.convs[id] = c
	return c, nil
}

func (m *memConversations) Get(_ context.Context, id string) (*models.Conversation, error) {
	c, ok := m.convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (m *memConversations) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, c := range m.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memConversations) AppendTurns(_ context.Context, id string, turns []models.Turn) error {
	c, ok := m.convs[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Messages = append(c.Messages, turns...)
	return nil
}

func (m *memConversations) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.convs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.convs, id)
	return nil
}

type memStore struct {
	deleted   []string
	deleteErr error
}

func (m *memStore) Store(_ context.Context, _ []byte, path string, _ string) (string, error) {
	return "https://media.test/" + path, nil
}

func (m *memStore) Delete(_ context.Context, path string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, path)
	return nil
}

type fixture struct {
	svc    *InterpretationService
	recs   *memRecords
	convs  *memConversations
	store  *memStore
	userID uuid.UUID
}

func newFixture() *fixture {
	recs := newMemRecords()
	convs := newMemConversations()
	store := &memStore{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &fixture{
		svc:    NewInterpretationService(recs, convs, store, log),
		recs:   recs,
		convs:  convs,
		store:  store,
		userID: uuid.New(),
	}
}

func (f *fixture) seed() *models.InterpretationRecord {
	convID := uuid.New().String()
	f.convs.convs[convID] = &models.Conversation{ID: convID, UserID: f.userID}
	rec := &models.InterpretationRecord{
		ID:             uuid.New(),
		UserID:         f.userID,
		ConversationID: convID,
		FilePath:       "scans/" + f.userID.String() + "/a.png",
		Title:          "Blood smear",
	}
	f.recs.recs[rec.ID] = rec
	return rec
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture()
	rec := f.seed()

	require.NoError(t, f.svc.Delete(context.Background(), f.userID, rec.ID))

	assert.Empty(t, f.recs.recs, "record removed")
	assert.Empty(t, f.convs.convs, "conversation removed with it")
	assert.Equal(t, []string{rec.FilePath}, f.store.deleted, "stored media removed")
}

func TestDeleteSucceedsWhenCleanupFails(t *testing.T) {
	f := newFixture()
	rec := f.seed()
	f.convs.deleteErr = errors.New("db down")
	f.store.deleteErr = errors.New("bucket down")

	require.NoError(t, f.svc.Delete(context.Background(), f.userID, rec.ID),
		"cleanup failures are logged, not surfaced")
	assert.Empty(t, f.recs.recs)
}

func TestDeleteOtherUsersRecord(t *testing.T) {
	f := newFixture()
	rec := f.seed()

	err := f.svc.Delete(context.Background(), uuid.New(), rec.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Len(t, f.recs.recs, 1, "record untouched")
	assert.Len(t, f.convs.convs, 1)
}

func TestGetWithMissingConversation(t *testing.T) {
	f := newFixture()
	rec := f.seed()
	delete(f.convs.convs, rec.ConversationID)

	got, conv, err := f.svc.Get(context.Background(), f.userID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Nil(t, conv)
}

func TestRenameTruncatesLongTitles(t *testing.T) {
	f := newFixture()
	rec := f.seed()

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, f.svc.Rename(context.Background(), f.userID, rec.ID, string(long)))
	assert.Len(t, f.recs.recs[rec.ID].Title, 120)
}

func TestRenameTruncatesOnRuneBoundary(t *testing.T) {
	f := newFixture()
	rec := f.seed()

	// One ASCII byte then 3-byte runes, so the byte cap lands mid-rune.
	long := "a" + strings.Repeat("寄生虫", 50)
	require.NoError(t, f.svc.Rename(context.Background(), f.userID, rec.ID, long))

	title := f.recs.recs[rec.ID].Title
	assert.True(t, utf8.ValidString(title), "truncation must not split a rune")
	assert.LessOrEqual(t, len(title), 120)
	assert.True(t, strings.HasPrefix(long, title))
}
