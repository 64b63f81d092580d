package quota

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

// fakeUserRepo mimics the backing store's atomic commit over an in-memory map.
type fakeUserRepo struct {
	repository.UserRepository
	users   map[uuid.UUID]*models.User
	commits int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeUserRepo) CommitScan(_ context.Context, userID uuid.UUID, today string) error {
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.LastScanDate != nil && *u.LastScanDate == today {
		u.ScansToday++
	} else {
		u.ScansToday = 1
	}
	u.LastScanDate = &today
	u.ScansRemaining--
	u.CompletedScans++
	f.commits++
	return nil
}

func TestLedgerCommit_FirstScan(t *testing.T) {
	repo := newFakeUserRepo()
	id := uuid.New()
	repo.users[id] = &models.User{ID: id, ScansRemaining: 7}

	ledger := NewLedger(repo)
	today := Today(time.Now())

	require.NoError(t, ledger.Commit(context.Background(), id, today))

	u := repo.users[id]
	assert.Equal(t, 6, u.ScansRemaining)
	assert.Equal(t, 1, u.ScansToday)
	assert.Equal(t, 1, u.CompletedScans)
	require.NotNil(t, u.LastScanDate)
	assert.Equal(t, today, *u.LastScanDate)
}

func TestLedgerCommit_RolloverResetsDailyCounter(t *testing.T) {
	repo := newFakeUserRepo()
	id := uuid.New()
	yesterday := "2025-03-09"
	repo.users[id] = &models.User{ID: id, ScansRemaining: 5, ScansToday: 17, LastScanDate: &yesterday}

	ledger := NewLedger(repo)
	require.NoError(t, ledger.Commit(context.Background(), id, "2025-03-10"))

	u := repo.users[id]
	assert.Equal(t, 1, u.ScansToday, "rollover commits reset the daily counter to 1")
	assert.Equal(t, "2025-03-10", *u.LastScanDate)
}

func TestLedgerCommit_UnknownUser(t *testing.T) {
	ledger := NewLedger(newFakeUserRepo())
	err := ledger.Commit(context.Background(), uuid.New(), "2025-03-10")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedgerCommit_NoEligibilityRevalidation(t *testing.T) {
	// Commit is pure bookkeeping: it must apply even when the counters are
	// already past the limits, since the admission check happened earlier.
	repo := newFakeUserRepo()
	id := uuid.New()
	repo.users[id] = &models.User{ID: id, ScansRemaining: 0}

	ledger := NewLedger(repo)
	require.NoError(t, ledger.Commit(context.Background(), id, "2025-03-10"))
	assert.Equal(t, -1, repo.users[id].ScansRemaining)
}

func TestToday_UTC(t *testing.T) {
	loc := time.FixedZone("UTC+13", 13*3600)
	// 23:30 on March 10 in UTC+13 is still March 10 10:30 UTC
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, "2025-03-10", Today(now))

	// 05:00 on March 10 in UTC+13 is March 9 in UTC
	early := time.Date(2025, 3, 10, 5, 0, 0, 0, loc)
	assert.Equal(t, "2025-03-09", Today(early))
}
