// Package quota holds the scan-quota ledger and eligibility decisions.
//
// The split is deliberate: EligibilityPolicy decides, the Ledger commits.
// Commit never re-validates, so the admission check stays the single place
// where a request can be refused without side effects.
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

// ErrUserNotFound is returned when committing against an unknown user.
var ErrUserNotFound = errors.New("user not found")

// DateFormat is the calendar-date layout used for last_scan_date.
const DateFormat = "2006-01-02"

// Today returns the current UTC calendar date.
func Today(now time.Time) string {
	return now.UTC().Format(DateFormat)
}

// Effective holds the quota counters after rollover-on-read.
type Effective struct {
	ScansToday     int
	ScansRemaining int
}

// ReadEffective computes the effective counters for a calendar date.
// There is no background reset job: if the stored last-scan date is not
// today, the daily counter is logically zero whatever the row says.
func ReadEffective(user *models.User, today string) Effective {
	eff := Effective{ScansRemaining: user.ScansRemaining}
	if user.LastScanDate != nil && *user.LastScanDate == today {
		eff.ScansToday = user.ScansToday
	}
	return eff
}

// Ledger commits quota consumption against the backing store.
type Ledger struct {
	users repository.UserRepository
}

// NewLedger creates a ledger over the given user repository.
func NewLedger(users repository.UserRepository) *Ledger {
	return &Ledger{users: users}
}

// Commit counts one completed scan for the user on the given date. The
// repository performs the whole update as one atomic statement, so
// concurrent commits for the same user cannot lose increments. Commit does
// not check eligibility; that is the caller's responsibility, before any
// side effects.
func (l *Ledger) Commit(ctx context.Context, userID uuid.UUID, today string) error {
	err := l.users.CommitScan(ctx, userID, today)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
