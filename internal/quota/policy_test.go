package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/microlens/microlens-backend/internal/models"
)

func strPtr(s string) *string { return &s }

func TestReadEffective_Rollover(t *testing.T) {
	tests := []struct {
		name           string
		lastScanDate   *string
		scansToday     int
		today          string
		wantScansToday int
	}{
		{
			name:           "same day keeps stored counter",
			lastScanDate:   strPtr("2025-03-10"),
			scansToday:     42,
			today:          "2025-03-10",
			wantScansToday: 42,
		},
		{
			name:           "yesterday rolls over to zero regardless of stored value",
			lastScanDate:   strPtr("2025-03-09"),
			scansToday:     99,
			today:          "2025-03-10",
			wantScansToday: 0,
		},
		{
			name:           "never scanned",
			lastScanDate:   nil,
			scansToday:     7, // stale garbage must be ignored
			today:          "2025-03-10",
			wantScansToday: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &models.User{
				ScansToday:     tt.scansToday,
				ScansRemaining: 3,
				LastScanDate:   tt.lastScanDate,
			}
			eff := ReadEffective(user, tt.today)
			assert.Equal(t, tt.wantScansToday, eff.ScansToday)
			assert.Equal(t, 3, eff.ScansRemaining)
		})
	}
}

func TestCanScan_DailyCap(t *testing.T) {
	today := "2025-03-10"

	user := &models.User{
		ScansToday:     99,
		ScansRemaining: 5,
		LastScanDate:   strPtr(today),
	}

	d := CanScan(user, today, 100)
	assert.True(t, d.Allowed)

	user.ScansToday = 100
	d = CanScan(user, today, 100)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDailyLimitReached, d.Reason)
}

func TestCanScan_IgnoresLifetimeAllowance(t *testing.T) {
	today := "2025-03-10"
	user := &models.User{
		ScansToday:     0,
		ScansRemaining: 0, // exhausted lifetime quota is not this gate's concern
		LastScanDate:   strPtr(today),
	}

	d := CanScan(user, today, 80)
	assert.True(t, d.Allowed)
}

func TestCanScan_RolloverResetsCap(t *testing.T) {
	user := &models.User{
		ScansToday:   100,
		LastScanDate: strPtr("2025-03-09"),
	}

	d := CanScan(user, "2025-03-10", 100)
	assert.True(t, d.Allowed, "a new day starts with an effective count of zero")
}

func TestCheckLifetime(t *testing.T) {
	free := &models.User{ScansRemaining: 1}
	assert.True(t, CheckLifetime(free).Allowed)

	exhausted := &models.User{ScansRemaining: 0}
	d := CheckLifetime(exhausted)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonLifetimeQuotaExhausted, d.Reason)

	// Stored counter can be negative; the gate treats it as exhausted
	negative := &models.User{ScansRemaining: -2}
	assert.False(t, CheckLifetime(negative).Allowed)

	subscribed := &models.User{ScansRemaining: 0, IsSubscribed: true}
	assert.True(t, CheckLifetime(subscribed).Allowed)
}
