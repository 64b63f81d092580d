package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FreeStartingScans is the lifetime allowance granted at signup.
const FreeStartingScans = 7

// User represents an account together with its scan quota record.
// Quota counters are only ever mutated through the quota repository's
// atomic commit; handlers must never write them back from memory.
type User struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	PasswordHash   string     `json:"-" db:"password_hash"` // Never expose
	DisplayName    string     `json:"display_name" db:"display_name"`
	ScansRemaining int        `json:"scans_remaining" db:"scans_remaining"`
	ScansToday     int        `json:"scans_today" db:"scans_today"`
	LastScanDate   *string    `json:"last_scan_date" db:"last_scan_date"` // UTC YYYY-MM-DD, nil before first scan
	CompletedScans int        `json:"completed_scans" db:"completed_scans"`
	IsSubscribed   bool       `json:"is_subscribed" db:"is_subscribed"`
	StripeCustomer *string    `json:"-" db:"stripe_customer_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt    *time.Time `json:"last_login_at" db:"last_login_at"`
}

// DisplayScansRemaining clamps the stored counter for client display.
// The stored value may go negative when conversation continuations bypass
// the lifetime gate; the floor only applies to presentation.
func (u *User) DisplayScansRemaining() int {
	if u.ScansRemaining < 0 {
		return 0
	}
	return u.ScansRemaining
}

// UserContext carries the authenticated identity through a request.
type UserContext struct {
	UserID uuid.UUID
	Email  string
}

// JSONB type for JSON columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}
