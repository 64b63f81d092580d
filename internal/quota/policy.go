package quota

import "github.com/microlens/microlens-backend/internal/models"

// Reason explains why a scan request was refused.
type Reason string

const (
	ReasonDailyLimitReached      Reason = "DailyLimitReached"
	ReasonLifetimeQuotaExhausted Reason = "LifetimeQuotaExhausted"
)

// Decision is the outcome of an eligibility check. Pure data, no I/O.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allowed is the positive decision.
var allowed = Decision{Allowed: true}

// CanScan applies the per-day cap. The day cap is evaluated for every
// user, subscribed or not: it exists for abuse prevention, not billing.
// It is independent of the lifetime allowance, which CheckLifetime gates
// separately.
func CanScan(user *models.User, today string, dailyLimit int) Decision {
	eff := ReadEffective(user, today)
	if eff.ScansToday >= dailyLimit {
		return Decision{Allowed: false, Reason: ReasonDailyLimitReached}
	}
	return allowed
}

// CheckLifetime applies the free-tier lifetime gate. Subscribed users
// bypass it; free-tier users must still have scans remaining. Evaluated
// only for single-shot analysis, not conversation continuations.
func CheckLifetime(user *models.User) Decision {
	if user.IsSubscribed {
		return allowed
	}
	if user.ScansRemaining <= 0 {
		return Decision{Allowed: false, Reason: ReasonLifetimeQuotaExhausted}
	}
	return allowed
}
