// Package quota provides pure functions for word-quota enforcement.
// All functions are deterministic with no side effects.
package quota

import (
	"time"

	"github.com/pkkmi/andikar-gate/domain/tier"
	"github.com/pkkmi/andikar-gate/domain/usage"
)

// Axis identifies which limit controlled a decision.
type Axis string

const (
	AxisNone    Axis = "none" // Unlimited tier
	AxisTotal   Axis = "total"
	AxisDaily   Axis = "daily"
	AxisMonthly Axis = "monthly"
)

// Decision represents the outcome of a quota check (transient value type).
// Computed fresh per request, never stored.
type Decision struct {
	Allowed        bool
	RemainingWords int64 // Words left on the controlling axis, never negative
	Axis           Axis
	ResetsAt       time.Time // When the controlling axis rolls over; zero for the total axis
	Reason         string
}

// Reason for denial.
const ReasonQuotaExceeded = "quota_exceeded"

// Check decides whether a request of `requested` words is allowed.
// The caller must pass a record that has already been rolled over to now
// (or a zero record for an unknown user - fresh users get full quota).
// The tightest remaining budget among total/daily/monthly controls; a
// zero limit on any axis means that axis is unlimited.
// This is a PURE function.
func Check(rec usage.Record, t tier.Tier, requested int64, now time.Time) Decision {
	remaining := int64(-1) // -1 = unbounded so far
	axis := AxisNone
	var resetsAt time.Time

	consider := func(limit int, used int64, a Axis, reset time.Time) {
		if limit <= 0 {
			return
		}
		left := int64(limit) - used
		if left < 0 {
			left = 0
		}
		switch {
		case remaining < 0 || left < remaining:
			remaining = left
			axis = a
			resetsAt = reset
		case left == remaining && resetsAt.IsZero() && !reset.IsZero():
			// On a tie the axis that rolls over wins, so a denial
			// always carries a reset time when one exists.
			axis = a
			resetsAt = reset
		}
	}

	consider(t.WordLimit, rec.TotalWords, AxisTotal, time.Time{})
	consider(t.DailyWordLimit, rec.DailyWords, AxisDaily, usage.NextDayReset(now))
	consider(t.MonthlyWordLimit, rec.MonthlyWords, AxisMonthly, usage.NextMonthReset(now))

	if remaining < 0 {
		return Decision{Allowed: true, Axis: AxisNone}
	}

	d := Decision{
		RemainingWords: remaining,
		Axis:           axis,
		ResetsAt:       resetsAt,
	}
	if requested <= 0 {
		// Pre-flight check without a concrete word count: allowed while
		// any budget remains.
		d.Allowed = remaining > 0
	} else {
		d.Allowed = requested <= remaining
	}
	if !d.Allowed {
		d.Reason = ReasonQuotaExceeded
	}
	return d
}
