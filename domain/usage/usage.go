// Package usage provides usage record types and window rollover functions.
// All functions are pure - no side effects.
package usage

import "time"

// Record tracks cumulative word usage for one user (value type).
// Mutated only through Apply; counters never decrease except by rollover.
type Record struct {
	UserID        string
	RequestsCount int64
	TotalWords    int64
	DailyWords    int64
	MonthlyWords  int64
	LastRequestAt time.Time // zero = never
	WindowDay     time.Time // date (midnight) the daily counter belongs to
	WindowYear    int       // month the monthly counter belongs to
	WindowMonth   time.Month
}

// NewRecord creates a zeroed record anchored at now.
// The windows start at the creation instant, so a brand-new user's first
// request never appears to roll over.
// This is a PURE function.
func NewRecord(userID string, now time.Time) Record {
	return Record{
		UserID:      userID,
		WindowDay:   day(now),
		WindowYear:  now.Year(),
		WindowMonth: now.Month(),
	}
}

// Rollover resets expired counters. The daily and monthly checks are
// independent: a day change does not touch the monthly counter and a
// month change does not touch the daily counter.
// This is a PURE function.
func Rollover(rec Record, now time.Time) Record {
	if d := day(now); !d.Equal(rec.WindowDay) {
		rec.DailyWords = 0
		rec.WindowDay = d
	}
	if y, m := now.Year(), now.Month(); y != rec.WindowYear || m != rec.WindowMonth {
		rec.MonthlyWords = 0
		rec.WindowYear = y
		rec.WindowMonth = m
	}
	return rec
}

// Apply records one request of words at now: rollover first, then
// increment every counter.
// This is a PURE function.
func Apply(rec Record, words int64, now time.Time) Record {
	rec = Rollover(rec, now)
	rec.RequestsCount++
	rec.TotalWords += words
	rec.DailyWords += words
	rec.MonthlyWords += words
	rec.LastRequestAt = now
	return rec
}

// NextDayReset returns when the daily window rolls over.
// This is a PURE function.
func NextDayReset(now time.Time) time.Time {
	return day(now).AddDate(0, 0, 1)
}

// NextMonthReset returns when the monthly window rolls over.
// This is a PURE function.
func NextMonthReset(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
