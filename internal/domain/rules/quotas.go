package rules

import "time"

const (
	// UnlimitedRemaining is the sentinel returned for premium users and
	// live chat-pass holders where no daily cap applies.
	UnlimitedRemaining = 999999

	// BoostNotificationWindow bounds how long notification counts are
	// held against a user before the anti-spam window resets.
	BoostNotificationWindow = 24 * time.Hour

	// BoostNotificationCap is the most aggressive-boost notifications a
	// single user may receive within one window.
	BoostNotificationCap = 2
)

func DayStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NeedsDailyReset reports whether a stored counter reset timestamp
// predates the start of the current local day. Resets only move
// forward: a timestamp from today never qualifies.
func NeedsDailyReset(resetAt, now time.Time, loc *time.Location) bool {
	if resetAt.IsZero() {
		return true
	}
	return resetAt.Before(DayStart(now, loc))
}

// NextResetAt is the upcoming local-midnight boundary, in UTC.
func NextResetAt(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.UTC()
}
