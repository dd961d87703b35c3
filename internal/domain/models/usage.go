package models

import "time"

// UsageSnapshot reports a principal's rolling usage against its plan's
// limits, returned on allow for caller display and attached to quota denials.
type UsageSnapshot struct {
	// MonthlyUsed is the count of creations since the start of the calendar month
	MonthlyUsed int64 `json:"monthly_used"`

	// MonthlyLimit is the plan's monthly ceiling (0 = unlimited)
	MonthlyLimit int64 `json:"monthly_limit"`

	// MonthlyRemaining is the headroom left this month (0 when unlimited)
	MonthlyRemaining int64 `json:"monthly_remaining"`

	// DailyUsed is the count of creations since the start of the calendar day
	DailyUsed int64 `json:"daily_used"`

	// DailyLimit is the plan's daily ceiling (0 = no daily ceiling)
	DailyLimit int64 `json:"daily_limit"`

	// DailyRemaining is the headroom left today (0 when no daily ceiling)
	DailyRemaining int64 `json:"daily_remaining"`
}

// MonthStart returns the first instant of the calendar month containing now,
// in now's location. Recomputed per check call, never cached.
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// DayStart returns the first instant of the calendar day containing now.
func DayStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
