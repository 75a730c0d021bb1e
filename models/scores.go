package models

import "time"

// DailyPoints aggregates one user's observations for one calendar day
type DailyPoints struct {
	UserID           string    `db:"user_id"`
	Day              time.Time `db:"day"`
	TotalPoints      int64     `db:"total_points"`
	Breakdown        Breakdown `db:"breakdown"`
	WeatherSummary   string    `db:"weather_summary"`
	ObservationCount int       `db:"observation_count"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// RunningScore is a user's all-time cumulative total
type RunningScore struct {
	UserID           string     `db:"user_id"`
	TotalPoints      int64      `db:"total_points"`
	ManualAdjustment int64      `db:"manual_adjustment"` // Delta introduced by admin overrides
	LastAwardAt      *time.Time `db:"last_award_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// AwardRecord is an append-only audit entry for a positive-scoring reading
type AwardRecord struct {
	ID              int64     `db:"id"`
	UserID          string    `db:"user_id"`
	Points          int       `db:"points"`
	Breakdown       Breakdown `db:"breakdown"`
	WeatherSnapshot Reading   `db:"weather_snapshot"`
	TotalAfter      int64     `db:"total_after"` // Running total right after this award
	AwardedAt       time.Time `db:"awarded_at"`
}

// ApiUsage counts provider calls for one calendar day
type ApiUsage struct {
	UsageDate time.Time `db:"usage_date"`
	CallCount int       `db:"call_count"`
}

// DayOf returns the calendar day of t in loc, as a UTC midnight value
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
