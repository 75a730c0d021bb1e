package events

import (
	"time"

	"weatherbot/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePointsAwarded  EventType = "points_awarded"
	EventTypeUserJoined     EventType = "user_joined"
	EventTypeUserLeft       EventType = "user_left"
	EventTypeAdminOverride  EventType = "admin_override"
	EventTypeQuotaExhausted EventType = "quota_exhausted"
	EventTypeDailySummary   EventType = "daily_summary"
	EventTypeWeeklySummary  EventType = "weekly_summary"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PointsAwardedEvent is emitted after a positive-scoring reading is committed
type PointsAwardedEvent struct {
	UserID      string
	DisplayName string
	Points      int
	TotalAfter  int64
	Breakdown   models.Breakdown
	Summary     string
	AwardedAt   time.Time
}

func (e PointsAwardedEvent) Type() EventType {
	return EventTypePointsAwarded
}

// UserJoinedEvent is emitted when a user joins or rejoins
type UserJoinedEvent struct {
	UserID      string
	DisplayName string
	Region      string
	Rejoined    bool
}

func (e UserJoinedEvent) Type() EventType {
	return EventTypeUserJoined
}

// UserLeftEvent is emitted when a user is deactivated
type UserLeftEvent struct {
	UserID string
	Actor  *string
}

func (e UserLeftEvent) Type() EventType {
	return EventTypeUserLeft
}

// AdminOverrideEvent records a direct admin change that bypassed scoring
type AdminOverrideEvent struct {
	AdminID string
	UserID  string
	Action  string
	Value   string
}

func (e AdminOverrideEvent) Type() EventType {
	return EventTypeAdminOverride
}

// QuotaExhaustedEvent is emitted once when the daily provider budget runs out
type QuotaExhaustedEvent struct {
	Date  time.Time
	Used  int
	Limit int
}

func (e QuotaExhaustedEvent) Type() EventType {
	return EventTypeQuotaExhausted
}

// SummaryEvent carries a daily or weekly standings summary for external consumers
type SummaryEvent struct {
	Kind        EventType
	PeriodStart time.Time
	PeriodEnd   time.Time
	Standings   *models.Leaderboard
	AllTime     *models.Leaderboard
}

func (e SummaryEvent) Type() EventType {
	return e.Kind
}
