package service

import (
	"context"
	"time"

	"weatherbot/events"
	"weatherbot/models"
	"weatherbot/weather"
)

// UserRepository defines the interface for participant data access
type UserRepository interface {
	// GetByID retrieves a user, returning nil when absent
	GetByID(ctx context.Context, userID string) (*models.User, error)

	// Create inserts a new user
	Create(ctx context.Context, user *models.User) error

	// Update persists every mutable column of an existing user
	Update(ctx context.Context, user *models.User) error

	// ListActive returns active users ordered by join time
	ListActive(ctx context.Context) ([]*models.User, error)

	// List returns users, including inactive ones when requested
	List(ctx context.Context, includeInactive bool) ([]*models.User, error)

	// TouchLastChecked records a completed weather check
	TouchLastChecked(ctx context.Context, userID string, at time.Time) error
}

// ObservationRepository defines the interface for the immutable weather history
type ObservationRepository interface {
	// Append writes a new observation and sets its ID
	Append(ctx context.Context, obs *models.Observation) error

	// ListByUserSince returns a user's observations newest first
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.Observation, error)

	// ListUnscored returns legacy rows without calculated_at, oldest first
	ListUnscored(ctx context.Context, limit int) ([]*models.Observation, error)

	// Backfill sets the point fields of a legacy row
	Backfill(ctx context.Context, id int64, points int, breakdown models.Breakdown, calculatedAt time.Time) error
}

// DailyPointsRepository defines the interface for per-day aggregates
type DailyPointsRepository interface {
	// Add upserts the (user, day) row additively and returns the new row
	Add(ctx context.Context, userID string, day time.Time, points int, breakdown models.Breakdown, summary string) (*models.DailyPoints, error)

	// ListSince returns every row with day >= since
	ListSince(ctx context.Context, since time.Time) ([]*models.DailyPoints, error)

	// ListByUserSince returns a user's rows with day >= since
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.DailyPoints, error)

	// SumByUser returns each user's sum of daily totals
	SumByUser(ctx context.Context) (map[string]int64, error)
}

// RunningScoreRepository defines the interface for all-time totals
type RunningScoreRepository interface {
	// Add atomically increments the user's total, creating the row if needed
	Add(ctx context.Context, userID string, points int, at time.Time) (int64, error)

	// Get returns the user's score, or nil when none exists
	Get(ctx context.Context, userID string) (*models.RunningScore, error)

	// List returns every score row
	List(ctx context.Context) ([]*models.RunningScore, error)

	// Override sets the total and manual adjustment directly
	Override(ctx context.Context, userID string, total, manualAdjustment int64) error
}

// AwardRepository defines the interface for the award audit log
type AwardRepository interface {
	// Append writes a new award and sets its ID
	Append(ctx context.Context, award *models.AwardRecord) error

	// LastForUser returns the user's latest award, or nil
	LastForUser(ctx context.Context, userID string) (*models.AwardRecord, error)

	// ListByUser returns the user's latest awards, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AwardRecord, error)
}

// ApiUsageRepository tracks provider calls per calendar day. It is used
// outside units of work so every call is counted immediately.
type ApiUsageRepository interface {
	// Get returns the call count for the day
	Get(ctx context.Context, day time.Time) (int, error)

	// Increment atomically adds one call and returns the new count
	Increment(ctx context.Context, day time.Time) (int, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	ObservationRepository() ObservationRepository
	DailyPointsRepository() DailyPointsRepository
	RunningScoreRepository() RunningScoreRepository
	AwardRepository() AwardRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// WeatherProvider is the outbound weather API
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, q weather.ProviderQuery) (*models.Reading, error)
	Geocode(ctx context.Context, q weather.ProviderQuery) (*models.Location, error)
}

// LocationResolver normalizes postal codes into provider queries
type LocationResolver interface {
	Validate(postalCode string) error
	Resolve(postalCode, countryHint string) (weather.ProviderQuery, error)
}

// RandomSource drives the probabilistic quota admission
type RandomSource interface {
	Float64() float64
}
