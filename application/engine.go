package application

import (
	"context"
	"fmt"
	"strings"

	"weatherbot/clock"
	"weatherbot/models"
	"weatherbot/service"

	log "github.com/sirupsen/logrus"
)

// JoinResult is what a participant sees after joining. Scored is false when
// an already active participant only changed their details; their reading is
// shown but earns nothing.
type JoinResult struct {
	User     *models.User
	Location models.Location
	Reading  models.Reading
	Score    models.ScoreResult
	Scored   bool
	Rejoined bool
}

// EngineDeps groups the collaborators of an Engine
type EngineDeps struct {
	Registry    *service.RegistryService
	Resolver    service.LocationResolver
	Fetcher     *service.WeatherFetcher
	Calculator  *service.PointCalculator
	Ledger      *service.ScoreLedger
	Leaderboard *service.LeaderboardService
	Quota       *service.QuotaTracker
	Pipeline    *PollingPipeline
	Clock       clock.Clock
}

// Engine is the surface consumed by the chat glue and the admin CLI
type Engine struct {
	registry    *service.RegistryService
	resolver    service.LocationResolver
	fetcher     *service.WeatherFetcher
	calculator  *service.PointCalculator
	ledger      *service.ScoreLedger
	leaderboard *service.LeaderboardService
	quota       *service.QuotaTracker
	pipeline    *PollingPipeline
	clock       clock.Clock
}

func NewEngine(deps EngineDeps) *Engine {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Engine{
		registry:    deps.Registry,
		resolver:    deps.Resolver,
		fetcher:     deps.Fetcher,
		calculator:  deps.Calculator,
		ledger:      deps.Ledger,
		leaderboard: deps.Leaderboard,
		quota:       deps.Quota,
		pipeline:    deps.Pipeline,
		clock:       clk,
	}
}

// Join validates the postal code, performs the first fetch and creates or
// reactivates the participant. Location and quota errors are returned as is
// so the caller can show them to the user.
func (e *Engine) Join(ctx context.Context, userID, postalCode, displayName, countryHint string) (*JoinResult, error) {
	return e.register(ctx, userID, postalCode, displayName, countryHint, nil)
}

// AddUser registers a participant on behalf of an admin
func (e *Engine) AddUser(ctx context.Context, adminID, userID, postalCode, displayName, countryHint string) (*JoinResult, error) {
	admin := adminID
	return e.register(ctx, userID, postalCode, displayName, countryHint, &admin)
}

func (e *Engine) register(ctx context.Context, userID, postalCode, displayName, countryHint string, actor *string) (*JoinResult, error) {
	postalCode = strings.TrimSpace(postalCode)
	if err := e.resolver.Validate(postalCode); err != nil {
		return nil, err
	}

	fetched, err := e.fetcher.FetchForLocation(ctx, postalCode, countryHint)
	if err != nil {
		return nil, err
	}

	user, kind, err := e.registry.Register(ctx, service.Registration{
		UserID:      userID,
		DisplayName: displayName,
		PostalCode:  postalCode,
		CountryHint: countryHint,
		Location:    fetched.Location,
		Actor:       actor,
	})
	if err != nil {
		return nil, err
	}

	result := &JoinResult{
		User:     user,
		Location: fetched.Location,
		Reading:  fetched.Reading,
		Rejoined: kind == service.RegistrationReactivated,
	}
	if !kind.Enters() {
		return result, nil
	}

	result.Score = e.calculator.CalculatePoints(fetched.Reading)
	result.Scored = true
	if _, err := e.ledger.Record(ctx, user, fetched.Reading, result.Score); err != nil {
		return result, err
	}
	if err := e.registry.MarkChecked(ctx, user.UserID, e.clock.Now().UTC()); err != nil {
		log.WithFields(log.Fields{
			"user_id": user.UserID,
			"error":   err,
		}).Warn("Failed to update last checked time")
	}
	return result, nil
}

// Leave soft-deactivates the caller. It returns false when they were not active.
func (e *Engine) Leave(ctx context.Context, userID string) (bool, error) {
	left, err := e.registry.Deactivate(ctx, userID, nil)
	if err == nil && left {
		e.pipeline.Notifications().Forget(userID)
	}
	return left, err
}

// RemoveUser deactivates a participant on behalf of an admin
func (e *Engine) RemoveUser(ctx context.Context, adminID, userID string) (bool, error) {
	admin := adminID
	left, err := e.registry.Deactivate(ctx, userID, &admin)
	if err == nil && left {
		e.pipeline.Notifications().Forget(userID)
	}
	return left, err
}

// CurrentWeather fetches a participant's weather on demand without scoring it
func (e *Engine) CurrentWeather(ctx context.Context, userID string) (*service.FetchResult, error) {
	user, err := e.registry.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, service.ErrUserNotFound
	}
	if !user.IsActive {
		return nil, service.ErrUserInactive
	}
	return e.fetcher.Fetch(ctx, user)
}

// Leaderboard returns one ranked view
func (e *Engine) Leaderboard(ctx context.Context, kind models.LeaderboardKind, limit int, all bool) (*models.Leaderboard, error) {
	return e.leaderboard.Leaderboard(ctx, kind, limit, all)
}

// PersonalRank returns the caller's position, or a no-activity result
func (e *Engine) PersonalRank(ctx context.Context, userID string, kind models.LeaderboardKind) (*models.RankInfo, error) {
	return e.leaderboard.PersonalRank(ctx, userID, kind)
}

// History returns the caller's observations from the last days
func (e *Engine) History(ctx context.Context, userID string, days int) ([]*models.Observation, error) {
	return e.leaderboard.History(ctx, userID, days)
}

// TopPointSources aggregates the caller's points by reason over the last days
func (e *Engine) TopPointSources(ctx context.Context, userID string, days int) ([]models.ReasonPoints, error) {
	return e.leaderboard.TopPointSources(ctx, userID, days)
}

// LastAward returns the caller's most recent award
func (e *Engine) LastAward(ctx context.Context, userID string) (*models.AwardRecord, error) {
	return e.leaderboard.LastAward(ctx, userID)
}

// AwardHistory lists a user's latest awards, newest first
func (e *Engine) AwardHistory(ctx context.Context, userID string, limit int) ([]*models.AwardRecord, error) {
	return e.leaderboard.AwardHistory(ctx, userID, limit)
}

// AwardPoints runs an immediate check for every active user. It skips the
// probabilistic admission gate but still stops at the daily ceiling.
func (e *Engine) AwardPoints(ctx context.Context) (*PipelineResult, error) {
	return e.pipeline.Run(ctx, TickManual, false)
}

// CheckAllUsersWeather is the scheduled hourly run, admission gate included
func (e *Engine) CheckAllUsersWeather(ctx context.Context) (*PipelineResult, error) {
	return e.pipeline.Run(ctx, TickHourly, true)
}

// ListUsers returns participants for the admin surface
func (e *Engine) ListUsers(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	return e.registry.List(ctx, includeInactive)
}

// SetActive toggles a participant directly, bypassing join validation
func (e *Engine) SetActive(ctx context.Context, adminID, userID string, active bool) error {
	if err := e.registry.SetActive(ctx, adminID, userID, active); err != nil {
		return err
	}
	if !active {
		e.pipeline.Notifications().Forget(userID)
	}
	return nil
}

// SetScore overrides a participant's all-time total
func (e *Engine) SetScore(ctx context.Context, adminID, userID string, total int64) error {
	if total < 0 {
		return fmt.Errorf("score must not be negative, got %d", total)
	}
	return e.ledger.SetScore(ctx, adminID, userID, total)
}

// Reconcile reports, and optionally repairs, running totals that drifted
// from the daily aggregates
func (e *Engine) Reconcile(ctx context.Context, fix bool) ([]service.ScoreDrift, error) {
	return e.ledger.Reconcile(ctx, fix)
}

// BackfillLegacy scores observations recorded before scoring existed
func (e *Engine) BackfillLegacy(ctx context.Context) (int, error) {
	return e.ledger.BackfillLegacy(ctx)
}

// QuotaStatus returns today's provider budget
func (e *Engine) QuotaStatus(ctx context.Context) (service.QuotaState, error) {
	return e.quota.Snapshot(ctx)
}
