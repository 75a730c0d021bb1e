package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"weatherbot/clock"
	"weatherbot/events"
	"weatherbot/models"

	log "github.com/sirupsen/logrus"
)

const backfillBatchSize = 200

// RecordOutcome describes what one ledger write produced
type RecordOutcome struct {
	Observation *models.Observation
	Daily       *models.DailyPoints
	TotalAfter  int64               // Running total after the write, zero when no points were awarded
	Award       *models.AwardRecord // Nil when the reading scored zero
}

// ScoreDrift is one user whose running total disagreed with the daily sums
type ScoreDrift struct {
	UserID   string
	Stored   int64
	Expected int64
}

// ScoreLedger owns every write to observations, daily points, running scores
// and awards
type ScoreLedger struct {
	uowFactory UnitOfWorkFactory
	calculator *PointCalculator
	clock      clock.Clock
	loc        *time.Location
}

// NewScoreLedger creates a ledger; days are computed in loc
func NewScoreLedger(uowFactory UnitOfWorkFactory, calculator *PointCalculator, clk clock.Clock, loc *time.Location) *ScoreLedger {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScoreLedger{
		uowFactory: uowFactory,
		calculator: calculator,
		clock:      clk,
		loc:        loc,
	}
}

// Record persists a scored reading in one unit of work: the observation, the
// running total increment, the daily upsert and the award audit row
func (l *ScoreLedger) Record(ctx context.Context, user *models.User, reading models.Reading, result models.ScoreResult) (*RecordOutcome, error) {
	now := l.clock.Now().UTC()
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = now
	}
	day := models.DayOf(reading.ObservedAt, l.loc)

	outcome, err := l.record(ctx, user, reading, result, day, now)
	if err != nil {
		log.WithFields(persistenceFailureFields(user, reading, result, day, err)).
			Error("Failed to record weather observation, reading needs manual reconciliation")
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return outcome, nil
}

// persistenceFailureFields carries the whole reading so an operator can
// replay it by hand
func persistenceFailureFields(user *models.User, reading models.Reading, result models.ScoreResult, day time.Time, err error) log.Fields {
	return log.Fields{
		"user_id":       user.UserID,
		"points":        result.Points,
		"breakdown":     result.Breakdown,
		"summary":       result.Summary,
		"day":           day.Format("2006-01-02"),
		"temperature_f": reading.TemperatureF,
		"humidity":      reading.Humidity,
		"wind_mph":      reading.WindMph,
		"condition":     reading.ConditionMain,
		"description":   reading.Description,
		"observed_at":   reading.ObservedAt.UTC().Format(time.RFC3339),
		"error":         err,
	}
}

func (l *ScoreLedger) record(ctx context.Context, user *models.User, reading models.Reading, result models.ScoreResult, day, now time.Time) (*RecordOutcome, error) {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	obs := models.NewObservation(user.UserID, reading, result, now)
	if err := uow.ObservationRepository().Append(ctx, obs); err != nil {
		return nil, fmt.Errorf("failed to append observation: %w", err)
	}

	outcome := &RecordOutcome{Observation: obs}

	if result.Points > 0 {
		total, err := uow.RunningScoreRepository().Add(ctx, user.UserID, result.Points, now)
		if err != nil {
			return nil, fmt.Errorf("failed to increment running score: %w", err)
		}
		outcome.TotalAfter = total
	}

	daily, err := uow.DailyPointsRepository().Add(ctx, user.UserID, day, result.Points, result.Breakdown, result.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert daily points: %w", err)
	}
	outcome.Daily = daily

	if result.Points > 0 {
		award := &models.AwardRecord{
			UserID:          user.UserID,
			Points:          result.Points,
			Breakdown:       result.Breakdown,
			WeatherSnapshot: reading,
			TotalAfter:      outcome.TotalAfter,
			AwardedAt:       now,
		}
		if err := uow.AwardRepository().Append(ctx, award); err != nil {
			return nil, fmt.Errorf("failed to append award: %w", err)
		}
		outcome.Award = award
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return outcome, nil
}

// SetScore overrides a user's all-time total without going through scoring.
// The difference from the daily sums is kept as a manual adjustment.
func (l *ScoreLedger) SetScore(ctx context.Context, adminID, userID string, total int64) error {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	sums, err := uow.DailyPointsRepository().SumByUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to sum daily points: %w", err)
	}

	previous := int64(0)
	if score, err := uow.RunningScoreRepository().Get(ctx, userID); err != nil {
		return fmt.Errorf("failed to get running score: %w", err)
	} else if score != nil {
		previous = score.TotalPoints
	}

	adjustment := total - sums[userID]
	if err := uow.RunningScoreRepository().Override(ctx, userID, total, adjustment); err != nil {
		return fmt.Errorf("failed to override score: %w", err)
	}

	uow.EventBus().Publish(events.AdminOverrideEvent{
		AdminID: adminID,
		UserID:  userID,
		Action:  "set_score",
		Value:   strconv.FormatInt(total, 10),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"admin_id":          adminID,
		"user_id":           userID,
		"previous_total":    previous,
		"new_total":         total,
		"manual_adjustment": adjustment,
	}).Warn("Admin override: score set directly")
	return nil
}

// Reconcile re-derives each running total as the sum of daily totals plus
// the manual adjustment. When fix is true drifted rows are rewritten.
func (l *ScoreLedger) Reconcile(ctx context.Context, fix bool) ([]ScoreDrift, error) {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	sums, err := uow.DailyPointsRepository().SumByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily points: %w", err)
	}
	scores, err := uow.RunningScoreRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list running scores: %w", err)
	}

	stored := make(map[string]*models.RunningScore, len(scores))
	for _, score := range scores {
		stored[score.UserID] = score
	}

	var drifts []ScoreDrift
	for userID, sum := range sums {
		var total, adjustment int64
		if score, ok := stored[userID]; ok {
			total, adjustment = score.TotalPoints, score.ManualAdjustment
		}
		if expected := sum + adjustment; expected != total {
			drifts = append(drifts, ScoreDrift{UserID: userID, Stored: total, Expected: expected})
		}
	}
	for userID, score := range stored {
		if _, ok := sums[userID]; !ok && score.TotalPoints != score.ManualAdjustment {
			drifts = append(drifts, ScoreDrift{UserID: userID, Stored: score.TotalPoints, Expected: score.ManualAdjustment})
		}
	}

	if !fix || len(drifts) == 0 {
		return drifts, nil
	}

	for _, drift := range drifts {
		adjustment := int64(0)
		if score, ok := stored[drift.UserID]; ok {
			adjustment = score.ManualAdjustment
		}
		if err := uow.RunningScoreRepository().Override(ctx, drift.UserID, drift.Expected, adjustment); err != nil {
			return nil, fmt.Errorf("failed to fix running score for %s: %w", drift.UserID, err)
		}
		log.WithFields(log.Fields{
			"user_id":  drift.UserID,
			"stored":   drift.Stored,
			"expected": drift.Expected,
		}).Warn("Reconciled running score drift")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return drifts, nil
}

// BackfillLegacy scores observations written before scoring existed. Only
// the observation rows change; aggregates are left as they are.
func (l *ScoreLedger) BackfillLegacy(ctx context.Context) (int, error) {
	filled := 0
	for {
		n, err := l.backfillBatch(ctx)
		if err != nil {
			return filled, err
		}
		filled += n
		if n < backfillBatchSize {
			break
		}
	}
	if filled > 0 {
		log.WithFields(log.Fields{
			"observations": filled,
		}).Info("Back-filled legacy observations")
	}
	return filled, nil
}

func (l *ScoreLedger) backfillBatch(ctx context.Context) (int, error) {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	legacy, err := uow.ObservationRepository().ListUnscored(ctx, backfillBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list legacy observations: %w", err)
	}

	now := l.clock.Now().UTC()
	for _, obs := range legacy {
		result := l.calculator.CalculatePoints(obs.Reading())
		if err := uow.ObservationRepository().Backfill(ctx, obs.ID, result.Points, result.Breakdown, now); err != nil {
			return 0, fmt.Errorf("failed to back-fill observation %d: %w", obs.ID, err)
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(legacy), nil
}
