package repository

import (
	"context"
	"fmt"
	"time"

	"weatherbot/database"
	"weatherbot/models"
)

const observationColumns = `
	id, user_id, observed_at, temperature_f, humidity, wind_mph,
	condition_code, condition_main, description, points, breakdown,
	calculated_at, backfilled, created_at`

// ObservationRepository implements the ObservationRepository interface
type ObservationRepository struct {
	q queryable
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *database.DB) *ObservationRepository {
	return &ObservationRepository{q: db.Pool}
}

func newObservationRepositoryWithTx(tx queryable) *ObservationRepository {
	return &ObservationRepository{q: tx}
}

func scanObservation(row scanner) (*models.Observation, error) {
	var obs models.Observation
	var breakdown []byte
	err := row.Scan(
		&obs.ID,
		&obs.UserID,
		&obs.ObservedAt,
		&obs.TemperatureF,
		&obs.Humidity,
		&obs.WindMph,
		&obs.ConditionCode,
		&obs.ConditionMain,
		&obs.Description,
		&obs.Points,
		&breakdown,
		&obs.CalculatedAt,
		&obs.Backfilled,
		&obs.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if obs.Breakdown, err = decodeBreakdown(breakdown); err != nil {
		return nil, err
	}
	return &obs, nil
}

// Append writes a new observation and sets its ID
func (r *ObservationRepository) Append(ctx context.Context, obs *models.Observation) error {
	breakdown, err := encodeBreakdown(obs.Breakdown)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO weather_history (
			user_id, observed_at, temperature_f, humidity, wind_mph,
			condition_code, condition_main, description, points, breakdown,
			calculated_at, backfilled
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		obs.UserID,
		obs.ObservedAt,
		obs.TemperatureF,
		obs.Humidity,
		obs.WindMph,
		obs.ConditionCode,
		obs.ConditionMain,
		obs.Description,
		obs.Points,
		breakdown,
		obs.CalculatedAt,
		obs.Backfilled,
	).Scan(&obs.ID, &obs.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append observation for user %s: %w", obs.UserID, err)
	}
	return nil
}

// ListByUserSince returns a user's observations newest first
func (r *ObservationRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.Observation, error) {
	query := `SELECT ` + observationColumns + `
		FROM weather_history
		WHERE user_id = $1 AND observed_at >= $2
		ORDER BY observed_at DESC, id DESC`
	return r.list(ctx, query, userID, since)
}

// ListUnscored returns legacy rows without calculated_at, oldest first
func (r *ObservationRepository) ListUnscored(ctx context.Context, limit int) ([]*models.Observation, error) {
	query := `SELECT ` + observationColumns + `
		FROM weather_history
		WHERE calculated_at IS NULL
		ORDER BY id
		LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *ObservationRepository) list(ctx context.Context, query string, args ...any) ([]*models.Observation, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}
	return out, nil
}

// Backfill scores a legacy row. Rows that already carry points are left alone.
func (r *ObservationRepository) Backfill(ctx context.Context, id int64, points int, breakdown models.Breakdown, calculatedAt time.Time) error {
	encoded, err := encodeBreakdown(breakdown)
	if err != nil {
		return err
	}

	query := `
		UPDATE weather_history
		SET points = $2, breakdown = $3, calculated_at = $4, backfilled = TRUE
		WHERE id = $1 AND calculated_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, id, points, encoded, calculatedAt)
	if err != nil {
		return fmt.Errorf("failed to backfill observation %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("observation %d not found or already scored", id)
	}
	return nil
}
