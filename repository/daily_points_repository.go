package repository

import (
	"context"
	"fmt"
	"time"

	"weatherbot/database"
	"weatherbot/models"
)

const dailyPointsColumns = `user_id, day, total_points, breakdown, weather_summary, observation_count, updated_at`

// DailyPointsRepository implements the DailyPointsRepository interface
type DailyPointsRepository struct {
	q queryable
}

// NewDailyPointsRepository creates a new daily points repository
func NewDailyPointsRepository(db *database.DB) *DailyPointsRepository {
	return &DailyPointsRepository{q: db.Pool}
}

func newDailyPointsRepositoryWithTx(tx queryable) *DailyPointsRepository {
	return &DailyPointsRepository{q: tx}
}

func scanDailyPoints(row scanner) (*models.DailyPoints, error) {
	var dp models.DailyPoints
	var breakdown []byte
	err := row.Scan(
		&dp.UserID,
		&dp.Day,
		&dp.TotalPoints,
		&breakdown,
		&dp.WeatherSummary,
		&dp.ObservationCount,
		&dp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dp.Breakdown, err = decodeBreakdown(breakdown); err != nil {
		return nil, err
	}
	if dp.Breakdown == nil {
		dp.Breakdown = models.Breakdown{}
	}
	return &dp, nil
}

// Add upserts the (user, day) row, summing totals and merging breakdowns
// reason by reason
func (r *DailyPointsRepository) Add(ctx context.Context, userID string, day time.Time, points int, breakdown models.Breakdown, summary string) (*models.DailyPoints, error) {
	if breakdown == nil {
		breakdown = models.Breakdown{}
	}
	encoded, err := encodeBreakdown(breakdown)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO daily_weather_points (user_id, day, total_points, breakdown, weather_summary, observation_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW())
		ON CONFLICT (user_id, day) DO UPDATE SET
			total_points = daily_weather_points.total_points + EXCLUDED.total_points,
			breakdown = (
				SELECT COALESCE(jsonb_object_agg(merged.key, merged.total), '{}'::jsonb)
				FROM (
					SELECT key, SUM(value::int) AS total
					FROM (
						SELECT key, value FROM jsonb_each_text(daily_weather_points.breakdown)
						UNION ALL
						SELECT key, value FROM jsonb_each_text(EXCLUDED.breakdown)
					) parts
					GROUP BY key
				) merged
			),
			weather_summary = EXCLUDED.weather_summary,
			observation_count = daily_weather_points.observation_count + 1,
			updated_at = NOW()
		RETURNING ` + dailyPointsColumns

	dp, err := scanDailyPoints(r.q.QueryRow(ctx, query, userID, day, points, encoded, summary))
	if err != nil {
		return nil, fmt.Errorf("failed to add daily points for user %s: %w", userID, err)
	}
	return dp, nil
}

// ListSince returns every row with day >= since
func (r *DailyPointsRepository) ListSince(ctx context.Context, since time.Time) ([]*models.DailyPoints, error) {
	query := `SELECT ` + dailyPointsColumns + `
		FROM daily_weather_points
		WHERE day >= $1
		ORDER BY day, user_id`
	return r.list(ctx, query, since)
}

// ListByUserSince returns a user's rows with day >= since
func (r *DailyPointsRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.DailyPoints, error) {
	query := `SELECT ` + dailyPointsColumns + `
		FROM daily_weather_points
		WHERE user_id = $1 AND day >= $2
		ORDER BY day`
	return r.list(ctx, query, userID, since)
}

func (r *DailyPointsRepository) list(ctx context.Context, query string, args ...any) ([]*models.DailyPoints, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily points: %w", err)
	}
	defer rows.Close()

	var out []*models.DailyPoints
	for rows.Next() {
		dp, err := scanDailyPoints(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily points: %w", err)
		}
		out = append(out, dp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily points: %w", err)
	}
	return out, nil
}

// SumByUser returns each user's sum of daily totals
func (r *DailyPointsRepository) SumByUser(ctx context.Context) (map[string]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT user_id, SUM(total_points)::bigint FROM daily_weather_points GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily points: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]int64)
	for rows.Next() {
		var userID string
		var total int64
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan daily sum: %w", err)
		}
		sums[userID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily sums: %w", err)
	}
	return sums, nil
}
