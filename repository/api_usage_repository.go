package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weatherbot/database"

	"github.com/jackc/pgx/v5"
)

// ApiUsageRepository counts provider calls per day. It always runs on the
// pool so a count survives a rolled back unit of work.
type ApiUsageRepository struct {
	q queryable
}

// NewApiUsageRepository creates a new usage repository
func NewApiUsageRepository(db *database.DB) *ApiUsageRepository {
	return &ApiUsageRepository{q: db.Pool}
}

// Get returns the call count for the day
func (r *ApiUsageRepository) Get(ctx context.Context, day time.Time) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT call_count FROM weather_api_usage WHERE usage_date = $1`, day).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get api usage for %s: %w", day.Format("2006-01-02"), err)
	}
	return count, nil
}

// Increment atomically adds one call and returns the new count
func (r *ApiUsageRepository) Increment(ctx context.Context, day time.Time) (int, error) {
	query := `
		INSERT INTO weather_api_usage (usage_date, call_count, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (usage_date) DO UPDATE SET
			call_count = weather_api_usage.call_count + 1,
			updated_at = NOW()
		RETURNING call_count
	`

	var count int
	if err := r.q.QueryRow(ctx, query, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment api usage for %s: %w", day.Format("2006-01-02"), err)
	}
	return count, nil
}
