package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weatherbot/database"
	"weatherbot/models"

	"github.com/jackc/pgx/v5"
)

// RunningScoreRepository implements the RunningScoreRepository interface
type RunningScoreRepository struct {
	q queryable
}

// NewRunningScoreRepository creates a new running score repository
func NewRunningScoreRepository(db *database.DB) *RunningScoreRepository {
	return &RunningScoreRepository{q: db.Pool}
}

func newRunningScoreRepositoryWithTx(tx queryable) *RunningScoreRepository {
	return &RunningScoreRepository{q: tx}
}

// Add increments the user's total in a single upsert and returns the new total
func (r *RunningScoreRepository) Add(ctx context.Context, userID string, points int, at time.Time) (int64, error) {
	query := `
		INSERT INTO shitty_weather_scores (user_id, total_points, last_award_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = shitty_weather_scores.total_points + EXCLUDED.total_points,
			last_award_at = EXCLUDED.last_award_at,
			updated_at = NOW()
		RETURNING total_points
	`

	var total int64
	if err := r.q.QueryRow(ctx, query, userID, points, at).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to add %d points for user %s: %w", points, userID, err)
	}
	return total, nil
}

// Get returns the user's score, or nil when none exists
func (r *RunningScoreRepository) Get(ctx context.Context, userID string) (*models.RunningScore, error) {
	query := `
		SELECT user_id, total_points, manual_adjustment, last_award_at, updated_at
		FROM shitty_weather_scores
		WHERE user_id = $1
	`

	var score models.RunningScore
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&score.UserID,
		&score.TotalPoints,
		&score.ManualAdjustment,
		&score.LastAwardAt,
		&score.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score for user %s: %w", userID, err)
	}
	return &score, nil
}

// List returns every score row
func (r *RunningScoreRepository) List(ctx context.Context) ([]*models.RunningScore, error) {
	rows, err := r.q.Query(ctx, `
		SELECT user_id, total_points, manual_adjustment, last_award_at, updated_at
		FROM shitty_weather_scores
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []*models.RunningScore
	for rows.Next() {
		var score models.RunningScore
		if err := rows.Scan(
			&score.UserID,
			&score.TotalPoints,
			&score.ManualAdjustment,
			&score.LastAwardAt,
			&score.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, &score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return scores, nil
}

// Override sets the total and manual adjustment directly
func (r *RunningScoreRepository) Override(ctx context.Context, userID string, total, manualAdjustment int64) error {
	query := `
		INSERT INTO shitty_weather_scores (user_id, total_points, manual_adjustment, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			manual_adjustment = EXCLUDED.manual_adjustment,
			updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, userID, total, manualAdjustment); err != nil {
		return fmt.Errorf("failed to override score for user %s: %w", userID, err)
	}
	return nil
}
