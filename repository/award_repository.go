package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"weatherbot/database"
	"weatherbot/models"

	"github.com/jackc/pgx/v5"
)

const awardColumns = `id, user_id, points, breakdown, weather_snapshot, total_after, awarded_at`

// AwardRepository implements the AwardRepository interface
type AwardRepository struct {
	q queryable
}

// NewAwardRepository creates a new award repository
func NewAwardRepository(db *database.DB) *AwardRepository {
	return &AwardRepository{q: db.Pool}
}

func newAwardRepositoryWithTx(tx queryable) *AwardRepository {
	return &AwardRepository{q: tx}
}

func scanAward(row scanner) (*models.AwardRecord, error) {
	var award models.AwardRecord
	var breakdown, snapshot []byte
	err := row.Scan(
		&award.ID,
		&award.UserID,
		&award.Points,
		&breakdown,
		&snapshot,
		&award.TotalAfter,
		&award.AwardedAt,
	)
	if err != nil {
		return nil, err
	}
	if award.Breakdown, err = decodeBreakdown(breakdown); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &award.WeatherSnapshot); err != nil {
		return nil, fmt.Errorf("failed to decode weather snapshot: %w", err)
	}
	return &award, nil
}

// Append writes a new award and sets its ID
func (r *AwardRepository) Append(ctx context.Context, award *models.AwardRecord) error {
	breakdown := award.Breakdown
	if breakdown == nil {
		breakdown = models.Breakdown{}
	}
	encoded, err := encodeBreakdown(breakdown)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(award.WeatherSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode weather snapshot: %w", err)
	}

	query := `
		INSERT INTO shitty_weather_awards (user_id, points, breakdown, weather_snapshot, total_after, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err = r.q.QueryRow(ctx, query,
		award.UserID,
		award.Points,
		encoded,
		snapshot,
		award.TotalAfter,
		award.AwardedAt,
	).Scan(&award.ID)
	if err != nil {
		return fmt.Errorf("failed to append award for user %s: %w", award.UserID, err)
	}
	return nil
}

// LastForUser returns the user's latest award, or nil
func (r *AwardRepository) LastForUser(ctx context.Context, userID string) (*models.AwardRecord, error) {
	query := `SELECT ` + awardColumns + `
		FROM shitty_weather_awards
		WHERE user_id = $1
		ORDER BY awarded_at DESC, id DESC
		LIMIT 1`

	award, err := scanAward(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last award for user %s: %w", userID, err)
	}
	return award, nil
}

// ListByUser returns the user's latest awards, newest first. A limit of
// zero returns every award.
func (r *AwardRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AwardRecord, error) {
	query := `SELECT ` + awardColumns + `
		FROM shitty_weather_awards
		WHERE user_id = $1
		ORDER BY awarded_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards for user %s: %w", userID, err)
	}
	defer rows.Close()

	var awards []*models.AwardRecord
	for rows.Next() {
		award, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		awards = append(awards, award)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating awards: %w", err)
	}
	return awards, nil
}
