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

const userColumns = `
	user_id, display_name, postal_code, country_hint, city, region, country,
	latitude, longitude, is_active, joined_at, last_checked_at,
	added_by, added_at, reactivated_by, reactivated_at, removed_by, removed_at,
	created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row scanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.UserID,
		&user.DisplayName,
		&user.PostalCode,
		&user.CountryHint,
		&user.City,
		&user.Region,
		&user.Country,
		&user.Latitude,
		&user.Longitude,
		&user.IsActive,
		&user.JoinedAt,
		&user.LastCheckedAt,
		&user.AddedBy,
		&user.AddedAt,
		&user.ReactivatedBy,
		&user.ReactivatedAt,
		&user.RemovedBy,
		&user.RemovedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by their platform id
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM weather_users WHERE user_id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return user, nil
}

// Create inserts a new participant
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO weather_users (
			user_id, display_name, postal_code, country_hint, city, region, country,
			latitude, longitude, is_active, joined_at, last_checked_at,
			added_by, added_at, reactivated_by, reactivated_at, removed_by, removed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.UserID,
		user.DisplayName,
		user.PostalCode,
		user.CountryHint,
		user.City,
		user.Region,
		user.Country,
		user.Latitude,
		user.Longitude,
		user.IsActive,
		user.JoinedAt,
		user.LastCheckedAt,
		user.AddedBy,
		user.AddedAt,
		user.ReactivatedBy,
		user.ReactivatedAt,
		user.RemovedBy,
		user.RemovedAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.UserID, err)
	}
	return nil
}

// Update persists every mutable column of an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE weather_users SET
			display_name = $2,
			postal_code = $3,
			country_hint = $4,
			city = $5,
			region = $6,
			country = $7,
			latitude = $8,
			longitude = $9,
			is_active = $10,
			joined_at = $11,
			last_checked_at = $12,
			added_by = $13,
			added_at = $14,
			reactivated_by = $15,
			reactivated_at = $16,
			removed_by = $17,
			removed_at = $18
		WHERE user_id = $1
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.UserID,
		user.DisplayName,
		user.PostalCode,
		user.CountryHint,
		user.City,
		user.Region,
		user.Country,
		user.Latitude,
		user.Longitude,
		user.IsActive,
		user.JoinedAt,
		user.LastCheckedAt,
		user.AddedBy,
		user.AddedAt,
		user.ReactivatedBy,
		user.ReactivatedAt,
		user.RemovedBy,
		user.RemovedAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("user %s not found", user.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.UserID, err)
	}
	return nil
}

// ListActive returns active users ordered by join time
func (r *UserRepository) ListActive(ctx context.Context) ([]*models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM weather_users WHERE is_active ORDER BY joined_at, user_id`)
}

// List returns users, including inactive ones when requested
func (r *UserRepository) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	if !includeInactive {
		return r.ListActive(ctx)
	}
	return r.list(ctx, `SELECT `+userColumns+` FROM weather_users ORDER BY joined_at, user_id`)
}

func (r *UserRepository) list(ctx context.Context, query string) ([]*models.User, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// TouchLastChecked records a completed weather check
func (r *UserRepository) TouchLastChecked(ctx context.Context, userID string, at time.Time) error {
	result, err := r.q.Exec(ctx, `UPDATE weather_users SET last_checked_at = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("failed to touch user %s: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}
