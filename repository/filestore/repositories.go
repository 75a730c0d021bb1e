package filestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"weatherbot/models"
)

type userRepository struct {
	st  *state
	now func() time.Time
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, ok := r.st.Users[userID]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if _, exists := r.st.Users[user.UserID]; exists {
		return fmt.Errorf("user %s already exists", user.UserID)
	}
	now := r.now().UTC()
	if user.JoinedAt.IsZero() {
		user.JoinedAt = now
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	r.st.Users[user.UserID] = copyUser(user)
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	existing, ok := r.st.Users[user.UserID]
	if !ok {
		return fmt.Errorf("user %s not found", user.UserID)
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = r.now().UTC()
	r.st.Users[user.UserID] = copyUser(user)
	return nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	for _, user := range r.st.Users {
		if user.IsActive {
			users = append(users, copyUser(user))
		}
	}
	sortUsers(users)
	return users, nil
}

func (r *userRepository) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	if !includeInactive {
		return r.ListActive(ctx)
	}
	users := make([]*models.User, 0, len(r.st.Users))
	for _, user := range r.st.Users {
		users = append(users, copyUser(user))
	}
	sortUsers(users)
	return users, nil
}

func (r *userRepository) TouchLastChecked(ctx context.Context, userID string, at time.Time) error {
	user, ok := r.st.Users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	at = at.UTC()
	user.LastCheckedAt = &at
	return nil
}

func requireUser(st *state, userID string) error {
	if _, ok := st.Users[userID]; !ok {
		return fmt.Errorf("user %s does not exist", userID)
	}
	return nil
}

type observationRepository struct {
	st  *state
	now func() time.Time
}

func (r *observationRepository) Append(ctx context.Context, obs *models.Observation) error {
	if err := requireUser(r.st, obs.UserID); err != nil {
		return err
	}
	obs.ID = r.st.NextObservationID
	obs.CreatedAt = r.now().UTC()
	r.st.NextObservationID++

	c := *obs
	r.st.Observations = append(r.st.Observations, &c)
	return nil
}

func (r *observationRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.Observation, error) {
	var out []*models.Observation
	for _, obs := range r.st.Observations {
		if obs.UserID == userID && !obs.ObservedAt.Before(since) {
			c := *obs
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.After(out[j].ObservedAt)
	})
	return out, nil
}

func (r *observationRepository) ListUnscored(ctx context.Context, limit int) ([]*models.Observation, error) {
	var out []*models.Observation
	for _, obs := range r.st.Observations {
		if obs.CalculatedAt != nil {
			continue
		}
		c := *obs
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *observationRepository) Backfill(ctx context.Context, id int64, points int, breakdown models.Breakdown, calculatedAt time.Time) error {
	for _, obs := range r.st.Observations {
		if obs.ID != id {
			continue
		}
		if obs.CalculatedAt != nil {
			return fmt.Errorf("observation %d is already scored", id)
		}
		at := calculatedAt.UTC()
		p := points
		obs.Points = &p
		obs.Breakdown = breakdown
		obs.CalculatedAt = &at
		obs.Backfilled = true
		return nil
	}
	return fmt.Errorf("observation %d not found", id)
}

type dailyPointsRepository struct {
	st  *state
	now func() time.Time
}

func (r *dailyPointsRepository) Add(ctx context.Context, userID string, day time.Time, points int, breakdown models.Breakdown, summary string) (*models.DailyPoints, error) {
	if err := requireUser(r.st, userID); err != nil {
		return nil, err
	}

	key := dailyKey(userID, day)
	row, ok := r.st.Daily[key]
	if !ok {
		row = &models.DailyPoints{UserID: userID, Day: day, Breakdown: models.Breakdown{}}
		r.st.Daily[key] = row
	}
	row.TotalPoints += int64(points)
	row.Breakdown = row.Breakdown.Merge(breakdown)
	row.WeatherSummary = summary
	row.ObservationCount++
	row.UpdatedAt = r.now().UTC()

	c := *row
	return &c, nil
}

func (r *dailyPointsRepository) ListSince(ctx context.Context, since time.Time) ([]*models.DailyPoints, error) {
	var out []*models.DailyPoints
	for _, row := range r.st.Daily {
		if !row.Day.Before(since) {
			c := *row
			out = append(out, &c)
		}
	}
	sortDaily(out)
	return out, nil
}

func (r *dailyPointsRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.DailyPoints, error) {
	var out []*models.DailyPoints
	for _, row := range r.st.Daily {
		if row.UserID == userID && !row.Day.Before(since) {
			c := *row
			out = append(out, &c)
		}
	}
	sortDaily(out)
	return out, nil
}

func (r *dailyPointsRepository) SumByUser(ctx context.Context) (map[string]int64, error) {
	sums := map[string]int64{}
	for _, row := range r.st.Daily {
		sums[row.UserID] += row.TotalPoints
	}
	return sums, nil
}

func sortDaily(rows []*models.DailyPoints) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Day.Equal(rows[j].Day) {
			return rows[i].Day.Before(rows[j].Day)
		}
		return rows[i].UserID < rows[j].UserID
	})
}

type runningScoreRepository struct {
	st  *state
	now func() time.Time
}

func (r *runningScoreRepository) Add(ctx context.Context, userID string, points int, at time.Time) (int64, error) {
	if err := requireUser(r.st, userID); err != nil {
		return 0, err
	}
	score, ok := r.st.Scores[userID]
	if !ok {
		score = &models.RunningScore{UserID: userID}
		r.st.Scores[userID] = score
	}
	at = at.UTC()
	score.TotalPoints += int64(points)
	score.LastAwardAt = &at
	score.UpdatedAt = r.now().UTC()
	return score.TotalPoints, nil
}

func (r *runningScoreRepository) Get(ctx context.Context, userID string) (*models.RunningScore, error) {
	score, ok := r.st.Scores[userID]
	if !ok {
		return nil, nil
	}
	c := *score
	return &c, nil
}

func (r *runningScoreRepository) List(ctx context.Context) ([]*models.RunningScore, error) {
	out := make([]*models.RunningScore, 0, len(r.st.Scores))
	for _, score := range r.st.Scores {
		c := *score
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *runningScoreRepository) Override(ctx context.Context, userID string, total, manualAdjustment int64) error {
	if err := requireUser(r.st, userID); err != nil {
		return err
	}
	score, ok := r.st.Scores[userID]
	if !ok {
		score = &models.RunningScore{UserID: userID}
		r.st.Scores[userID] = score
	}
	score.TotalPoints = total
	score.ManualAdjustment = manualAdjustment
	score.UpdatedAt = r.now().UTC()
	return nil
}

type awardRepository struct {
	st        *state
	maxAwards int
}

func (r *awardRepository) Append(ctx context.Context, award *models.AwardRecord) error {
	if err := requireUser(r.st, award.UserID); err != nil {
		return err
	}
	award.ID = r.st.NextAwardID
	r.st.NextAwardID++

	c := *award
	r.st.Awards = append(r.st.Awards, &c)

	// Retention is capped here; the relational store keeps every award
	if r.maxAwards > 0 && len(r.st.Awards) > r.maxAwards {
		r.st.Awards = append([]*models.AwardRecord(nil), r.st.Awards[len(r.st.Awards)-r.maxAwards:]...)
	}
	return nil
}

func (r *awardRepository) LastForUser(ctx context.Context, userID string) (*models.AwardRecord, error) {
	for i := len(r.st.Awards) - 1; i >= 0; i-- {
		if r.st.Awards[i].UserID == userID {
			c := *r.st.Awards[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (r *awardRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AwardRecord, error) {
	var out []*models.AwardRecord
	for i := len(r.st.Awards) - 1; i >= 0; i-- {
		if r.st.Awards[i].UserID != userID {
			continue
		}
		c := *r.st.Awards[i]
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
