package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"weatherbot/clock"
	"weatherbot/models"
)

const (
	DefaultLeaderboardLimit = 5
	BestDayWindowDays       = 30
	WeeklyWindowDays        = 7
)

// LeaderboardService answers ranking and history queries. It never writes.
type LeaderboardService struct {
	uowFactory UnitOfWorkFactory
	clock      clock.Clock
	loc        *time.Location
}

// NewLeaderboardService creates a leaderboard service; windows are computed
// in calendar days of loc
func NewLeaderboardService(uowFactory UnitOfWorkFactory, clk clock.Clock, loc *time.Location) *LeaderboardService {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LeaderboardService{uowFactory: uowFactory, clock: clk, loc: loc}
}

// Leaderboard returns one ranked view. With all unset only the top limit rows
// are returned (5 when limit is not positive).
func (s *LeaderboardService) Leaderboard(ctx context.Context, kind models.LeaderboardKind, limit int, all bool) (*models.Leaderboard, error) {
	board, err := s.rank(ctx, kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if !all && len(board.Entries) > limit {
		board.Entries = board.Entries[:limit]
	}
	return board, nil
}

// PersonalRank finds a user's position in a view, even outside the top rows
func (s *LeaderboardService) PersonalRank(ctx context.Context, userID string, kind models.LeaderboardKind) (*models.RankInfo, error) {
	board, err := s.rank(ctx, kind)
	if err != nil {
		return nil, err
	}

	info := &models.RankInfo{Kind: kind, UserID: userID, NoActivity: true, Of: board.TotalRanked}
	for i := range board.Entries {
		if board.Entries[i].UserID == userID {
			entry := board.Entries[i]
			info.NoActivity = false
			info.Rank = entry.Rank
			info.Entry = &entry
			break
		}
	}
	return info, nil
}

// DayStandings ranks active users by their total for a single calendar day
func (s *LeaderboardService) DayStandings(ctx context.Context, day time.Time) (*models.Leaderboard, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	users, rows, err := s.load(ctx, day)
	if err != nil {
		return nil, err
	}

	var entries []models.LeaderboardEntry
	for _, row := range rows {
		user, ok := users[row.UserID]
		if !ok || !row.Day.Equal(day) {
			continue
		}
		d := row.Day
		entries = append(entries, models.LeaderboardEntry{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			Region:      user.DisplayLocation(),
			Points:      row.TotalPoints,
			ActiveDays:  1,
			BestDay:     &d,
		})
	}
	sortByPoints(entries)
	return newBoard(models.LeaderboardBestDay, entries, day, day), nil
}

// TopPointSources aggregates a user's breakdowns over the last days
func (s *LeaderboardService) TopPointSources(ctx context.Context, userID string, days int) ([]models.ReasonPoints, error) {
	if days <= 0 {
		days = BestDayWindowDays
	}
	since := s.windowStart(days)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rows, err := uow.DailyPointsRepository().ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily points: %w", err)
	}

	total := models.Breakdown{}
	for _, row := range rows {
		total = total.Merge(row.Breakdown)
	}
	return total.Sorted(), nil
}

// History returns a user's observations from the last days, newest first
func (s *LeaderboardService) History(ctx context.Context, userID string, days int) ([]*models.Observation, error) {
	if days <= 0 {
		days = WeeklyWindowDays
	}
	since := s.clock.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	observations, err := uow.ObservationRepository().ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	return observations, nil
}

// LastAward returns the user's latest award, or nil when they have none
func (s *LeaderboardService) LastAward(ctx context.Context, userID string) (*models.AwardRecord, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	award, err := uow.AwardRepository().LastForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last award: %w", err)
	}
	return award, nil
}

// DefaultAwardHistoryLimit bounds AwardHistory when no limit is given
const DefaultAwardHistoryLimit = 10

// AwardHistory returns a user's latest awards, newest first
func (s *LeaderboardService) AwardHistory(ctx context.Context, userID string, limit int) ([]*models.AwardRecord, error) {
	if limit <= 0 {
		limit = DefaultAwardHistoryLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	awards, err := uow.AwardRepository().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	return awards, nil
}

func (s *LeaderboardService) rank(ctx context.Context, kind models.LeaderboardKind) (*models.Leaderboard, error) {
	switch kind {
	case models.LeaderboardAllTime, "":
		return s.allTime(ctx)
	case models.LeaderboardBestDay:
		return s.bestDay(ctx)
	case models.LeaderboardWeekly:
		return s.weekly(ctx)
	}
	return nil, fmt.Errorf("unknown leaderboard kind %q", kind)
}

func (s *LeaderboardService) allTime(ctx context.Context) (*models.Leaderboard, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users, err := activeUsers(ctx, uow)
	if err != nil {
		return nil, err
	}
	scores, err := uow.RunningScoreRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list running scores: %w", err)
	}
	// Users whose readings all scored zero have daily rows but no score row
	observed, err := uow.DailyPointsRepository().SumByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily points: %w", err)
	}

	var entries []models.LeaderboardEntry
	ranked := make(map[string]bool, len(scores))
	for _, score := range scores {
		user, ok := users[score.UserID]
		if !ok {
			continue
		}
		ranked[user.UserID] = true
		entries = append(entries, models.LeaderboardEntry{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			Region:      user.DisplayLocation(),
			Points:      score.TotalPoints,
			LastAwardAt: score.LastAwardAt,
		})
	}
	for userID := range observed {
		user, ok := users[userID]
		if !ok || ranked[userID] {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			Region:      user.DisplayLocation(),
		})
	}
	sortByPoints(entries)

	board := newBoard(models.LeaderboardAllTime, entries, time.Time{}, time.Time{})
	board.WindowStart, board.WindowEnd = nil, nil
	return board, nil
}

func (s *LeaderboardService) bestDay(ctx context.Context) (*models.Leaderboard, error) {
	since := s.windowStart(BestDayWindowDays)
	users, rows, err := s.load(ctx, since)
	if err != nil {
		return nil, err
	}

	best := map[string]*models.DailyPoints{}
	for _, row := range rows {
		if _, ok := users[row.UserID]; !ok {
			continue
		}
		current, seen := best[row.UserID]
		// Earlier day wins a tie so the record is the first time it was reached
		if !seen || row.TotalPoints > current.TotalPoints ||
			(row.TotalPoints == current.TotalPoints && row.Day.Before(current.Day)) {
			best[row.UserID] = row
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(best))
	for userID, row := range best {
		user := users[userID]
		day := row.Day
		entries = append(entries, models.LeaderboardEntry{
			UserID:      userID,
			DisplayName: user.DisplayName,
			Region:      user.DisplayLocation(),
			Points:      row.TotalPoints,
			BestDay:     &day,
		})
	}
	sortByPoints(entries)
	return newBoard(models.LeaderboardBestDay, entries, since, s.today()), nil
}

func (s *LeaderboardService) weekly(ctx context.Context) (*models.Leaderboard, error) {
	since := s.windowStart(WeeklyWindowDays)
	users, rows, err := s.load(ctx, since)
	if err != nil {
		return nil, err
	}

	type accumulator struct {
		total int64
		days  int
	}
	acc := map[string]*accumulator{}
	for _, row := range rows {
		if _, ok := users[row.UserID]; !ok {
			continue
		}
		a, ok := acc[row.UserID]
		if !ok {
			a = &accumulator{}
			acc[row.UserID] = a
		}
		a.total += row.TotalPoints
		a.days++
	}

	entries := make([]models.LeaderboardEntry, 0, len(acc))
	for userID, a := range acc {
		user := users[userID]
		entries = append(entries, models.LeaderboardEntry{
			UserID:      userID,
			DisplayName: user.DisplayName,
			Region:      user.DisplayLocation(),
			Points:      a.total,
			Average:     float64(a.total) / float64(a.days),
			ActiveDays:  a.days,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Average != entries[j].Average {
			return entries[i].Average > entries[j].Average
		}
		if entries[i].ActiveDays != entries[j].ActiveDays {
			return entries[i].ActiveDays > entries[j].ActiveDays
		}
		return lessByName(entries[i], entries[j])
	})
	return newBoard(models.LeaderboardWeekly, entries, since, s.today()), nil
}

// load reads active users and daily rows since a day in one unit of work
func (s *LeaderboardService) load(ctx context.Context, since time.Time) (map[string]*models.User, []*models.DailyPoints, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users, err := activeUsers(ctx, uow)
	if err != nil {
		return nil, nil, err
	}
	rows, err := uow.DailyPointsRepository().ListSince(ctx, since)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list daily points: %w", err)
	}
	return users, rows, nil
}

func activeUsers(ctx context.Context, uow UnitOfWork) (map[string]*models.User, error) {
	users, err := uow.UserRepository().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	byID := make(map[string]*models.User, len(users))
	for _, user := range users {
		byID[user.UserID] = user
	}
	return byID, nil
}

func (s *LeaderboardService) today() time.Time {
	return models.DayOf(s.clock.Now(), s.loc)
}

// windowStart returns the first day of a window of n calendar days ending today
func (s *LeaderboardService) windowStart(days int) time.Time {
	return s.today().AddDate(0, 0, -(days - 1))
}

func newBoard(kind models.LeaderboardKind, entries []models.LeaderboardEntry, start, end time.Time) *models.Leaderboard {
	for i := range entries {
		entries[i].Rank = i + 1
	}
	board := &models.Leaderboard{
		Kind:        kind,
		Status:      models.LeaderboardStatusOK,
		WindowStart: &start,
		WindowEnd:   &end,
		Entries:     entries,
		TotalRanked: len(entries),
	}
	if len(entries) == 0 {
		board.Status = models.LeaderboardStatusNoData
		board.Entries = []models.LeaderboardEntry{}
	}
	return board
}

func sortByPoints(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return lessByName(entries[i], entries[j])
	})
}

func lessByName(a, b models.LeaderboardEntry) bool {
	an, bn := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
	if an != bn {
		return an < bn
	}
	return a.UserID < b.UserID
}
