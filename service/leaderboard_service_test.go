package service_test

import (
	"context"
	"testing"
	"time"

	"weatherbot/models"
	"weatherbot/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboard_NoData(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC))
	f.addUser(t, testutil.CreateTestUser("u1", "Alice"))

	for _, kind := range []models.LeaderboardKind{models.LeaderboardAllTime, models.LeaderboardBestDay, models.LeaderboardWeekly} {
		board, err := f.boards.Leaderboard(ctx, kind, 0, false)
		require.NoError(t, err)
		assert.Equal(t, models.LeaderboardStatusNoData, board.Status, string(kind))
		assert.NotNil(t, board.Entries)
		assert.Empty(t, board.Entries)
	}

	_, err := f.boards.Leaderboard(ctx, models.LeaderboardKind("monthly"), 0, false)
	assert.Error(t, err)
}

func TestLeaderboard_AllTimeOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	f := newLedgerFixture(t, now)

	points := map[string]int{"a": 3, "b": 9, "c": 3, "d": 1, "e": 5, "f": 2, "g": 8}
	names := map[string]string{"a": "zed", "b": "Bob", "c": "Amy", "d": "Dan", "e": "Eve", "f": "Fay", "g": "Gus"}
	for id, p := range points {
		user := f.addUser(t, testutil.CreateTestUser(id, names[id]))
		f.record(t, user, p, now)
	}

	board, err := f.boards.Leaderboard(ctx, models.LeaderboardAllTime, 0, false)
	require.NoError(t, err)
	require.Len(t, board.Entries, 5)
	assert.Equal(t, 7, board.TotalRanked)

	var order []string
	for i, entry := range board.Entries {
		assert.Equal(t, i+1, entry.Rank)
		order = append(order, entry.UserID)
	}
	// Ties on points fall back to case-insensitive name order
	assert.Equal(t, []string{"b", "g", "e", "c", "a"}, order)

	all, err := f.boards.Leaderboard(ctx, models.LeaderboardAllTime, 0, true)
	require.NoError(t, err)
	assert.Len(t, all.Entries, 7)
}

func TestLeaderboard_InactiveUsersHidden(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	f := newLedgerFixture(t, now)

	alice := f.addUser(t, testutil.CreateTestUser("a", "Alice"))
	bob := f.addUser(t, testutil.CreateTestUser("b", "Bob"))
	f.record(t, alice, 2, now)
	f.record(t, bob, 9, now)

	uow := f.store.UnitOfWorkFactory().Create()
	require.NoError(t, uow.Begin(ctx))
	bob.Deactivate(nil, now)
	require.NoError(t, uow.UserRepository().Update(ctx, bob))
	require.NoError(t, uow.Commit())

	for _, kind := range []models.LeaderboardKind{models.LeaderboardAllTime, models.LeaderboardBestDay, models.LeaderboardWeekly} {
		board, err := f.boards.Leaderboard(ctx, kind, 0, true)
		require.NoError(t, err)
		require.Len(t, board.Entries, 1, string(kind))
		assert.Equal(t, "a", board.Entries[0].UserID)
	}
}

func TestLeaderboard_BestDayWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)
	f := newLedgerFixture(t, now)

	alice := f.addUser(t, testutil.CreateTestUser("a", "Alice"))
	bob := f.addUser(t, testutil.CreateTestUser("b", "Bob"))
	carol := f.addUser(t, testutil.CreateTestUser("c", "Carol"))

	// Thirty days ago is just outside the window
	f.record(t, alice, 20, now.AddDate(0, 0, -30))
	f.record(t, alice, 4, now.AddDate(0, 0, -29))
	f.record(t, alice, 3, now.AddDate(0, 0, -29))
	f.record(t, alice, 6, now.AddDate(0, 0, -5))
	f.record(t, bob, 8, now)
	f.record(t, carol, 8, now.AddDate(0, 0, -1))

	board, err := f.boards.Leaderboard(ctx, models.LeaderboardBestDay, 0, true)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *board.WindowStart)

	for i := 1; i < len(board.Entries); i++ {
		assert.GreaterOrEqual(t, board.Entries[i-1].Points, board.Entries[i].Points)
	}
	assert.Equal(t, "b", board.Entries[0].UserID)
	assert.Equal(t, "c", board.Entries[1].UserID)
	assert.Equal(t, "a", board.Entries[2].UserID)
	assert.Equal(t, int64(7), board.Entries[2].Points)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *board.Entries[2].BestDay)
}

func TestLeaderboard_WeeklyAverageAndTieBreak(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)
	f := newLedgerFixture(t, now)

	alice := f.addUser(t, testutil.CreateTestUser("a", "Alice"))
	bob := f.addUser(t, testutil.CreateTestUser("b", "Bob"))
	carol := f.addUser(t, testutil.CreateTestUser("c", "Carol"))

	// Alice averages 4 over two days, Bob 4 over one day, Carol 5 over one day
	f.record(t, alice, 2, now.AddDate(0, 0, -6))
	f.record(t, alice, 6, now)
	f.record(t, bob, 4, now)
	f.record(t, carol, 5, now.AddDate(0, 0, -3))
	// Outside the seven day window
	f.record(t, bob, 100, now.AddDate(0, 0, -7))

	board, err := f.boards.Leaderboard(ctx, models.LeaderboardWeekly, 0, false)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)

	assert.Equal(t, "c", board.Entries[0].UserID)
	assert.Equal(t, "a", board.Entries[1].UserID)
	assert.Equal(t, 2, board.Entries[1].ActiveDays)
	assert.InDelta(t, 4.0, board.Entries[1].Average, 0.0001)
	assert.Equal(t, "b", board.Entries[2].UserID)
	assert.Equal(t, int64(4), board.Entries[2].Points)
}

func TestLeaderboard_PersonalRank(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	f := newLedgerFixture(t, now)

	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		user := f.addUser(t, testutil.CreateTestUser(id, "User "+id))
		f.record(t, user, 10-i, now)
	}
	f.addUser(t, testutil.CreateTestUser("quiet", "Quiet"))

	rank, err := f.boards.PersonalRank(ctx, "g", models.LeaderboardAllTime)
	require.NoError(t, err)
	assert.False(t, rank.NoActivity)
	assert.Equal(t, 7, rank.Rank)
	assert.Equal(t, 7, rank.Of)

	none, err := f.boards.PersonalRank(ctx, "quiet", models.LeaderboardWeekly)
	require.NoError(t, err)
	assert.True(t, none.NoActivity)
	assert.Nil(t, none.Entry)
}

func TestLeaderboard_DayStandingsAndSources(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC)
	f := newLedgerFixture(t, now)

	alice := f.addUser(t, testutil.CreateTestUser("a", "Alice"))
	bob := f.addUser(t, testutil.CreateTestUser("b", "Bob"))
	f.record(t, alice, 3, now)
	f.record(t, bob, 5, now)
	f.record(t, bob, 9, now.AddDate(0, 0, -1))

	board, err := f.boards.DayStandings(ctx, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "b", board.Entries[0].UserID)
	assert.Equal(t, int64(5), board.Entries[0].Points)

	sources, err := f.boards.TopPointSources(ctx, "b", 7)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, models.ReasonRain, sources[0].Reason)
	assert.Equal(t, 14, sources[0].Points)
}
