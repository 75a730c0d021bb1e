package models

import (
	"fmt"
	"strings"
	"time"
)

// LeaderboardKind selects one of the ranked views
type LeaderboardKind string

const (
	LeaderboardAllTime LeaderboardKind = "alltime"
	LeaderboardBestDay LeaderboardKind = "bestday"
	LeaderboardWeekly  LeaderboardKind = "weekly"
)

// ParseLeaderboardKind accepts the kind names used by the chat glue
func ParseLeaderboardKind(s string) (LeaderboardKind, error) {
	switch LeaderboardKind(strings.ToLower(strings.TrimSpace(s))) {
	case LeaderboardAllTime, "all", "all-time", "":
		return LeaderboardAllTime, nil
	case LeaderboardBestDay, "daily", "day":
		return LeaderboardBestDay, nil
	case LeaderboardWeekly, "week":
		return LeaderboardWeekly, nil
	default:
		return "", fmt.Errorf("unknown leaderboard kind %q", s)
	}
}

// LeaderboardStatus distinguishes an empty window from a populated one
type LeaderboardStatus string

const (
	LeaderboardStatusOK     LeaderboardStatus = "ok"
	LeaderboardStatusNoData LeaderboardStatus = "no_competition_data"
)

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	Rank        int
	UserID      string
	DisplayName string
	Region      string
	Points      int64      // all-time total or best single-day total
	Average     float64    // weekly average per active day
	ActiveDays  int        // weekly view only
	BestDay     *time.Time // best-day view only
	LastAwardAt *time.Time // all-time view only
}

// Leaderboard is one ranked view
type Leaderboard struct {
	Kind        LeaderboardKind
	Status      LeaderboardStatus
	WindowStart *time.Time
	WindowEnd   *time.Time
	Entries     []LeaderboardEntry
	TotalRanked int // participants ranked before any top-N cut
}

// HasData reports whether any participant qualified for the window
func (l *Leaderboard) HasData() bool {
	return l.Status == LeaderboardStatusOK
}

// RankInfo is a user's position in one view
type RankInfo struct {
	Kind       LeaderboardKind
	UserID     string
	NoActivity bool // true when the user has no rows in the window
	Rank       int
	Of         int
	Entry      *LeaderboardEntry
}
