package application

import (
	"context"
	"fmt"
	"time"

	"weatherbot/clock"
	"weatherbot/events"
	"weatherbot/models"
	"weatherbot/service"

	log "github.com/sirupsen/logrus"
)

// SummaryPublisher builds the daily and weekly standings summaries and
// hands them to the event bus for the chat sink and the message bus
type SummaryPublisher struct {
	leaderboard *service.LeaderboardService
	publisher   service.EventPublisher
	clock       clock.Clock
	loc         *time.Location
}

func NewSummaryPublisher(leaderboard *service.LeaderboardService, publisher service.EventPublisher, clk clock.Clock, loc *time.Location) *SummaryPublisher {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SummaryPublisher{leaderboard: leaderboard, publisher: publisher, clock: clk, loc: loc}
}

// Daily summarizes the previous calendar day together with the all-time top
func (s *SummaryPublisher) Daily(ctx context.Context) (*events.SummaryEvent, error) {
	day := models.DayOf(s.clock.Now(), s.loc).AddDate(0, 0, -1)

	standings, err := s.leaderboard.DayStandings(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to build day standings: %w", err)
	}
	return s.publish(ctx, events.EventTypeDailySummary, day, day, standings)
}

// Weekly summarizes the seven-day average board together with the all-time top
func (s *SummaryPublisher) Weekly(ctx context.Context) (*events.SummaryEvent, error) {
	standings, err := s.leaderboard.Leaderboard(ctx, models.LeaderboardWeekly, service.DefaultLeaderboardLimit, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build weekly standings: %w", err)
	}

	end := models.DayOf(s.clock.Now(), s.loc)
	start := end.AddDate(0, 0, -(service.WeeklyWindowDays - 1))
	return s.publish(ctx, events.EventTypeWeeklySummary, start, end, standings)
}

func (s *SummaryPublisher) publish(ctx context.Context, kind events.EventType, start, end time.Time, standings *models.Leaderboard) (*events.SummaryEvent, error) {
	allTime, err := s.leaderboard.Leaderboard(ctx, models.LeaderboardAllTime, service.DefaultLeaderboardLimit, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build all-time standings: %w", err)
	}

	if len(standings.Entries) > service.DefaultLeaderboardLimit {
		standings.Entries = standings.Entries[:service.DefaultLeaderboardLimit]
	}

	event := events.SummaryEvent{
		Kind:        kind,
		PeriodStart: start,
		PeriodEnd:   end,
		Standings:   standings,
		AllTime:     allTime,
	}
	s.publisher.Publish(event)

	log.WithFields(log.Fields{
		"kind":    kind,
		"start":   start.Format("2006-01-02"),
		"end":     end.Format("2006-01-02"),
		"ranked":  standings.TotalRanked,
		"no_data": !standings.HasData(),
	}).Info("Published standings summary")
	return &event, nil
}
