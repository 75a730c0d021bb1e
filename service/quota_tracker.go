package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"weatherbot/clock"
	"weatherbot/metrics"
	"weatherbot/models"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultDailyLimit = 1000
	DefaultPaceBase   = 30 * time.Second // Delay when one call per remaining hour is left

	MinPace = 50 * time.Millisecond
	MaxPace = 5 * time.Second
)

// Admission thresholds as a fraction of the daily limit still available
var admissionPolicy = []struct {
	below       float64
	probability float64
}{
	{below: 0.05, probability: 0.1},
	{below: 0.10, probability: 0.25},
	{below: 0.20, probability: 0.5},
}

// QuotaState is a point-in-time view of the provider budget
type QuotaState struct {
	Date      time.Time
	Used      int
	Limit     int
	Remaining int
	HoursLeft float64 // Hours until the calendar day rolls over
}

// Exhausted reports whether the hard ceiling was reached
func (s QuotaState) Exhausted() bool {
	return s.Remaining <= 0
}

// RemainingFraction is the share of the daily limit still available
func (s QuotaState) RemainingFraction() float64 {
	if s.Limit <= 0 {
		return 0
	}
	return float64(s.Remaining) / float64(s.Limit)
}

// Pace returns the delay between consecutive user checks. It grows as the
// calls available per remaining hour shrink.
func (s QuotaState) Pace(base time.Duration) time.Duration {
	if s.Remaining <= 0 {
		return MaxPace
	}
	hours := s.HoursLeft
	if hours < 1.0/60 {
		hours = 1.0 / 60
	}
	callsPerHour := float64(s.Remaining) / hours
	delay := time.Duration(float64(base) / callsPerHour)

	if delay < MinPace {
		return MinPace
	}
	if delay > MaxPace {
		return MaxPace
	}
	return delay
}

// AdmitProbability is the chance this tick's round runs at the current budget
func (s QuotaState) AdmitProbability() float64 {
	if s.Remaining <= 0 {
		return 0
	}
	fraction := s.RemainingFraction()
	for _, step := range admissionPolicy {
		if fraction < step.below {
			return step.probability
		}
	}
	return 1
}

// Admit decides whether a round of checks should run. Below 20% of the
// budget a weighted coin flip may skip the round to keep calls for later.
func (s QuotaState) Admit(random RandomSource) bool {
	p := s.AdmitProbability()
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return random.Float64() < p
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// QuotaTracker enforces the daily provider budget
type QuotaTracker struct {
	usage    ApiUsageRepository
	limit    int
	paceBase time.Duration
	clock    clock.Clock
	loc      *time.Location
	random   RandomSource
	metrics  *metrics.Metrics
}

// QuotaOption customizes a QuotaTracker
type QuotaOption func(*QuotaTracker)

func WithRandomSource(r RandomSource) QuotaOption {
	return func(q *QuotaTracker) { q.random = r }
}

func WithClock(c clock.Clock) QuotaOption {
	return func(q *QuotaTracker) { q.clock = c }
}

func WithLocation(loc *time.Location) QuotaOption {
	return func(q *QuotaTracker) { q.loc = loc }
}

func WithPaceBase(d time.Duration) QuotaOption {
	return func(q *QuotaTracker) { q.paceBase = d }
}

func WithQuotaMetrics(m *metrics.Metrics) QuotaOption {
	return func(q *QuotaTracker) { q.metrics = m }
}

// NewQuotaTracker creates a tracker over the usage counter
func NewQuotaTracker(usage ApiUsageRepository, dailyLimit int, opts ...QuotaOption) *QuotaTracker {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	q := &QuotaTracker{
		usage:    usage,
		limit:    dailyLimit,
		paceBase: DefaultPaceBase,
		clock:    clock.System(),
		loc:      time.UTC,
		random:   globalRandom{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Today returns the current calendar day in the tracker's zone
func (q *QuotaTracker) Today() time.Time {
	return models.DayOf(q.clock.Now(), q.loc)
}

// Snapshot reads the counter for the current day
func (q *QuotaTracker) Snapshot(ctx context.Context) (QuotaState, error) {
	now := q.clock.Now()
	day := models.DayOf(now, q.loc)

	used, err := q.usage.Get(ctx, day)
	if err != nil {
		return QuotaState{}, fmt.Errorf("failed to read api usage: %w", err)
	}

	local := now.In(q.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, q.loc)

	remaining := q.limit - used
	if remaining < 0 {
		remaining = 0
	}
	state := QuotaState{
		Date:      day,
		Used:      used,
		Limit:     q.limit,
		Remaining: remaining,
		HoursLeft: midnight.Sub(now).Hours(),
	}
	q.metrics.SetQuota(state.Used, state.Remaining)
	return state, nil
}

// CanCall is the hard ceiling: false once today's counter reaches the limit
func (q *QuotaTracker) CanCall(ctx context.Context) (bool, error) {
	state, err := q.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return !state.Exhausted(), nil
}

// RecordCall counts one successful provider call made at the given instant
func (q *QuotaTracker) RecordCall(ctx context.Context, at time.Time) error {
	day := models.DayOf(at, q.loc)
	count, err := q.usage.Increment(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to record api call: %w", err)
	}
	remaining := q.limit - count
	if remaining < 0 {
		remaining = 0
	}
	q.metrics.SetQuota(count, remaining)
	if remaining == 0 {
		log.WithFields(log.Fields{
			"date":  day.Format("2006-01-02"),
			"used":  count,
			"limit": q.limit,
		}).Info("Weather API quota reached for today, checks suspended until rollover")
	}
	return nil
}

// Pace returns the delay to wait before the next user check
func (q *QuotaTracker) Pace(ctx context.Context) time.Duration {
	state, err := q.Snapshot(ctx)
	if err != nil {
		return MaxPace
	}
	return state.Pace(q.paceBase)
}

// Admit runs the probabilistic gate against the current budget
func (q *QuotaTracker) Admit(ctx context.Context) (bool, QuotaState, error) {
	state, err := q.Snapshot(ctx)
	if err != nil {
		return false, state, err
	}
	return state.Admit(q.random), state, nil
}
