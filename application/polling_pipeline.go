package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"weatherbot/clock"
	"weatherbot/events"
	"weatherbot/metrics"
	"weatherbot/models"
	"weatherbot/service"
	"weatherbot/weather"

	log "github.com/sirupsen/logrus"
)

// ErrPipelineBusy is returned when a run is requested while another one is
// still in progress
var ErrPipelineBusy = errors.New("weather check already in progress")

// Tick names used for logs and metrics
const (
	TickHourly = "hourly"
	TickManual = "manual"
	TickDaily  = "daily"
	TickWeekly = "weekly"
)

// Reasons a run did not check anyone
const (
	SkipBusy     = "busy"
	SkipQuota    = "quota_exhausted"
	SkipAdmitted = "admission_refused"
	SkipNoUsers  = "no_active_users"
)

// PipelineResult summarizes one run over the active users
type PipelineResult struct {
	Tick           string
	StartedAt      time.Time
	Quota          service.QuotaState // Budget seen when the run started
	SkipReason     string
	Users          int
	Checked        int
	Failed         int
	Remaining      int
	Awards         int
	Points         int
	QuotaExhausted bool
}

// PollingPipeline fetches, scores and records weather for every active user
type PollingPipeline struct {
	registry   *service.RegistryService
	fetcher    *service.WeatherFetcher
	calculator *service.PointCalculator
	ledger     *service.ScoreLedger
	quota      *service.QuotaTracker
	publisher  service.EventPublisher
	notify     *NotificationState
	metrics    *metrics.Metrics
	clock      clock.Clock
	queue      *WorkQueue

	mu sync.Mutex // held for the duration of a run
}

// PipelineOption customizes a PollingPipeline
type PipelineOption func(*PollingPipeline)

func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *PollingPipeline) { p.metrics = m }
}

func WithPipelineClock(c clock.Clock) PipelineOption {
	return func(p *PollingPipeline) { p.clock = c }
}

func WithNotificationState(n *NotificationState) PipelineOption {
	return func(p *PollingPipeline) { p.notify = n }
}

// WithQueueSleep replaces the pacing sleep, mostly for tests
func WithQueueSleep(sleep func(ctx context.Context, d time.Duration) error) PipelineOption {
	return func(p *PollingPipeline) { p.queue.sleep = sleep }
}

func NewPollingPipeline(
	registry *service.RegistryService,
	fetcher *service.WeatherFetcher,
	calculator *service.PointCalculator,
	ledger *service.ScoreLedger,
	quota *service.QuotaTracker,
	publisher service.EventPublisher,
	opts ...PipelineOption,
) *PollingPipeline {
	p := &PollingPipeline{
		registry:   registry,
		fetcher:    fetcher,
		calculator: calculator,
		ledger:     ledger,
		quota:      quota,
		publisher:  publisher,
		notify:     NewNotificationState(),
		clock:      clock.System(),
	}
	p.queue = NewWorkQueue(defaultQueueCapacity, quota.Pace)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notifications exposes the dedup state shared with other announcers
func (p *PollingPipeline) Notifications() *NotificationState {
	return p.notify
}

// Run checks every active user once. With admission set the probabilistic
// gate may skip the whole run under low budget; the hard ceiling applies
// either way. Only one run executes at a time.
func (p *PollingPipeline) Run(ctx context.Context, tick string, admission bool) (*PipelineResult, error) {
	if !p.mu.TryLock() {
		log.WithFields(log.Fields{
			"tick": tick,
		}).Info("Skipping weather check, previous run still in progress")
		p.metrics.TickSkipped(tick, SkipBusy)
		return nil, ErrPipelineBusy
	}
	defer p.mu.Unlock()

	start := p.clock.Now()
	result := &PipelineResult{Tick: tick, StartedAt: start}
	defer func() {
		p.metrics.ObserveTick(tick, p.clock.Now().Sub(start))
	}()

	var state service.QuotaState
	var err error
	admitted := true
	if admission {
		admitted, state, err = p.quota.Admit(ctx)
	} else {
		state, err = p.quota.Snapshot(ctx)
	}
	if err != nil {
		return nil, err
	}
	result.Quota = state

	if state.Exhausted() {
		p.skip(result, SkipQuota)
		result.QuotaExhausted = true
		p.announceQuota(state)
		return result, nil
	}
	if !admitted {
		p.skip(result, SkipAdmitted)
		return result, nil
	}

	users, err := p.registry.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	result.Users = len(users)
	if len(users) == 0 {
		p.skip(result, SkipNoUsers)
		return result, nil
	}

	stats := p.queue.Run(ctx, users, func(ctx context.Context, user *models.User) error {
		return p.checkUser(ctx, user, result)
	})
	result.Checked = stats.Processed
	result.Failed = stats.Failed
	result.Remaining = stats.Remaining
	result.QuotaExhausted = stats.QuotaExhausted

	if stats.QuotaExhausted {
		if final, err := p.quota.Snapshot(ctx); err == nil {
			p.announceQuota(final)
		}
	}

	log.WithFields(log.Fields{
		"tick":            tick,
		"users":           result.Users,
		"checked":         result.Checked,
		"failed":          result.Failed,
		"remaining":       result.Remaining,
		"awards":          result.Awards,
		"points":          result.Points,
		"quota_exhausted": result.QuotaExhausted,
		"duration":        p.clock.Now().Sub(start).String(),
	}).Info("Completed weather check")

	return result, nil
}

// CheckUser runs the fetch, score and record steps for a single user
// outside of a run
func (p *PollingPipeline) CheckUser(ctx context.Context, user *models.User) (*service.FetchResult, *service.RecordOutcome, error) {
	return p.check(ctx, user)
}

func (p *PollingPipeline) checkUser(ctx context.Context, user *models.User, result *PipelineResult) error {
	_, outcome, err := p.check(ctx, user)
	if err != nil {
		return err
	}
	if outcome.Award != nil {
		result.Awards++
		result.Points += outcome.Award.Points
	}
	return nil
}

func (p *PollingPipeline) check(ctx context.Context, user *models.User) (*service.FetchResult, *service.RecordOutcome, error) {
	fetched, err := p.fetcher.Fetch(ctx, user)
	if err != nil {
		p.logFetchFailure(user, err)
		return nil, nil, err
	}

	score := p.calculator.CalculatePoints(fetched.Reading)
	outcome, err := p.ledger.Record(ctx, user, fetched.Reading, score)
	if err != nil {
		p.metrics.ObserveUserCheck(metrics.OutcomeError)
		return fetched, nil, err
	}

	if err := p.registry.MarkChecked(ctx, user.UserID, p.clock.Now().UTC()); err != nil {
		log.WithFields(log.Fields{
			"user_id": user.UserID,
			"error":   err,
		}).Warn("Failed to update last checked time")
	}

	p.metrics.ObserveUserCheck(metrics.OutcomeSuccess)
	p.metrics.AddPoints(score.Points)

	if outcome.Award != nil && p.notify.ShouldAnnounceAward(user.UserID, outcome.Award.ID) {
		p.publisher.Publish(events.PointsAwardedEvent{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			Points:      outcome.Award.Points,
			TotalAfter:  outcome.TotalAfter,
			Breakdown:   outcome.Award.Breakdown,
			Summary:     score.Summary,
			AwardedAt:   outcome.Award.AwardedAt,
		})
	}

	log.WithFields(log.Fields{
		"user_id": user.UserID,
		"points":  score.Points,
		"total":   outcome.TotalAfter,
	}).Debug("Recorded weather check")

	return fetched, outcome, nil
}

func (p *PollingPipeline) logFetchFailure(user *models.User, err error) {
	fields := log.Fields{
		"user_id": user.UserID,
		"error":   err,
	}
	switch {
	case service.IsQuotaExhausted(err):
		p.metrics.ObserveUserCheck(metrics.OutcomeQuota)
		log.WithFields(fields).Info("Weather API quota exhausted, stopping checks")
	case errors.Is(err, weather.ErrLocationNotFound):
		p.metrics.ObserveUserCheck(metrics.OutcomeNotFound)
		log.WithFields(fields).Warn("Location not found for user, skipping")
	case errors.Is(err, weather.ErrProviderUnavailable):
		p.metrics.ObserveUserCheck(metrics.OutcomeUnavailable)
		log.WithFields(fields).Warn("Weather provider unavailable, user will be retried next tick")
	default:
		p.metrics.ObserveUserCheck(metrics.OutcomeError)
		log.WithFields(fields).Error("Failed to fetch weather for user")
	}
}

func (p *PollingPipeline) skip(result *PipelineResult, reason string) {
	result.SkipReason = reason
	p.metrics.TickSkipped(result.Tick, reason)
	log.WithFields(log.Fields{
		"tick":      result.Tick,
		"reason":    reason,
		"remaining": result.Quota.Remaining,
		"limit":     result.Quota.Limit,
	}).Info("Weather check skipped")
}

func (p *PollingPipeline) announceQuota(state service.QuotaState) {
	if !p.notify.ShouldAnnounceQuota(state.Date) {
		return
	}
	p.publisher.Publish(events.QuotaExhaustedEvent{
		Date:  state.Date,
		Used:  state.Used,
		Limit: state.Limit,
	})
}
