package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"weatherbot/clock"
	"weatherbot/events"
	"weatherbot/models"
	"weatherbot/repository/filestore"
	"weatherbot/service"
	"weatherbot/weather"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type constRandom float64

func (r constRandom) Float64() float64 { return float64(r) }

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) ofType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

type engineFixture struct {
	store     *filestore.Store
	clock     *clock.FakeClock
	provider  *service.MockWeatherProvider
	publisher *capturePublisher
	quota     *service.QuotaTracker
	registry  *service.RegistryService
	ledger    *service.ScoreLedger
	boards    *service.LeaderboardService
	pipeline  *PollingPipeline
	engine    *Engine
}

func newEngineFixture(t *testing.T, dailyLimit int, random service.RandomSource) *engineFixture {
	t.Helper()
	store, err := filestore.Open("", nil)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	factory := store.UnitOfWorkFactory()
	provider := new(service.MockWeatherProvider)
	publisher := &capturePublisher{}
	if random == nil {
		random = constRandom(0)
	}

	quota := service.NewQuotaTracker(store.UsageRepository(), dailyLimit,
		service.WithClock(fake),
		service.WithLocation(time.UTC),
		service.WithRandomSource(random),
	)
	resolver := weather.NewResolver("AU")
	calculator := service.NewPointCalculator()
	registry := service.NewRegistryService(factory, fake)
	ledger := service.NewScoreLedger(factory, calculator, fake, time.UTC)
	boards := service.NewLeaderboardService(factory, fake, time.UTC)
	fetcher := service.NewWeatherFetcher(provider, resolver, quota, fake)

	pipeline := NewPollingPipeline(registry, fetcher, calculator, ledger, quota, publisher,
		WithPipelineClock(fake),
		WithQueueSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)

	engine := NewEngine(EngineDeps{
		Registry:    registry,
		Resolver:    resolver,
		Fetcher:     fetcher,
		Calculator:  calculator,
		Ledger:      ledger,
		Leaderboard: boards,
		Quota:       quota,
		Pipeline:    pipeline,
		Clock:       fake,
	})

	return &engineFixture{
		store:     store,
		clock:     fake,
		provider:  provider,
		publisher: publisher,
		quota:     quota,
		registry:  registry,
		ledger:    ledger,
		boards:    boards,
		pipeline:  pipeline,
		engine:    engine,
	}
}

// addUser registers a participant without spending a provider call
func (f *engineFixture) addUser(t *testing.T, userID, name, postalCode string) *models.User {
	t.Helper()
	user, _, err := f.registry.Register(context.Background(), service.Registration{
		UserID:      userID,
		DisplayName: name,
		PostalCode:  postalCode,
		Location:    models.Location{City: "New York", Region: "NY", Country: "US"},
	})
	require.NoError(t, err)
	return user
}

// useCalls spends n calls of today's budget
func (f *engineFixture) useCalls(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.store.UsageRepository().Increment(context.Background(), f.quota.Today())
		require.NoError(t, err)
	}
}

func (f *engineFixture) onPostal(postalCode string, reading *models.Reading, err error) *mock.Call {
	matcher := postalQuery(postalCode)
	if err != nil {
		return f.provider.On("CurrentWeather", mock.Anything, matcher).Return(nil, err)
	}
	return f.provider.On("CurrentWeather", mock.Anything, matcher).Return(reading, nil)
}

func newReading(main, description string, tempF float64, humidity int, loc models.Location, at time.Time) *models.Reading {
	return &models.Reading{
		TemperatureF:  tempF,
		Humidity:      humidity,
		WindMph:       5,
		ConditionMain: main,
		Description:   description,
		Location:      loc,
		ObservedAt:    at,
	}
}

func usLocation(city string) models.Location {
	return models.Location{City: city, Region: "NY", Country: "US"}
}

const mockCtx = mock.Anything

func postalQuery(postalCode string) interface{} {
	return mock.MatchedBy(func(q weather.ProviderQuery) bool {
		return q.Kind == weather.QueryPostal && q.PostalCode == postalCode
	})
}

func coordinateQuery(lat, lon float64) interface{} {
	return mock.MatchedBy(func(q weather.ProviderQuery) bool {
		return q.Kind == weather.QueryCoordinates && q.Latitude == lat && q.Longitude == lon
	})
}
