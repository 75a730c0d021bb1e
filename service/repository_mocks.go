package service

import (
	"context"
	"time"

	"weatherbot/events"
	"weatherbot/models"
	"weatherbot/weather"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) ListActive(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	args := m.Called(ctx, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) TouchLastChecked(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// MockObservationRepository is a mock implementation of ObservationRepository
type MockObservationRepository struct {
	mock.Mock
}

func (m *MockObservationRepository) Append(ctx context.Context, obs *models.Observation) error {
	args := m.Called(ctx, obs)
	return args.Error(0)
}

func (m *MockObservationRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.Observation, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Observation), args.Error(1)
}

func (m *MockObservationRepository) ListUnscored(ctx context.Context, limit int) ([]*models.Observation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Observation), args.Error(1)
}

func (m *MockObservationRepository) Backfill(ctx context.Context, id int64, points int, breakdown models.Breakdown, calculatedAt time.Time) error {
	args := m.Called(ctx, id, points, breakdown, calculatedAt)
	return args.Error(0)
}

// MockDailyPointsRepository is a mock implementation of DailyPointsRepository
type MockDailyPointsRepository struct {
	mock.Mock
}

func (m *MockDailyPointsRepository) Add(ctx context.Context, userID string, day time.Time, points int, breakdown models.Breakdown, summary string) (*models.DailyPoints, error) {
	args := m.Called(ctx, userID, day, points, breakdown, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyPoints), args.Error(1)
}

func (m *MockDailyPointsRepository) ListSince(ctx context.Context, since time.Time) ([]*models.DailyPoints, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DailyPoints), args.Error(1)
}

func (m *MockDailyPointsRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.DailyPoints, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DailyPoints), args.Error(1)
}

func (m *MockDailyPointsRepository) SumByUser(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockRunningScoreRepository is a mock implementation of RunningScoreRepository
type MockRunningScoreRepository struct {
	mock.Mock
}

func (m *MockRunningScoreRepository) Add(ctx context.Context, userID string, points int, at time.Time) (int64, error) {
	args := m.Called(ctx, userID, points, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRunningScoreRepository) Get(ctx context.Context, userID string) (*models.RunningScore, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunningScore), args.Error(1)
}

func (m *MockRunningScoreRepository) List(ctx context.Context) ([]*models.RunningScore, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RunningScore), args.Error(1)
}

func (m *MockRunningScoreRepository) Override(ctx context.Context, userID string, total, manualAdjustment int64) error {
	args := m.Called(ctx, userID, total, manualAdjustment)
	return args.Error(0)
}

// MockAwardRepository is a mock implementation of AwardRepository
type MockAwardRepository struct {
	mock.Mock
}

func (m *MockAwardRepository) Append(ctx context.Context, award *models.AwardRecord) error {
	args := m.Called(ctx, award)
	return args.Error(0)
}

func (m *MockAwardRepository) LastForUser(ctx context.Context, userID string) (*models.AwardRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AwardRecord), args.Error(1)
}

func (m *MockAwardRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AwardRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AwardRecord), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	userRepo         UserRepository
	observationRepo  ObservationRepository
	dailyPointsRepo  DailyPointsRepository
	runningScoreRepo RunningScoreRepository
	awardRepo        AwardRepository
	eventPublisher   EventPublisher
}

// SetRepositories wires the repositories returned by the getters. A nil
// publisher is replaced by a permissive mock.
func (m *MockUnitOfWork) SetRepositories(
	userRepo UserRepository,
	observationRepo ObservationRepository,
	dailyPointsRepo DailyPointsRepository,
	runningScoreRepo RunningScoreRepository,
	awardRepo AwardRepository,
	eventPublisher EventPublisher,
) {
	m.userRepo = userRepo
	m.observationRepo = observationRepo
	m.dailyPointsRepo = dailyPointsRepo
	m.runningScoreRepo = runningScoreRepo
	m.awardRepo = awardRepo
	if eventPublisher == nil {
		publisher := new(MockEventPublisher)
		publisher.On("Publish", mock.Anything).Return()
		eventPublisher = publisher
	}
	m.eventPublisher = eventPublisher
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) ObservationRepository() ObservationRepository {
	return m.observationRepo
}

func (m *MockUnitOfWork) DailyPointsRepository() DailyPointsRepository {
	return m.dailyPointsRepo
}

func (m *MockUnitOfWork) RunningScoreRepository() RunningScoreRepository {
	return m.runningScoreRepo
}

func (m *MockUnitOfWork) AwardRepository() AwardRepository {
	return m.awardRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventPublisher
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockWeatherProvider is a mock implementation of WeatherProvider
type MockWeatherProvider struct {
	mock.Mock
}

func (m *MockWeatherProvider) CurrentWeather(ctx context.Context, q weather.ProviderQuery) (*models.Reading, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reading), args.Error(1)
}

func (m *MockWeatherProvider) Geocode(ctx context.Context, q weather.ProviderQuery) (*models.Location, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}
