package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"weatherbot/clock"
	"weatherbot/models"
	"weatherbot/weather"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(provider *MockWeatherProvider, limit int) (*WeatherFetcher, *memoryUsage) {
	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	usage := newMemoryUsage()
	quota := NewQuotaTracker(usage, limit, WithClock(fake))
	return NewWeatherFetcher(provider, weather.NewResolver("AU"), quota, fake), usage
}

func usageToday(u *memoryUsage) int {
	return u.counts[time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)]
}

func postalQuery(code, country string) interface{} {
	return mock.MatchedBy(func(q weather.ProviderQuery) bool {
		return q.Kind == weather.QueryPostal && q.PostalCode == code && q.Country == country
	})
}

func TestWeatherFetcher_PrimaryLookup(t *testing.T) {
	ctx := context.Background()
	provider := new(MockWeatherProvider)
	fetcher, usage := newTestFetcher(provider, 10)

	provider.On("CurrentWeather", ctx, postalQuery("90210", "US")).Return(&models.Reading{
		TemperatureF: 75,
		Location:     models.Location{City: "Beverly Hills", Country: "US"},
	}, nil).Once()

	result, err := fetcher.FetchForLocation(ctx, "90210", "")
	require.NoError(t, err)
	assert.Equal(t, "Beverly Hills", result.Location.City)
	assert.Equal(t, 1, usageToday(usage))
	provider.AssertExpectations(t)
}

func TestWeatherFetcher_UKPostalAreaFallback(t *testing.T) {
	ctx := context.Background()
	provider := new(MockWeatherProvider)
	fetcher, usage := newTestFetcher(provider, 10)

	provider.On("CurrentWeather", ctx, postalQuery("SW1A", "GB")).Return(nil, weather.ErrLocationNotFound).Once()
	provider.On("CurrentWeather", ctx, mock.MatchedBy(func(q weather.ProviderQuery) bool {
		return q.Kind == weather.QueryCity && q.City == "London" && q.Country == "GB"
	})).Return(&models.Reading{Location: models.Location{City: "London", Country: "GB"}}, nil).Once()
	provider.On("Geocode", ctx, mock.MatchedBy(func(q weather.ProviderQuery) bool {
		return q.Kind == weather.QueryCity && q.City == "London"
	})).Return(&models.Location{City: "London", Region: "England", Country: "GB", Latitude: 51.5, Longitude: -0.12}, nil).Once()

	result, err := fetcher.FetchForLocation(ctx, "SW1A 1AA", "")
	require.NoError(t, err)
	assert.Equal(t, "GB", result.Location.Country)
	assert.Equal(t, "England", result.Location.DisplayRegion())
	// Failed primary lookup does not consume budget
	assert.Equal(t, 2, usageToday(usage))
	provider.AssertExpectations(t)
}

func TestWeatherFetcher_GeocodeFallback(t *testing.T) {
	ctx := context.Background()
	provider := new(MockWeatherProvider)
	fetcher, usage := newTestFetcher(provider, 10)

	provider.On("CurrentWeather", ctx, postalQuery("K1A", "CA")).Return(nil, weather.ErrLocationNotFound).Once()
	provider.On("Geocode", ctx, postalQuery("K1A", "CA")).Return(&models.Location{City: "Ottawa", Country: "CA", Latitude: 45.42, Longitude: -75.69}, nil).Once()
	provider.On("CurrentWeather", ctx, mock.MatchedBy(func(q weather.ProviderQuery) bool {
		return q.Kind == weather.QueryCoordinates && q.Latitude == 45.42
	})).Return(&models.Reading{TemperatureF: 10, Location: models.Location{City: "Ottawa", Country: "CA"}}, nil).Once()

	result, err := fetcher.FetchForLocation(ctx, "K1A 0B1", "")
	require.NoError(t, err)
	assert.Equal(t, weather.QueryCoordinates, result.Query.Kind)
	assert.True(t, result.Location.HasCoordinates())
	assert.Equal(t, 2, usageToday(usage))
	provider.AssertExpectations(t)
}

func TestWeatherFetcher_EverythingNotFound(t *testing.T) {
	ctx := context.Background()
	provider := new(MockWeatherProvider)
	fetcher, usage := newTestFetcher(provider, 10)

	provider.On("CurrentWeather", ctx, mock.Anything).Return(nil, weather.ErrLocationNotFound)
	provider.On("Geocode", ctx, mock.Anything).Return(nil, weather.ErrLocationNotFound)

	_, err := fetcher.FetchForLocation(ctx, "00000", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocationNotFound))

	var locErr *weather.LocationError
	assert.True(t, errors.As(err, &locErr))
	assert.Equal(t, 0, usageToday(usage))
}

func TestWeatherFetcher_ProviderUnavailableStopsChain(t *testing.T) {
	ctx := context.Background()
	provider := new(MockWeatherProvider)
	fetcher, usage := newTestFetcher(provider, 10)

	provider.On("CurrentWeather", ctx, mock.Anything).Return(nil, weather.ErrProviderUnavailable).Once()

	_, err := fetcher.FetchForLocation(ctx, "SW1A 1AA", "")
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, 0, usageToday(usage))
	provider.AssertNumberOfCalls(t, "CurrentWeather", 1)
	provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestWeatherFetcher_QuotaExhausted(t *testing.T) {
	ctx := context.Background()
	provider := new(MockWeatherProvider)
	fetcher, usage := newTestFetcher(provider, 1)
	usage.counts[time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)] = 1

	_, err := fetcher.FetchForLocation(ctx, "90210", "")
	assert.True(t, errors.Is(err, ErrQuotaExhausted))
	assert.Equal(t, 1, usageToday(usage))
	provider.AssertNotCalled(t, "CurrentWeather", mock.Anything, mock.Anything)
}

func TestWeatherFetcher_FetchUsesStoredCoordinates(t *testing.T) {
	ctx := context.Background()
	provider := new(MockWeatherProvider)
	fetcher, _ := newTestFetcher(provider, 10)

	lat, lon := 40.71, -74.0
	user := &models.User{UserID: "u1", PostalCode: "10001", Region: "New York", Latitude: &lat, Longitude: &lon}

	provider.On("CurrentWeather", ctx, mock.MatchedBy(func(q weather.ProviderQuery) bool {
		return q.Kind == weather.QueryCoordinates
	})).Return(&models.Reading{Location: models.Location{City: "New York", Country: "US"}}, nil).Once()

	result, err := fetcher.Fetch(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "New York", result.Location.Region)
	provider.AssertExpectations(t)
}

func TestWeatherFetcher_InvalidPostalCode(t *testing.T) {
	provider := new(MockWeatherProvider)
	fetcher, _ := newTestFetcher(provider, 10)

	_, err := fetcher.FetchForLocation(context.Background(), "", "")
	assert.True(t, errors.Is(err, ErrLocationNotFound))
	provider.AssertNotCalled(t, "CurrentWeather", mock.Anything, mock.Anything)
}
