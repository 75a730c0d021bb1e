package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("WEATHER_API_KEY", "key")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, StorageBackendPostgres, cfg.StorageBackend)
	assert.Equal(t, 1000, cfg.WeatherAPIDailyLimit)
	assert.Equal(t, 14, cfg.DailySummaryHour)
	assert.Equal(t, time.Monday, cfg.WeeklySummaryDay)
	assert.Equal(t, "AU", cfg.FourDigitCountry)
	assert.True(t, cfg.HourlyCheckEnabled)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEATHER_API_DAILY_LIMIT", "250")
	t.Setenv("DAILY_SUMMARY_HOUR", "9")
	t.Setenv("WEEKLY_SUMMARY_WEEKDAY", "fri")
	t.Setenv("WEATHER_TIMEZONE", "America/New_York")
	t.Setenv("WEATHER_PACE_BASE", "1m")
	t.Setenv("HOURLY_CHECK_DISABLED", "true")
	t.Setenv("DATABASE_NAME", "weather")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.WeatherAPIDailyLimit)
	assert.Equal(t, 9, cfg.DailySummaryHour)
	assert.Equal(t, time.Friday, cfg.WeeklySummaryDay)
	assert.Equal(t, time.Minute, cfg.PaceBase)
	assert.False(t, cfg.HourlyCheckEnabled)
	assert.Equal(t, "America/New_York", cfg.Location().String())
	assert.Equal(t, "postgres://localhost:5432/weather?sslmode=disable", cfg.GetDatabaseURL())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"summary hour out of range", "DAILY_SUMMARY_HOUR", "24"},
		{"weekly hour out of range", "WEEKLY_SUMMARY_HOUR", "-1"},
		{"bad weekday", "WEEKLY_SUMMARY_WEEKDAY", "someday"},
		{"bad timezone", "WEATHER_TIMEZONE", "Mars/Olympus"},
		{"unknown backend", "STORAGE_BACKEND", "redis"},
		{"missing api key", "WEATHER_API_KEY", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileBackendSkipsDatabase(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("WEATHER_API_KEY", "key")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORAGE_BACKEND", StorageBackendFile)

	cfg, err := load()
	require.NoError(t, err)
	assert.Equal(t, "data/weather.json", cfg.FilestorePath)
}

func TestSetTestConfig(t *testing.T) {
	defer ResetConfig()

	testConfig := NewTestConfig()
	testConfig.SummaryChannelID = "chan-1"
	SetTestConfig(testConfig)

	assert.Equal(t, "chan-1", Get().SummaryChannelID)
}
