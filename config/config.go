package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"weatherbot/database"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageBackendPostgres = "postgres"
	StorageBackendFile     = "file"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken     string
	SummaryChannelID string // Channel for daily and weekly summaries, empty disables posting

	// Database configuration
	DatabaseURL            string
	DatabaseName           string
	DatabaseMaxConns       int32
	DatabaseConnectRetries int
	MigrateOnStart         bool // Apply embedded migrations before the bot starts

	// Storage configuration
	StorageBackend string // "postgres" or "file"
	FilestorePath  string

	// Weather provider configuration
	WeatherAPIKey        string
	WeatherAPIBaseURL    string
	WeatherAPIDailyLimit int
	WeatherRatePerMinute int
	WeatherTimeout       time.Duration
	FourDigitCountry     string // Country assumed for bare 4-digit postal codes

	// Scheduling configuration
	Timezone           string // IANA zone used for calendar days
	DailySummaryHour   int    // Hour in UTC when the daily summary is posted (0-23)
	WeeklySummaryDay   time.Weekday
	WeeklySummaryHour  int
	HourlyCheckEnabled bool
	PaceBase           time.Duration

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables forwarding

	// Observability
	MetricsAddr string
	LogLevel    string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		_ = godotenv.Load()

		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Location returns the configured calendar time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Discord
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		SummaryChannelID: os.Getenv("SUMMARY_CHANNEL_ID"),

		// Database
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DatabaseName:           os.Getenv("DATABASE_NAME"),
		DatabaseMaxConns:       8,
		DatabaseConnectRetries: 5,
		MigrateOnStart:         os.Getenv("MIGRATE_ON_START") == "true",

		// Storage
		StorageBackend: getEnvWithDefault("STORAGE_BACKEND", StorageBackendPostgres),
		FilestorePath:  getEnvWithDefault("FILESTORE_PATH", "data/weather.json"),

		// Weather provider
		WeatherAPIKey:        os.Getenv("WEATHER_API_KEY"),
		WeatherAPIBaseURL:    getEnvWithDefault("WEATHER_API_BASE_URL", "https://api.openweathermap.org"),
		WeatherAPIDailyLimit: 1000,
		WeatherRatePerMinute: 60,
		WeatherTimeout:       10 * time.Second,
		FourDigitCountry:     strings.ToUpper(getEnvWithDefault("WEATHER_FOUR_DIGIT_COUNTRY", "AU")),

		// Scheduling
		Timezone:           getEnvWithDefault("WEATHER_TIMEZONE", "UTC"),
		DailySummaryHour:   14, // 2pm UTC / 9am CST
		WeeklySummaryDay:   time.Monday,
		WeeklySummaryHour:  14,
		HourlyCheckEnabled: os.Getenv("HOURLY_CHECK_DISABLED") != "true",
		PaceBase:           30 * time.Second,

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// Observability
		MetricsAddr: getEnvWithDefault("METRICS_ADDR", ":9090"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if limit := os.Getenv("WEATHER_API_DAILY_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			config.WeatherAPIDailyLimit = parsed
		}
	}
	if rate := os.Getenv("WEATHER_API_RATE_PER_MINUTE"); rate != "" {
		if parsed, err := strconv.Atoi(rate); err == nil && parsed > 0 {
			config.WeatherRatePerMinute = parsed
		}
	}
	if conns := os.Getenv("DATABASE_MAX_CONNS"); conns != "" {
		if parsed, err := strconv.Atoi(conns); err == nil && parsed > 0 {
			config.DatabaseMaxConns = int32(parsed)
		}
	}
	if retries := os.Getenv("DATABASE_CONNECT_RETRIES"); retries != "" {
		if parsed, err := strconv.Atoi(retries); err == nil && parsed > 0 {
			config.DatabaseConnectRetries = parsed
		}
	}
	if hour := os.Getenv("DAILY_SUMMARY_HOUR"); hour != "" {
		if parsed, err := strconv.Atoi(hour); err == nil {
			config.DailySummaryHour = parsed
		}
	}
	if hour := os.Getenv("WEEKLY_SUMMARY_HOUR"); hour != "" {
		if parsed, err := strconv.Atoi(hour); err == nil {
			config.WeeklySummaryHour = parsed
		}
	}
	if day := os.Getenv("WEEKLY_SUMMARY_WEEKDAY"); day != "" {
		weekday, err := parseWeekday(day)
		if err != nil {
			return nil, err
		}
		config.WeeklySummaryDay = weekday
	}
	if pace := os.Getenv("WEATHER_PACE_BASE"); pace != "" {
		if parsed, err := time.ParseDuration(pace); err == nil {
			config.PaceBase = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.DailySummaryHour < 0 || config.DailySummaryHour > 23 {
		return nil, fmt.Errorf("DAILY_SUMMARY_HOUR must be between 0 and 23, got %d", config.DailySummaryHour)
	}
	if config.WeeklySummaryHour < 0 || config.WeeklySummaryHour > 23 {
		return nil, fmt.Errorf("WEEKLY_SUMMARY_HOUR must be between 0 and 23, got %d", config.WeeklySummaryHour)
	}
	if _, err := time.LoadLocation(config.Timezone); err != nil {
		return nil, fmt.Errorf("invalid WEATHER_TIMEZONE %q: %w", config.Timezone, err)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.WeatherAPIKey == "" {
			return nil, fmt.Errorf("WEATHER_API_KEY is required")
		}
		switch config.StorageBackend {
		case StorageBackendPostgres:
			if config.DatabaseURL == "" {
				return nil, fmt.Errorf("DATABASE_URL is required")
			}
		case StorageBackendFile:
			if config.FilestorePath == "" {
				return nil, fmt.Errorf("FILESTORE_PATH is required for the file backend")
			}
		default:
			return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", config.StorageBackend)
		}
	}

	return config, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) || strings.EqualFold(d.String()[:3], s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid WEEKLY_SUMMARY_WEEKDAY %q", s)
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:          "test",
		StorageBackend:       StorageBackendFile,
		DatabaseMaxConns:     4,
		WeatherAPIBaseURL:    "http://localhost",
		WeatherAPIDailyLimit: 1000,
		WeatherRatePerMinute: 600,
		WeatherTimeout:       10 * time.Second,
		FourDigitCountry:     "AU",
		Timezone:             "UTC",
		DailySummaryHour:     14,
		WeeklySummaryDay:     time.Monday,
		WeeklySummaryHour:    14,
		HourlyCheckEnabled:   true,
		PaceBase:             30 * time.Second,
		LogLevel:             "info",
	}
}
