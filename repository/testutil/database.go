package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"weatherbot/database"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// weatherTables lists every table created by the embedded migrations,
// children first so TRUNCATE never trips a foreign key
var weatherTables = []string{
	"shitty_weather_awards",
	"shitty_weather_scores",
	"daily_weather_points",
	"weather_history",
	"weather_api_usage",
	"weather_users",
}

// TestDatabase is a migrated postgres container plus an open pool
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase starts a postgres container, applies the weather schema
// and opens a small pool against it
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	labels := map[string]string{
		"test":      "weatherbot-repository",
		"test-name": sanitizeLabel(t.Name()),
		"cleanup":   "auto",
	}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("weatherbot_test"),
		postgres.WithUsername("weather"),
		postgres.WithPassword("weather"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(labels),
	)
	require.NoError(t, err)

	testDB := &TestDatabase{Container: container}
	t.Cleanup(func() {
		testDB.cleanup(t)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.RunMigrationsWithURL(connStr))
	requireSchemaCurrent(t, connStr)

	db, err := database.NewConnection(ctx, connStr,
		database.WithMaxConns(4),
		database.WithStatementTimeout(30*time.Second),
	)
	require.NoError(t, err)

	testDB.DB = db
	testDB.URL = connStr
	return testDB
}

// Reset empties every weather table so subtests can share one container
func (td *TestDatabase) Reset(t *testing.T) {
	t.Helper()
	query := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(weatherTables, ", "))
	_, err := td.DB.Exec(context.Background(), query)
	require.NoError(t, err)
}

func requireSchemaCurrent(t *testing.T, connStr string) {
	t.Helper()
	migrator, err := database.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()

	status, err := migrator.Status()
	require.NoError(t, err)
	require.False(t, status.Dirty, "schema left dirty by migrations")
	require.False(t, status.Pending(), "schema at version %d, latest is %d", status.Version, status.Latest)
}

// Docker label values may not contain slashes from subtest names
func sanitizeLabel(name string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(name)
}

// cleanup closes the pool and terminates the container, recovering from panics
func (td *TestDatabase) cleanup(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("Panic during container cleanup (recovered): %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if td.DB != nil {
		td.DB.Close()
	}

	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate test container: %v", err)
		}
	}
}
